package dedupe

import (
	"testing"
	"time"

	"schoolcal/internal/models"
)

func allDay(title, date string) models.EventRecord {
	d, err := models.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return models.EventRecord{Title: title, Type: models.EventTypeEvent, Schedule: models.NewAllDay(d, d)}
}

func timed(title string, start time.Time) models.EventRecord {
	return models.EventRecord{Title: title, Type: models.EventTypeEvent, Schedule: models.NewTimed(start, time.Time{})}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"Math Test", "Math Test", 100},
		{"Math Test", "  math TEST ", 100},
		{"this is a test", "this is a test!", 97},
		{"abc", "xyz", 0},
		{"", "Math Test", 0},
		{"abcdefghij", "abcdefghiz", 90},
		{"abcdefghijklmnopqrst", "abcdefghijklmnopqxyz", 85},
		{"abcdefg", "abcdefx", 86},
	}
	for _, tc := range cases {
		if got := Similarity(tc.a, tc.b); got != tc.want {
			t.Errorf("Similarity(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		if got := Similarity(tc.b, tc.a); got != tc.want {
			t.Errorf("Similarity(%q, %q) = %d, want %d (symmetry)", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestMatchAllDaySufficiency(t *testing.T) {
	t.Parallel()

	if !Match(allDay("Math Test", "2025-10-20"), allDay("Math Test", "2025-10-20")) {
		t.Error("identical all-day events should match")
	}
	// One timed side is enough to skip the time comparison.
	start := time.Date(2025, 10, 20, 23, 0, 0, 0, time.UTC)
	if !Match(allDay("Math Test", "2025-10-20"), timed("Math Test", start)) {
		t.Error("all-day vs timed on the same day should match")
	}
}

func TestMatchDateProximityBoundary(t *testing.T) {
	t.Parallel()

	candidate := allDay("abcdefghij", "2025-10-20")
	if !Match(candidate, allDay("abcdefghiz", "2025-10-21")) {
		t.Error("one day apart with similarity 90 should match")
	}
	if !Match(candidate, allDay("abcdefghiz", "2025-10-19")) {
		t.Error("one day earlier with similarity 90 should match")
	}
	if Match(candidate, allDay("abcdefghij", "2025-10-22")) {
		t.Error("two days apart must not match, even with identical titles")
	}
}

func TestMatchSimilarityBoundary(t *testing.T) {
	t.Parallel()

	if Match(allDay("abcdefghijklmnopqrst", "2025-10-20"), allDay("abcdefghijklmnopqxyz", "2025-10-20")) {
		t.Error("similarity exactly 85 must not match")
	}
	if !Match(allDay("abcdefg", "2025-10-20"), allDay("abcdefx", "2025-10-20")) {
		t.Error("similarity 86 should match")
	}
}

func TestMatchTimeWindowBoundary(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC)
	a := timed("abcdefghijklmnopqrst", base)
	if !Match(a, timed("abcdefghijklmnopqrsz", base.Add(120*time.Minute))) {
		t.Error("starts 120 minutes apart should match")
	}
	if Match(a, timed("abcdefghijklmnopqrsz", base.Add(121*time.Minute))) {
		t.Error("starts 121 minutes apart must not match")
	}
	if !Match(timed("abcdefghijklmnopqrsz", base.Add(120*time.Minute)), a) {
		t.Error("match should be symmetric")
	}
}

func TestMatchAcrossZones(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	local := time.Date(2025, 10, 20, 20, 0, 0, 0, ny)
	if !Match(timed("Open House", local), timed("Open House", local.UTC())) {
		t.Error("the same instant in different zones should match")
	}
}

func TestMatchUnresolvableStart(t *testing.T) {
	t.Parallel()

	if Match(models.EventRecord{Title: "Math Test"}, allDay("Math Test", "2025-10-20")) {
		t.Error("a record without a schedule must never match")
	}
}

func TestIsDuplicate(t *testing.T) {
	t.Parallel()

	candidate := allDay("Science Fair", "2025-11-05")
	existing := []models.EventRecord{
		allDay("Bake Sale", "2025-11-05"),
		allDay("Science Fair", "2025-11-20"),
	}
	if IsDuplicate(candidate, existing) {
		t.Error("no existing event should match")
	}
	if IsDuplicate(candidate, nil) {
		t.Error("an empty calendar has no duplicates")
	}
	existing = append(existing, allDay("science fair", "2025-11-04"))
	if !IsDuplicate(candidate, existing) {
		t.Error("expected the adjacent-day science fair to match")
	}
}
