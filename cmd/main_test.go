package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"schoolcal/internal/extractor"
	"schoolcal/internal/models"
	"schoolcal/internal/syncer"
)

type memCalendar struct {
	existing []models.EventRecord
	created  []models.EventRecord
}

func (m *memCalendar) ListEvents(context.Context, string, time.Time, time.Time) ([]models.EventRecord, error) {
	return m.existing, nil
}

func (m *memCalendar) CreateEvent(_ context.Context, _ string, ev models.EventRecord) (models.EventRecord, error) {
	ev.SourceID = "id-" + ev.Title
	m.created = append(m.created, ev)
	return ev, nil
}

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()
	if !setupLogger("debug").Enabled(ctx, slog.LevelDebug) {
		t.Error("debug level should enable debug records")
	}
	if setupLogger("warn").Enabled(ctx, slog.LevelInfo) {
		t.Error("warn level should not enable info records")
	}
	if !setupLogger("bogus").Enabled(ctx, slog.LevelInfo) {
		t.Error("unknown level should fall back to info")
	}
}

func TestWriteAndReadEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	events := []models.EventRecord{{
		Title:     "Emma: Spelling test",
		Type:      models.EventTypeTest,
		Schedule:  models.NewAllDay(models.Date{Year: 2026, Month: time.March, Day: 2}, models.Date{}),
		Reminders: []models.Reminder{{Minutes: 1440, Method: models.ReminderPopup}},
	}}
	if err := writeJSON(path, events); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}

	got, err := readEvents(path)
	if err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	if len(got) != 1 || got[0].Title != events[0].Title || !got[0].AllDay() {
		t.Errorf("readEvents = %+v", got)
	}
}

func TestReadEventsRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	if err := os.WriteFile(path, []byte(`[{"title":"","allDay":true,"startDate":"2026-03-02"}]`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readEvents(path); err == nil {
		t.Fatal("expected an error for an event without a title")
	}
}

func TestRunSyncForce(t *testing.T) {
	ex, err := extractor.LoadStatic(strings.NewReader(`[{"title":"Picture day","date":"2026-03-02","eventType":"event","isAllDay":true}]`))
	if err != nil {
		t.Fatal(err)
	}
	cal := &memCalendar{existing: []models.EventRecord{{
		Title:    "Picture day",
		Schedule: models.NewAllDay(models.Date{Year: 2026, Month: time.March, Day: 2}, models.Date{}),
	}}}
	s := syncer.NewSyncer(slog.New(slog.NewTextHandler(io.Discard, nil)), cal, "primary", syncer.Options{Location: time.UTC})

	report, err := runSync(context.Background(), s, ex, "", "", false)
	if err != nil {
		t.Fatalf("runSync: %v", err)
	}
	if len(report.Created) != 0 || len(report.Skipped) != 1 {
		t.Fatalf("without force: created %d, skipped %d", len(report.Created), len(report.Skipped))
	}

	report, err = runSync(context.Background(), s, ex, "", "", true)
	if err != nil {
		t.Fatalf("runSync: %v", err)
	}
	if len(report.Created) != 1 || len(cal.created) != 1 {
		t.Fatalf("with force: created %d, calendar saw %d", len(report.Created), len(cal.created))
	}
}

func TestWatchInterval(t *testing.T) {
	if got, err := watchInterval(300); err != nil || got != 5*time.Minute {
		t.Errorf("watchInterval(300) = %v, %v", got, err)
	}
	for _, n := range []int{0, -5} {
		if _, err := watchInterval(n); err == nil {
			t.Errorf("watchInterval(%d): expected an error", n)
		}
	}
}

func TestResolveAccount(t *testing.T) {
	dir := t.TempDir()
	if _, err := resolveAccount("", dir); err == nil {
		t.Fatal("expected an error with no token files")
	}
	for _, name := range []string{"token-school.json", "token-family.json", "notes.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if got, err := resolveAccount("", dir); err != nil || got != "family" {
		t.Errorf("resolveAccount fallback = %q, %v; want family", got, err)
	}
	if got, _ := resolveAccount("personal", dir); got != "personal" {
		t.Errorf("resolveAccount configured = %q, want personal", got)
	}
}
