package google

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"schoolcal/internal/models"
)

func TestToRecordAllDay(t *testing.T) {
	t.Parallel()

	rec, ok := toRecord(&calendar.Event{
		Id:      "abc123",
		Summary: "Winter Break",
		Start:   &calendar.EventDateTime{Date: "2025-12-22"},
		End:     &calendar.EventDateTime{Date: "2026-01-02"},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{propChildName: "Emma", propEventType: "holiday"},
		},
	})
	if !ok {
		t.Fatal("toRecord rejected a valid all-day event")
	}
	ad, isAllDay := rec.Schedule.(models.AllDay)
	if !isAllDay {
		t.Fatalf("Schedule = %T, want models.AllDay", rec.Schedule)
	}
	if ad.Start.String() != "2025-12-22" || ad.End.String() != "2026-01-01" {
		t.Errorf("span = %s..%s, want 2025-12-22..2026-01-01", ad.Start, ad.End)
	}
	if rec.SourceID != "abc123" || rec.ChildName != "Emma" || rec.Type != models.EventTypeHoliday {
		t.Errorf("rec = %+v", rec)
	}
}

func TestToRecordTimed(t *testing.T) {
	t.Parallel()

	rec, ok := toRecord(&calendar.Event{
		Id:      "xyz",
		Summary: "Parent Conference",
		Start:   &calendar.EventDateTime{DateTime: "2025-10-22T15:00:00-04:00"},
		End:     &calendar.EventDateTime{DateTime: "2025-10-22T15:30:00-04:00"},
		Reminders: &calendar.EventReminders{Overrides: []*calendar.EventReminder{
			{Method: "popup", Minutes: 1440},
		}},
	})
	if !ok {
		t.Fatal("toRecord rejected a valid timed event")
	}
	start, ok := rec.StartInstant()
	if !ok {
		t.Fatal("expected a start instant")
	}
	if _, off := start.Zone(); off != -4*3600 {
		t.Errorf("offset = %d, want the event's own -04:00", off)
	}
	if rec.Type != models.EventTypeEvent {
		t.Errorf("Type = %q, want event for foreign events", rec.Type)
	}
	want := []models.Reminder{{Minutes: 1440, Method: models.ReminderPopup}}
	if !reflect.DeepEqual(rec.Reminders, want) {
		t.Errorf("Reminders = %v, want %v", rec.Reminders, want)
	}
}

func TestToRecordsSkipsUnusable(t *testing.T) {
	t.Parallel()

	got := toRecords([]*calendar.Event{
		{Summary: "No start"},
		{Summary: "Bad date", Start: &calendar.EventDateTime{Date: "not-a-date"}},
		{Summary: "Good", Start: &calendar.EventDateTime{Date: "2025-10-20"}},
	})
	if len(got) != 1 || got[0].Title != "Good" {
		t.Errorf("toRecords = %+v, want only Good", got)
	}
}

func TestFromRecord(t *testing.T) {
	t.Parallel()

	d, _ := models.ParseDate("2025-10-20")
	ev := fromRecord(models.EventRecord{
		Title:     "Emma - Math Test",
		ChildName: "Emma",
		Type:      models.EventTypeTest,
		Schedule:  models.NewAllDay(d, d),
		Reminders: []models.Reminder{{Minutes: 1440, Method: models.ReminderPopup}, {Minutes: 2880, Method: models.ReminderPopup}},
	}, "America/New_York")

	if ev.Start.Date != "2025-10-20" || ev.End.Date != "2025-10-21" {
		t.Errorf("dates = %s..%s, want exclusive end 2025-10-21", ev.Start.Date, ev.End.Date)
	}
	if ev.Reminders.UseDefault || len(ev.Reminders.Overrides) != 2 || ev.Reminders.Overrides[1].Minutes != 2880 {
		t.Errorf("reminders = %+v", ev.Reminders)
	}
	if !reflect.DeepEqual(ev.Reminders.ForceSendFields, []string{"UseDefault"}) {
		t.Error("useDefault=false must be sent explicitly")
	}
	priv := ev.ExtendedProperties.Private
	if priv[propSyncMarker] != "true" || priv[propChildName] != "Emma" || priv[propEventType] != "test" {
		t.Errorf("private properties = %v", priv)
	}
}

func TestFromRecordTimedRoundTrip(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("EDT", -4*3600)
	start := time.Date(2025, 10, 22, 15, 0, 0, 0, loc)
	in := models.EventRecord{Title: "Conference", Type: models.EventTypeConference, Schedule: models.NewTimed(start, time.Time{})}
	ev := fromRecord(in, "America/New_York")
	if ev.Start.TimeZone != "America/New_York" {
		t.Errorf("TimeZone = %q", ev.Start.TimeZone)
	}
	if ev.Start.DateTime != "2025-10-22T15:00:00-04:00" || ev.End.DateTime != "2025-10-22T16:00:00-04:00" {
		t.Errorf("times = %s..%s", ev.Start.DateTime, ev.End.DateTime)
	}

	ev.Id = "new-id"
	out, ok := toRecord(ev)
	if !ok {
		t.Fatal("round trip failed")
	}
	if out.Title != in.Title || out.Type != in.Type || out.SourceID != "new-id" {
		t.Errorf("round trip = %+v", out)
	}
}

func TestGetTokenAccounts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"token-home.json", "token-work.json", "credentials.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	accounts, err := GetTokenAccounts(dir)
	if err != nil {
		t.Fatalf("GetTokenAccounts: %v", err)
	}
	sort.Strings(accounts)
	if !reflect.DeepEqual(accounts, []string{"home", "work"}) {
		t.Errorf("accounts = %v", accounts)
	}
}
