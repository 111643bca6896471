// Package normalize turns loosely typed extractor output into EventRecords.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"schoolcal/internal/models"
)

// clockLayouts are tried in order; models sometimes add seconds.
var clockLayouts = []string{"15:04", "15:04:05"}

// MalformedCandidateError reports a candidate that cannot become an EventRecord.
type MalformedCandidateError struct {
	Title  string
	Field  string
	Value  string
	Reason string
}

func (e *MalformedCandidateError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed candidate %q: %s %s", e.Title, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed candidate %q: %s %q %s", e.Title, e.Field, e.Value, e.Reason)
}

// Normalize resolves raw into an EventRecord whose instants are in loc.
// Dates are read as local calendar days, never shifted through UTC.
func Normalize(raw models.RawCandidate, childName string, loc *time.Location) (models.EventRecord, error) {
	if loc == nil {
		loc = time.Local
	}
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return models.EventRecord{}, &MalformedCandidateError{Field: "title", Reason: "is missing"}
	}
	dateStr := strings.TrimSpace(raw.Date)
	if dateStr == "" {
		return models.EventRecord{}, &MalformedCandidateError{Title: title, Field: "date", Reason: "is missing"}
	}
	date, err := models.ParseDate(dateStr)
	if err != nil {
		return models.EventRecord{}, &MalformedCandidateError{Title: title, Field: "date", Value: dateStr, Reason: "is not a calendar date"}
	}

	eventType := models.ParseEventType(raw.EventType)
	rec := models.EventRecord{
		Title:       DisambiguateTitle(title, childName),
		Description: strings.TrimSpace(raw.Description),
		ChildName:   strings.TrimSpace(childName),
		Type:        eventType,
		Reminders:   Reminders(eventType),
	}

	clock := strings.TrimSpace(raw.Time)
	if raw.IsAllDay || clock == "" {
		end := date
		if s := strings.TrimSpace(raw.EndDate); s != "" {
			if end, err = models.ParseDate(s); err != nil {
				return models.EventRecord{}, &MalformedCandidateError{Title: title, Field: "endDate", Value: s, Reason: "is not a calendar date"}
			}
		}
		rec.Schedule = models.NewAllDay(date, end)
		return rec, nil
	}

	start, err := combine(date, clock, loc)
	if err != nil {
		return models.EventRecord{}, &MalformedCandidateError{Title: title, Field: "time", Value: clock, Reason: "is not HH:MM"}
	}
	var end time.Time
	if s := strings.TrimSpace(raw.EndTime); s != "" {
		if end, err = combine(date, s, loc); err != nil {
			return models.EventRecord{}, &MalformedCandidateError{Title: title, Field: "endTime", Value: s, Reason: "is not HH:MM"}
		}
	}
	rec.Schedule = models.NewTimed(start, end)
	return rec, nil
}

// DisambiguateTitle prefixes the child's name unless the title already mentions it.
func DisambiguateTitle(title, childName string) string {
	childName = strings.TrimSpace(childName)
	if childName == "" || strings.Contains(strings.ToLower(title), strings.ToLower(childName)) {
		return title
	}
	return childName + " - " + title
}

func combine(d models.Date, clock string, loc *time.Location) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	for _, layout := range clockLayouts {
		if t, err = time.Parse(layout, clock); err == nil {
			return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}
	return time.Time{}, err
}
