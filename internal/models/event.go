package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType classifies a school event. It drives reminder selection.
type EventType string

const (
	EventTypeTest        EventType = "test"
	EventTypeAssignment  EventType = "assignment"
	EventTypeFieldTrip   EventType = "fieldtrip"
	EventTypeHoliday     EventType = "holiday"
	EventTypeHalfDay     EventType = "halfday"
	EventTypeConference  EventType = "conference"
	EventTypePerformance EventType = "performance"
	EventTypeEvent       EventType = "event"
)

// ParseEventType maps a loosely typed value onto a known EventType.
// Anything unrecognized becomes EventTypeEvent.
func ParseEventType(s string) EventType {
	switch t := EventType(strings.ToLower(strings.TrimSpace(s))); t {
	case EventTypeTest, EventTypeAssignment, EventTypeFieldTrip, EventTypeHoliday,
		EventTypeHalfDay, EventTypeConference, EventTypePerformance, EventTypeEvent:
		return t
	default:
		return EventTypeEvent
	}
}

// ReminderMethod is how a reminder is delivered. Only popups are produced.
type ReminderMethod string

const ReminderPopup ReminderMethod = "popup"

// Reminder fires Minutes before the event starts.
type Reminder struct {
	Minutes int            `json:"minutes"`
	Method  ReminderMethod `json:"method"`
}

// Schedule is either AllDay or Timed. The unexported method closes the set.
type Schedule interface {
	StartDate() Date
	isSchedule()
}

// AllDay spans whole calendar days. End is inclusive.
type AllDay struct {
	Start Date
	End   Date
}

func (a AllDay) StartDate() Date { return a.Start }
func (AllDay) isSchedule() {}

// Timed spans two instants carrying their own zone offset.
type Timed struct {
	Start time.Time
	End   time.Time
}

func (t Timed) StartDate() Date { return DateOf(t.Start) }
func (Timed) isSchedule() {}

// NewAllDay builds an all-day schedule, collapsing an inverted range onto start.
func NewAllDay(start, end Date) AllDay {
	if end.IsZero() || end.Before(start) {
		end = start
	}
	return AllDay{Start: start, End: end}
}

// NewTimed builds a timed schedule. A zero or inverted end becomes start + 1h.
func NewTimed(start, end time.Time) Timed {
	if end.IsZero() || end.Before(start) {
		end = start.Add(DefaultDuration)
	}
	return Timed{Start: start, End: end}
}

// DefaultDuration is applied to timed events that have no usable end.
const DefaultDuration = time.Hour

// EventRecord is the canonical representation of a calendar event, whether it
// was extracted from text or read back from a calendar provider.
type EventRecord struct {
	Title       string
	Description string
	ChildName   string
	Type        EventType
	Schedule    Schedule
	Reminders   []Reminder
	ForceCreate bool

	// SourceID is set only for events that exist on a calendar.
	SourceID string
}

// AllDay reports whether the record uses the all-day variant.
func (e EventRecord) AllDay() bool {
	_, ok := e.Schedule.(AllDay)
	return ok
}

// StartDate returns the calendar date the event starts on.
func (e EventRecord) StartDate() (Date, bool) {
	if e.Schedule == nil {
		return Date{}, false
	}
	d := e.Schedule.StartDate()
	return d, !d.IsZero()
}

// StartInstant returns the start instant of a timed event.
func (e EventRecord) StartInstant() (time.Time, bool) {
	t, ok := e.Schedule.(Timed)
	if !ok || t.Start.IsZero() {
		return time.Time{}, false
	}
	return t.Start, true
}

// Validate reports whether the record is well formed.
func (e EventRecord) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("event title is empty")
	}
	switch s := e.Schedule.(type) {
	case AllDay:
		if s.Start.IsZero() {
			return errors.New("all-day event has no start date")
		}
		if s.End.Before(s.Start) {
			return fmt.Errorf("all-day event ends %s before it starts %s", s.End, s.Start)
		}
	case Timed:
		if s.Start.IsZero() {
			return errors.New("timed event has no start instant")
		}
		if s.End.Before(s.Start) {
			return fmt.Errorf("timed event ends %s before it starts %s", s.End.Format(time.RFC3339), s.Start.Format(time.RFC3339))
		}
	default:
		return errors.New("event has no schedule")
	}
	return nil
}

// eventJSON is the wire layout shared by the parse and create commands.
type eventJSON struct {
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	ChildName     string     `json:"childName,omitempty"`
	EventType     EventType  `json:"eventType"`
	AllDay        bool       `json:"allDay"`
	StartDate     *Date      `json:"startDate,omitempty"`
	EndDate       *Date      `json:"endDate,omitempty"`
	StartDateTime *time.Time `json:"startDateTime,omitempty"`
	EndDateTime   *time.Time `json:"endDateTime,omitempty"`
	Reminders     []Reminder `json:"reminders"`
	ForceCreate   bool       `json:"forceCreate,omitempty"`
	SourceID      string     `json:"sourceId,omitempty"`
}

func (e EventRecord) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Title:       e.Title,
		Description: e.Description,
		ChildName:   e.ChildName,
		EventType:   e.Type,
		Reminders:   e.Reminders,
		ForceCreate: e.ForceCreate,
		SourceID:    e.SourceID,
	}
	if out.Reminders == nil {
		out.Reminders = []Reminder{}
	}
	switch s := e.Schedule.(type) {
	case AllDay:
		out.AllDay = true
		out.StartDate, out.EndDate = &s.Start, &s.End
	case Timed:
		out.StartDateTime, out.EndDateTime = &s.Start, &s.End
	}
	return json.Marshal(out)
}

func (e *EventRecord) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = EventRecord{
		Title:       in.Title,
		Description: in.Description,
		ChildName:   in.ChildName,
		Type:        ParseEventType(string(in.EventType)),
		Reminders:   in.Reminders,
		ForceCreate: in.ForceCreate,
		SourceID:    in.SourceID,
	}
	switch {
	case in.AllDay:
		if in.StartDate == nil {
			return errors.New("all-day event requires startDate")
		}
		end := *in.StartDate
		if in.EndDate != nil {
			end = *in.EndDate
		}
		e.Schedule = NewAllDay(*in.StartDate, end)
	case in.StartDateTime != nil:
		var end time.Time
		if in.EndDateTime != nil {
			end = *in.EndDateTime
		}
		e.Schedule = NewTimed(*in.StartDateTime, end)
	default:
		return errors.New("timed event requires startDateTime")
	}
	return nil
}

// RawCandidate is the loosely typed record an extractor emits.
type RawCandidate struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	EndDate     string `json:"endDate,omitempty"`
	Time        string `json:"time,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	EventType   string `json:"eventType"`
	Description string `json:"description,omitempty"`
	IsAllDay    bool   `json:"isAllDay"`
}

// Calendar describes a calendar the user can write to.
type Calendar struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	Primary         bool   `json:"primary"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}
