package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"schoolcal/internal/models"
)

const (
	// DefaultEndpoint is iCloud's CalDAV root. Any CalDAV server works.
	DefaultEndpoint = "https://caldav.icloud.com/"

	propChildName = "X-SCHOOLCAL-CHILD"
	propEventType = "X-SCHOOLCAL-TYPE"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "schoolcal/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient is a client for interacting with a CalDAV server.
// Calendar IDs are calendar collection paths.
type CalDAVClient struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	loc          *time.Location
}

// NewClient creates a CalDAVClient. Floating times read from the server are
// interpreted in loc.
func NewClient(logger *slog.Logger, endpoint, username, password string, loc *time.Location) (*CalDAVClient, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	return &CalDAVClient{caldavClient: caldavClient, logger: logger, loc: loc}, nil
}

// ListCalendars discovers the user's calendars.
func (c *CalDAVClient) ListCalendars(ctx context.Context) ([]models.Calendar, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}

	out := make([]models.Calendar, 0, len(calendars))
	for _, cal := range calendars {
		out = append(out, models.Calendar{ID: cal.Path, Summary: cal.Name})
	}
	return out, nil
}

// FindCalendar returns the path of the calendar with the given display name.
func (c *CalDAVClient) FindCalendar(ctx context.Context, name string) (string, error) {
	c.logger.Info("Finding CalDAV calendar", "calendarName", name)
	calendars, err := c.ListCalendars(ctx)
	if err != nil {
		return "", err
	}
	for _, cal := range calendars {
		if cal.Summary == name {
			c.logger.Info("Successfully found CalDAV calendar", "path", cal.ID)
			return cal.ID, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// ListEvents runs a calendar-query for VEVENTs overlapping the range.
func (c *CalDAVClient) ListEvents(ctx context.Context, calendarPath string, timeMin, timeMax time.Time) ([]models.EventRecord, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
				AllComps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: timeMin,
				End:   timeMax,
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var records []models.EventRecord
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		records = append(records, fromICal(obj.Data, c.loc)...)
	}
	c.logger.Info("Successfully fetched events from CalDAV", "count", len(records), "path", calendarPath)
	return records, nil
}

// CreateEvent writes event as a new calendar object named after a fresh UID.
func (c *CalDAVClient) CreateEvent(ctx context.Context, calendarPath string, event models.EventRecord) (models.EventRecord, error) {
	uid := GenerateUID()
	c.logger.Debug("Creating event on CalDAV server", "eventTitle", event.Title, "uid", uid)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//schoolcal//EN")
	cal.Children = append(cal.Children, toICal(event, uid, time.Now().UTC()))

	eventPath := path.Join(calendarPath, uid+".ics")
	if _, err := c.caldavClient.PutCalendarObject(ctx, eventPath, cal); err != nil {
		return models.EventRecord{}, fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}

	c.logger.Info("Successfully created event on CalDAV server", "eventTitle", event.Title)
	event.SourceID = uid
	event.ForceCreate = false
	return event, nil
}

// toICal converts an EventRecord to a VEVENT with one VALARM per reminder.
func toICal(event models.EventRecord, uid string, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)

	switch s := event.Schedule.(type) {
	case models.AllDay:
		ve.Props.SetDate(ical.PropDateTimeStart, s.Start.In(time.UTC))
		ve.Props.SetDate(ical.PropDateTimeEnd, s.End.AddDays(1).In(time.UTC))
	case models.Timed:
		ve.Props.SetDateTime(ical.PropDateTimeStart, s.Start.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, s.End.UTC())
	}

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.ChildName != "" {
		ve.Props.SetText(propChildName, event.ChildName)
	}
	ve.Props.SetText(propEventType, string(models.ParseEventType(string(event.Type))))

	for _, r := range event.Reminders {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, event.Title)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.SetDuration(-time.Duration(r.Minutes) * time.Minute)
		alarm.Props.Set(trigger)
		ve.Children = append(ve.Children, alarm)
	}
	return ve
}

// fromICal converts every VEVENT in cal. Events without a parseable start are dropped.
func fromICal(cal *ical.Calendar, loc *time.Location) []models.EventRecord {
	var records []models.EventRecord
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		rec, ok := eventFromComponent(comp, loc)
		if ok {
			records = append(records, rec)
		}
	}
	return records
}

func eventFromComponent(comp *ical.Component, loc *time.Location) (models.EventRecord, bool) {
	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return models.EventRecord{}, false
	}

	rec := models.EventRecord{
		Title:       textProp(comp, ical.PropSummary),
		Description: textProp(comp, ical.PropDescription),
		ChildName:   textProp(comp, propChildName),
		Type:        models.ParseEventType(textProp(comp, propEventType)),
		SourceID:    textProp(comp, ical.PropUID),
	}

	start, err := startProp.DateTime(loc)
	if err != nil {
		return models.EventRecord{}, false
	}
	// UTC values must land on the local calendar day.
	start = start.In(loc)
	endProp := comp.Props.Get(ical.PropDateTimeEnd)

	if isDate(startProp) {
		startDate := models.DateOf(start)
		endDate := startDate
		if endProp != nil {
			if end, err := endProp.DateTime(loc); err == nil {
				// DTEND is exclusive for date values.
				endDate = models.DateOf(end).AddDays(-1)
			}
		}
		rec.Schedule = models.NewAllDay(startDate, endDate)
	} else {
		var end time.Time
		if endProp != nil {
			if t, err := endProp.DateTime(loc); err == nil {
				end = t.In(loc)
			}
		}
		rec.Schedule = models.NewTimed(start, end)
	}

	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		trigger := child.Props.Get(ical.PropTrigger)
		if trigger == nil {
			continue
		}
		// Only relative triggers before the start become reminders.
		d, err := trigger.Duration()
		if err != nil || d >= 0 {
			continue
		}
		rec.Reminders = append(rec.Reminders, models.Reminder{Minutes: int(-d / time.Minute), Method: models.ReminderPopup})
	}
	return rec, true
}

func textProp(comp *ical.Component, name string) string {
	v, err := comp.Props.Text(name)
	if err != nil {
		return ""
	}
	return v
}

func isDate(prop *ical.Prop) bool {
	return prop.ValueType() == ical.ValueDate || len(strings.TrimSpace(prop.Value)) == len("20060102")
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
