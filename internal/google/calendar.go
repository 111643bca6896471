package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"schoolcal/internal/models"
)

const (
	credentialsFile = "credentials.json"

	// Private extended properties stamped on every event this tool creates.
	propSyncMarker = "schoolCalendarSync"
	propChildName  = "childName"
	propEventType  = "eventType"
)

var scopes = []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope}

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service  *calendar.Service
	logger   *slog.Logger
	timeZone string
}

// NewClient creates a new Google Calendar client for a previously authorized
// account. The token is read from token-<accountName>.json. Timed events are
// written in tz.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName string, tz *time.Location) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	tokenFile := TokenFile(accountName)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return NewCalendarClient(service, logger, tz), nil
}

// NewCalendarClient wraps an existing service.
func NewCalendarClient(service *calendar.Service, logger *slog.Logger, tz *time.Location) *CalendarClient {
	if logger == nil {
		logger = slog.Default()
	}
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarClient{service: service, logger: logger, timeZone: tz.String()}
}

// ListCalendars returns the calendars on the account.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]models.Calendar, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make([]models.Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		calendars = append(calendars, models.Calendar{
			ID:              item.Id,
			Summary:         item.Summary,
			Primary:         item.Primary,
			BackgroundColor: item.BackgroundColor,
		})
	}
	return calendars, nil
}

// ListEvents fetches every event between timeMin and timeMax, with recurring
// events expanded into single instances.
func (c *CalendarClient) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]models.EventRecord, error) {
	c.logger.Debug("Fetching events", "calendarID", calendarID, "timeMin", timeMin, "timeMax", timeMax)

	var items []*calendar.Event
	err := c.service.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		OrderBy("startTime").
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(items), "calendarID", calendarID)
	return toRecords(items), nil
}

// CreateEvent inserts event and returns it as stored, with SourceID set.
func (c *CalendarClient) CreateEvent(ctx context.Context, calendarID string, event models.EventRecord) (models.EventRecord, error) {
	created, err := c.service.Events.Insert(calendarID, fromRecord(event, c.timeZone)).Context(ctx).Do()
	if err != nil {
		return models.EventRecord{}, fmt.Errorf("failed to insert event: %w", err)
	}
	rec, ok := toRecord(created)
	if !ok {
		// The API echoes what we sent; fall back to the request if it did not.
		rec = event
		rec.SourceID = created.Id
	}
	rec.ForceCreate = false
	return rec, nil
}

// toRecords converts Google Calendar events to EventRecords, dropping any
// without a usable start.
func toRecords(items []*calendar.Event) []models.EventRecord {
	records := make([]models.EventRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := toRecord(item); ok {
			records = append(records, rec)
		}
	}
	return records
}

func toRecord(item *calendar.Event) (models.EventRecord, bool) {
	if item == nil || item.Start == nil {
		return models.EventRecord{}, false
	}

	rec := models.EventRecord{
		Title:       item.Summary,
		Description: item.Description,
		Type:        models.EventTypeEvent,
		SourceID:    item.Id,
	}
	if item.ExtendedProperties != nil {
		rec.ChildName = item.ExtendedProperties.Private[propChildName]
		rec.Type = models.ParseEventType(item.ExtendedProperties.Private[propEventType])
	}
	if item.Reminders != nil {
		for _, o := range item.Reminders.Overrides {
			rec.Reminders = append(rec.Reminders, models.Reminder{Minutes: int(o.Minutes), Method: models.ReminderMethod(o.Method)})
		}
	}

	switch {
	case item.Start.Date != "":
		start, err := models.ParseDate(item.Start.Date)
		if err != nil {
			return models.EventRecord{}, false
		}
		end := start
		if item.End != nil && item.End.Date != "" {
			// Google's all-day end date is exclusive.
			if parsed, err := models.ParseDate(item.End.Date); err == nil {
				end = parsed.AddDays(-1)
			}
		}
		rec.Schedule = models.NewAllDay(start, end)
	case item.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return models.EventRecord{}, false
		}
		var end time.Time
		if item.End != nil && item.End.DateTime != "" {
			end, _ = time.Parse(time.RFC3339, item.End.DateTime)
		}
		rec.Schedule = models.NewTimed(start, end)
	default:
		return models.EventRecord{}, false
	}
	return rec, true
}

func fromRecord(rec models.EventRecord, timeZone string) *calendar.Event {
	ev := &calendar.Event{
		Summary:     rec.Title,
		Description: rec.Description,
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       make([]*calendar.EventReminder, 0, len(rec.Reminders)),
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				propSyncMarker: "true",
				propChildName:  rec.ChildName,
				propEventType:  string(models.ParseEventType(string(rec.Type))),
			},
		},
	}
	for _, r := range rec.Reminders {
		ev.Reminders.Overrides = append(ev.Reminders.Overrides, &calendar.EventReminder{
			Method:  string(r.Method),
			Minutes: int64(r.Minutes),
		})
	}

	switch s := rec.Schedule.(type) {
	case models.AllDay:
		ev.Start = &calendar.EventDateTime{Date: s.Start.String()}
		ev.End = &calendar.EventDateTime{Date: s.End.AddDays(1).String()}
	case models.Timed:
		ev.Start = &calendar.EventDateTime{DateTime: s.Start.Format(time.RFC3339), TimeZone: timeZone}
		ev.End = &calendar.EventDateTime{DateTime: s.End.Format(time.RFC3339), TimeZone: timeZone}
	}
	return ev
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// TokenFile is the path of the token for accountName.
func TokenFile(accountName string) string {
	return "token-" + accountName + ".json"
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the accounts that have a token file in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
