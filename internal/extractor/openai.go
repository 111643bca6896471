package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"schoolcal/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4oMini

var eventTypes = []string{"test", "assignment", "fieldtrip", "holiday", "halfday", "conference", "performance", "event"}

var responseSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"events": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"title":       {Type: jsonschema.String, Description: "Concise event name, e.g. \"Math Test Ch. 5\""},
					"date":        {Type: jsonschema.String, Description: "Start date, YYYY-MM-DD"},
					"endDate":     {Type: jsonschema.String, Description: "Last day of a multi-day event, YYYY-MM-DD, or empty"},
					"time":        {Type: jsonschema.String, Description: "Start time, HH:MM 24-hour, or empty if all-day"},
					"endTime":     {Type: jsonschema.String, Description: "End time, HH:MM 24-hour, or empty"},
					"eventType":   {Type: jsonschema.String, Enum: eventTypes},
					"description": {Type: jsonschema.String, Description: "Brief details worth remembering"},
					"isAllDay":    {Type: jsonschema.Boolean},
				},
				Required: []string{"title", "date", "eventType", "isAllDay"},
			},
		},
	},
	Required: []string{"events"},
}

// OpenAI extracts candidates with a chat completion model. Any
// OpenAI-compatible endpoint works through baseURL.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewOpenAI creates an extractor. Empty model and baseURL use the defaults.
func NewOpenAI(logger *slog.Logger, apiKey, baseURL, model string, timeout time.Duration) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Extract asks the model for calendar events in text. Transport and API
// failures are reported as an unavailable collaborator; a response that
// cannot be decoded is a plain error.
func (o *OpenAI) Extract(ctx context.Context, text, childName string) ([]models.RawCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return []models.RawCandidate{}, nil
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	o.logger.Debug("Requesting extraction", "model", o.model, "child", childName, "chars", len(text))
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(text, childName, o.now())},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "school_events",
				Schema: &responseSchema,
			},
		},
	})
	if err != nil {
		return nil, models.Unavailable("extractor", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("extractor returned no choices")
	}

	events, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse extractor response: %w", err)
	}
	o.logger.Info("Extractor returned candidates", "count", len(events), "child", childName)
	return events, nil
}

const systemPrompt = `You are a school calendar event extraction assistant. You read school communications and extract ONLY actual calendar events.`

func buildPrompt(text, childName string, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today's date: %s\n", today.Format(models.DateLayout))
	if childName != "" {
		fmt.Fprintf(&b, "Student: %s\n", childName)
	}
	b.WriteString(`
Instructions:
1. Extract ONLY events that belong on a calendar (tests, assignments, field trips, holidays, conferences, performances, etc.).
2. IGNORE general reminders, instructions, or informational text that are not specific events.
3. Write concise titles ("Math Test Ch. 5", not "Don't forget we have a math test on chapter 5").
4. Use YYYY-MM-DD dates. When the year is missing use `)
	fmt.Fprintf(&b, "%d, or %d if the date has already passed.", today.Year(), today.Year()+1)
	b.WriteString(`
5. Use HH:MM 24-hour times. If no time is mentioned the event is all-day: leave time empty and set isAllDay to true.
6. eventType is one of: ` + strings.Join(eventTypes, ", ") + `.
7. If there are no events, return {"events": []}.

Input text:
`)
	b.WriteString(text)
	return b.String()
}
