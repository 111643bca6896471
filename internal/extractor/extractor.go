// Package extractor produces raw event candidates from free-text notices.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"schoolcal/internal/models"
)

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// parseResponse accepts {"events": [...]}, a bare array, or an array
// embedded in surrounding prose.
func parseResponse(content string) ([]models.RawCandidate, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty extractor response")
	}

	var wrapped struct {
		Events []models.RawCandidate `json:"events"`
	}
	if strings.HasPrefix(content, "{") {
		if err := json.Unmarshal([]byte(content), &wrapped); err == nil {
			return orEmpty(wrapped.Events), nil
		}
	}

	match := jsonArray.FindString(content)
	if match == "" {
		return nil, errors.New("no JSON array found in extractor response")
	}
	var events []models.RawCandidate
	if err := json.Unmarshal([]byte(match), &events); err != nil {
		return nil, fmt.Errorf("decode extractor response: %w", err)
	}
	return orEmpty(events), nil
}

func orEmpty(events []models.RawCandidate) []models.RawCandidate {
	if events == nil {
		return []models.RawCandidate{}
	}
	return events
}

// Static replays a fixed candidate list, ignoring the text.
type Static struct {
	Candidates []models.RawCandidate
}

// LoadStatic reads raw candidates in the same JSON shapes an LLM may return.
func LoadStatic(r io.Reader) (*Static, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	events, err := parseResponse(string(b))
	if err != nil {
		return nil, err
	}
	return &Static{Candidates: events}, nil
}

func (s *Static) Extract(context.Context, string, string) ([]models.RawCandidate, error) {
	return s.Candidates, nil
}
