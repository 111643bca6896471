package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolcal/internal/models"
	"schoolcal/internal/normalize"
)

// windowPadding keeps neighbouring-day events in the snapshot so the
// one-day drift allowed by the matcher can see them.
const windowPadding = 2 * 24 * time.Hour

// Extractor turns free text into raw candidates.
type Extractor interface {
	Extract(ctx context.Context, text, childName string) ([]models.RawCandidate, error)
}

// Rejection is extractor output that failed normalization.
type Rejection struct {
	Candidate models.RawCandidate `json:"candidate"`
	Reason    string              `json:"reason"`
}

// Extract runs the extractor and normalizes its output. Extraction failures
// yield zero candidates unless the extractor is unavailable altogether.
func (s *Syncer) Extract(ctx context.Context, ex Extractor, text, childName string) ([]models.EventRecord, []Rejection, error) {
	raws, err := ex.Extract(ctx, text, childName)
	if err != nil {
		if errors.Is(err, models.ErrCollaboratorUnavailable) {
			return nil, nil, err
		}
		s.logger.Warn("Extraction failed, continuing with no candidates.", "error", err)
		return []models.EventRecord{}, nil, nil
	}

	candidates := make([]models.EventRecord, 0, len(raws))
	var rejected []Rejection
	for _, raw := range raws {
		rec, err := normalize.Normalize(raw, childName, s.opts.Location)
		if err != nil {
			s.logger.Warn("Dropping malformed candidate.", "title", raw.Title, "error", err)
			rejected = append(rejected, Rejection{Candidate: raw, Reason: err.Error()})
			continue
		}
		candidates = append(candidates, rec)
	}
	s.logger.Info("Extracted candidates.", "child", childName, "count", len(candidates), "rejected", len(rejected))
	return candidates, rejected, nil
}

// FetchExisting reads the calendar once for a batch. The window runs from now
// to now plus the lookahead and is widened to cover every candidate.
func (s *Syncer) FetchExisting(ctx context.Context, candidates []models.EventRecord) ([]models.EventRecord, error) {
	timeMin, timeMax := s.window(candidates)
	existing, err := s.calendar.ListEvents(ctx, s.calendarID, timeMin, timeMax)
	if err != nil {
		if errors.Is(err, models.ErrCollaboratorUnavailable) {
			return nil, err
		}
		return nil, models.Unavailable("calendar", fmt.Errorf("list events: %w", err))
	}
	s.logger.Info("Fetched existing events.", "calendarID", s.calendarID, "count", len(existing))
	return existing, nil
}

func (s *Syncer) window(candidates []models.EventRecord) (time.Time, time.Time) {
	now := s.opts.Now()
	timeMin, timeMax := now, now.Add(s.opts.Lookahead)
	for _, c := range candidates {
		d, ok := c.StartDate()
		if !ok {
			continue
		}
		midnight := d.In(s.opts.Location)
		if lo := midnight.Add(-windowPadding); lo.Before(timeMin) {
			timeMin = lo
		}
		if hi := midnight.Add(windowPadding); hi.After(timeMax) {
			timeMax = hi
		}
	}
	return timeMin, timeMax
}

// Create synchronizes already normalized candidates against a fresh snapshot.
func (s *Syncer) Create(ctx context.Context, candidates []models.EventRecord) (Report, error) {
	existing, err := s.FetchExisting(ctx, candidates)
	if err != nil {
		return Report{}, err
	}
	return s.Synchronize(ctx, candidates, existing), nil
}

// CheckDuplicates classifies candidates against a fresh snapshot.
func (s *Syncer) CheckDuplicates(ctx context.Context, candidates []models.EventRecord) ([]Classification, int, error) {
	existing, err := s.FetchExisting(ctx, candidates)
	if err != nil {
		return nil, 0, err
	}
	classified, dups := Classify(candidates, existing)
	return classified, dups, nil
}

// Run performs a full cycle: extract, normalize, fetch, synchronize.
func (s *Syncer) Run(ctx context.Context, ex Extractor, text, childName string) (Report, error) {
	s.logger.Info("Starting sync cycle.", "child", childName, "calendarID", s.calendarID)

	candidates, rejected, err := s.Extract(ctx, ex, text, childName)
	if err != nil {
		return Report{}, fmt.Errorf("failed to extract events: %w", err)
	}
	report, err := s.Create(ctx, candidates)
	if err != nil {
		return Report{}, fmt.Errorf("failed to fetch existing events: %w", err)
	}
	report.Rejected = rejected
	return report, nil
}
