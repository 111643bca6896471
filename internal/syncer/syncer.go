package syncer

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"schoolcal/internal/dedupe"
	"schoolcal/internal/models"
)

// ReasonDuplicate is the skip reason for candidates already on the calendar.
const ReasonDuplicate = "duplicate"

// Calendar is the calendar provider the syncer reads from and writes to.
type Calendar interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]models.EventRecord, error)
	CreateEvent(ctx context.Context, calendarID string, event models.EventRecord) (models.EventRecord, error)
}

// Skip records a candidate that was not created and why.
type Skip struct {
	Candidate models.EventRecord `json:"candidate"`
	Reason    string             `json:"reason"`
}

// Report is the outcome of a batch. Created and Skipped are never nil.
type Report struct {
	Created []models.EventRecord `json:"created"`
	Skipped []Skip               `json:"skipped"`

	// Pending lists what a dry run would have created.
	Pending []models.EventRecord `json:"pending,omitempty"`

	// Rejected lists extractor output that could not be normalized.
	Rejected []Rejection `json:"rejected,omitempty"`
}

// Options tunes a Syncer. The zero value is a sequential, live run.
type Options struct {
	Concurrency int
	DryRun      bool
	Location    *time.Location
	Lookahead   time.Duration
	Now         func() time.Time
}

// Syncer orchestrates duplicate filtering and event creation for one calendar.
type Syncer struct {
	logger     *slog.Logger
	calendar   Calendar
	calendarID string
	opts       Options
}

// NewSyncer creates a new Syncer.
func NewSyncer(logger *slog.Logger, cal Calendar, calendarID string, opts Options) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = 365 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{
		logger:     logger,
		calendar:   cal,
		calendarID: calendarID,
		opts:       opts,
	}
}

type outcome struct {
	created *models.EventRecord
	pending *models.EventRecord
	skip    *Skip
}

// Synchronize classifies each candidate against existing and creates the rest.
// Duplicates are judged only against the snapshot passed in, never against
// events created earlier in the same batch. A failed creation is recorded in
// Skipped and does not stop the batch. Output preserves input order.
func (s *Syncer) Synchronize(ctx context.Context, candidates, existing []models.EventRecord) Report {
	snapshot := slices.Clone(existing)
	results := make([]outcome, len(candidates))

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			results[i] = s.syncEvent(ctx, candidate, snapshot)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Created: []models.EventRecord{}, Skipped: []Skip{}}
	for _, r := range results {
		switch {
		case r.created != nil:
			report.Created = append(report.Created, *r.created)
		case r.pending != nil:
			report.Pending = append(report.Pending, *r.pending)
		case r.skip != nil:
			report.Skipped = append(report.Skipped, *r.skip)
		}
	}

	s.logger.Info("Sync batch finished.",
		"calendarID", s.calendarID,
		"candidates", len(candidates),
		"created", len(report.Created),
		"skipped", len(report.Skipped),
		"pending", len(report.Pending))
	return report
}

// syncEvent handles the logic for a single candidate.
func (s *Syncer) syncEvent(ctx context.Context, candidate models.EventRecord, existing []models.EventRecord) outcome {
	if dedupe.IsDuplicate(candidate, existing) {
		if !candidate.ForceCreate {
			s.logger.Debug("Candidate already on calendar, skipping.", "title", candidate.Title)
			return outcome{skip: &Skip{Candidate: candidate, Reason: ReasonDuplicate}}
		}
		s.logger.Info("Creating duplicate on request.", "title", candidate.Title)
	}

	if s.opts.DryRun {
		s.logger.Info("[DRY RUN] Would create event", "title", candidate.Title, "calendarID", s.calendarID)
		return outcome{pending: &candidate}
	}

	created, err := s.calendar.CreateEvent(ctx, s.calendarID, candidate)
	if err != nil {
		s.logger.Error("Failed to create event", "title", candidate.Title, "error", err)
		return outcome{skip: &Skip{Candidate: candidate, Reason: err.Error()}}
	}
	s.logger.Info("Created event.", "title", created.Title, "sourceID", created.SourceID)
	return outcome{created: &created}
}

// Classification is a candidate annotated with its duplicate status.
type Classification struct {
	Event       models.EventRecord `json:"event"`
	IsDuplicate bool               `json:"isDuplicate"`
}

// Classify flags duplicates without creating anything.
func Classify(candidates, existing []models.EventRecord) (classified []Classification, duplicates int) {
	classified = make([]Classification, 0, len(candidates))
	for _, c := range candidates {
		dup := dedupe.IsDuplicate(c, existing)
		if dup {
			duplicates++
		}
		classified = append(classified, Classification{Event: c, IsDuplicate: dup})
	}
	return classified, duplicates
}
