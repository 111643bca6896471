// Package dedupe decides whether two calendar events describe the same
// real-world occurrence.
package dedupe

import (
	"time"

	"schoolcal/internal/models"
)

const (
	// MinSimilarity is exclusive: titles must score strictly above it.
	MinSimilarity = 85
	// MaxDateDrift is inclusive, in calendar days.
	MaxDateDrift = 1
	// TimeWindow is inclusive.
	TimeWindow = 120 * time.Minute
)

// IsDuplicate reports whether candidate matches any of existing.
func IsDuplicate(candidate models.EventRecord, existing []models.EventRecord) bool {
	for _, e := range existing {
		if Match(candidate, e) {
			return true
		}
	}
	return false
}

// Match applies the pairwise rule: start dates at most one day apart, titles
// scoring above MinSimilarity, and for two timed events, starts within
// TimeWindow. An all-day event on either side skips the time check.
func Match(a, b models.EventRecord) bool {
	da, ok := a.StartDate()
	if !ok {
		return false
	}
	db, ok := b.StartDate()
	if !ok {
		return false
	}
	if abs(da.DaysUntil(db)) > MaxDateDrift {
		return false
	}
	if Similarity(a.Title, b.Title) <= MinSimilarity {
		return false
	}
	if a.AllDay() || b.AllDay() {
		return true
	}
	ta, ok := a.StartInstant()
	if !ok {
		return false
	}
	tb, ok := b.StartInstant()
	if !ok {
		return false
	}
	return absDuration(ta.Sub(tb)) <= TimeWindow
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
