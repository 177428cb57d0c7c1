// Package history stores saved recordings and derives the admin
// aggregates. Entries are append-only: created on an explicit user save,
// deleted only by their owner, never mutated in between.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/petspeakapp/petspeak/pkg/types"
)

var (
	// ErrNotFound reports that no entry exists with the requested id.
	ErrNotFound = errors.New("history: entry not found")

	// ErrForbidden reports that the requesting user does not own the entry.
	ErrForbidden = errors.New("history: entry owned by another user")
)

// Entry is one saved recording.
type Entry struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	AnimalType    types.AnimalType `json:"animalType"`
	Transcription string           `json:"transcription,omitempty"`
	DetectedNeed  types.NeedType   `json:"detectedNeed"`
	Confidence    float64          `json:"confidence"`
	Tips          []string         `json:"tips"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// DailyCount is one calendar day (UTC) in the rolling stats window.
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// Stats is the admin aggregate over all stored entries.
type Stats struct {
	TotalRecordings int `json:"totalRecordings"`
	// TotalUsers is the number of distinct users with at least one entry.
	TotalUsers         int            `json:"totalUsers"`
	AvgConfidence      float64        `json:"avgConfidence"`
	NeedDistribution   map[string]int `json:"needDistribution"`
	AnimalDistribution map[string]int `json:"animalDistribution"`
	// DailyRecordings always holds exactly [StatsWindowDays] days, oldest
	// first, zero-filled for days without recordings.
	DailyRecordings []DailyCount `json:"dailyRecordings"`
}

// StatsWindowDays is the length of the rolling daily-count window.
const StatsWindowDays = 7

// Store persists history entries.
type Store interface {
	// Append stores the entry under a freshly assigned id and returns the
	// stored copy. A zero CreatedAt is stamped with the current UTC time.
	Append(ctx context.Context, e Entry) (Entry, error)

	// ListByUser returns the user's entries, newest first.
	ListByUser(ctx context.Context, userID string) ([]Entry, error)

	// Get returns the entry with the given id or [ErrNotFound].
	Get(ctx context.Context, id string) (Entry, error)

	// Delete removes the entry if the requesting user owns it. Returns
	// [ErrNotFound] for an unknown id and [ErrForbidden] for a non-owner;
	// a forbidden delete leaves the entry intact.
	Delete(ctx context.Context, id, requestingUserID string) error

	// AggregateStats computes [Stats] over all entries, with the daily
	// window ending on now's UTC calendar date.
	AggregateStats(ctx context.Context, now time.Time) (*Stats, error)
}

const dateLayout = "2006-01-02"

// dailyWindow builds the zero-filled window ending on now's UTC date from a
// date→count map. Days outside the window are dropped.
func dailyWindow(now time.Time, counts map[string]int) []DailyCount {
	day := now.UTC().Truncate(24 * time.Hour)
	out := make([]DailyCount, 0, StatsWindowDays)
	for i := StatsWindowDays - 1; i >= 0; i-- {
		date := day.AddDate(0, 0, -i).Format(dateLayout)
		out = append(out, DailyCount{Date: date, Count: counts[date]})
	}
	return out
}
