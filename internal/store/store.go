// Package store persists resolved timelines and the resolution log behind a
// single interface with SQLite and Postgres implementations. Cached timelines
// are immutable: a cache key fully determines its payload, so writes after
// the first are no-ops.
package store

import (
	"context"
	"time"

	"github.com/taxfoundry/policy-cli/internal/model"
)

// Resolution records one resolve operation: which reforms were applied to
// which baseline, and the cache key of the resulting timeline.
type Resolution struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Baseline  string    `json:"baseline"`
	Reforms   []string  `json:"reforms"`
	Digests   []string  `json:"digests"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolutionFilter specifies criteria for listing resolutions.
type ResolutionFilter struct {
	Reform string `json:"reform,omitempty"` // matches any applied reform identifier
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// CacheStats summarizes the timeline cache.
type CacheStats struct {
	Entries int       `json:"entries"`
	Bytes   int64     `json:"bytes"`
	Oldest  time.Time `json:"oldest"`
	Newest  time.Time `json:"newest"`
}

// Store defines the persistence interface for the resolution engine.
type Store interface {
	// Timeline cache
	GetTimeline(ctx context.Context, key string) (*model.Timeline, error) // nil, nil on miss
	PutTimeline(ctx context.Context, key string, tl *model.Timeline) error
	CacheStats(ctx context.Context) (*CacheStats, error)
	ClearCache(ctx context.Context) (int, error)

	// Resolution log
	RecordResolution(ctx context.Context, res Resolution) (*Resolution, error)
	ListResolutions(ctx context.Context, filter ResolutionFilter) ([]Resolution, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
