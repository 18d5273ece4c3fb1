package snapshots

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no snapshot exists for a lookup.
var ErrNotFound = errors.New("not found")

// Repo defines persistence operations for snapshots and their sub-records.
type Repo interface {
	// Persist writes the bundle atomically; the snapshot and every
	// sub-record commit together or not at all.
	Persist(ctx context.Context, bundle Bundle) error
	// GetByAnalysisID returns the snapshot for an analysis.
	GetByAnalysisID(ctx context.Context, analysisID string) (Snapshot, error)
	// SummaryByAnalysisID returns the compact read projection.
	SummaryByAnalysisID(ctx context.Context, analysisID string) (Summary, error)
}
