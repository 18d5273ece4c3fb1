package snapshots

import (
	"context"
	"sync"
)

// MemoryRepo stores snapshot bundles in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu         sync.RWMutex
	byAnalysis map[string]Bundle
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byAnalysis: make(map[string]Bundle)}
}

// Persist stores the bundle keyed by analysis.
func (r *MemoryRepo) Persist(ctx context.Context, bundle Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAnalysis[bundle.Snapshot.AnalysisID] = bundle
	return nil
}

// GetByAnalysisID returns the snapshot for an analysis.
func (r *MemoryRepo) GetByAnalysisID(ctx context.Context, analysisID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	bundle, ok := r.byAnalysis[analysisID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return bundle.Snapshot, nil
}

// SummaryByAnalysisID builds the compact projection.
func (r *MemoryRepo) SummaryByAnalysisID(ctx context.Context, analysisID string) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	bundle, ok := r.byAnalysis[analysisID]
	if !ok {
		return Summary{}, ErrNotFound
	}

	summary := Summary{
		SnapshotID:    bundle.Snapshot.ID,
		StageCount:    len(bundle.Stages),
		ProgressCount: len(bundle.Progress),
	}
	if bundle.Project != nil {
		summary.ProjectCode = bundle.Project.Code
		summary.ProjectName = bundle.Project.Name
	}
	if bundle.Safety != nil {
		summary.HasSafety = true
		summary.TotalChecked = bundle.Safety.TotalChecked
		summary.AllCompliant = bundle.Safety.AllCompliant
	}
	return summary, nil
}

// BundleByAnalysisID returns the full stored bundle (test helper).
func (r *MemoryRepo) BundleByAnalysisID(analysisID string) (Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bundle, ok := r.byAnalysis[analysisID]
	return bundle, ok
}

var _ Repo = (*MemoryRepo)(nil)
