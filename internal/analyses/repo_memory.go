package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used by tests.
type MemoryRepo struct {
	mu          sync.Mutex
	analyses    map[string]Analysis
	invocations map[string][]Invocation
	prompts     map[string]PromptRecord
	responses   map[string]ResponseRecord
	results     map[string]Result
	findings    map[string][]Finding
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		analyses:    make(map[string]Analysis),
		invocations: make(map[string][]Invocation),
		prompts:     make(map[string]PromptRecord),
		responses:   make(map[string]ResponseRecord),
		results:     make(map[string]Result),
		findings:    make(map[string][]Finding),
	}
}

func (r *MemoryRepo) Create(_ context.Context, analysis Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses[analysis.ID] = analysis
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id string) (Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.analyses[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, id, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.analyses[id]
	if !ok {
		return ErrNotFound
	}
	if analysis.Status != from {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	analysis.Status = to
	analysis.UpdatedAt = now
	if to == StatusProcessing {
		analysis.StartedAt = &now
	}
	r.analyses[id] = analysis
	return nil
}

func (r *MemoryRepo) RecordOutcome(_ context.Context, outcome Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.analyses[outcome.AnalysisID]
	if !ok {
		return ErrNotFound
	}
	r.storeTrail(outcome)
	if res := outcome.Result; res != nil {
		r.results[outcome.AnalysisID] = *res
		r.findings[res.ID] = outcome.Findings
	}
	now := time.Now().UTC()
	analysis.Status = StatusCompleted
	analysis.CompletedAt = &now
	analysis.UpdatedAt = now
	r.analyses[outcome.AnalysisID] = analysis
	return nil
}

func (r *MemoryRepo) MarkError(_ context.Context, id, reason string, outcome *Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.analyses[id]
	if !ok {
		return ErrNotFound
	}
	if outcome != nil {
		r.storeTrail(*outcome)
	}
	now := time.Now().UTC()
	analysis.Status = StatusError
	analysis.ErrorMessage = &reason
	analysis.CompletedAt = &now
	analysis.UpdatedAt = now
	r.analyses[id] = analysis
	return nil
}

func (r *MemoryRepo) storeTrail(outcome Outcome) {
	r.invocations[outcome.AnalysisID] = append(r.invocations[outcome.AnalysisID], outcome.Invocation)
	r.prompts[outcome.Invocation.ID] = outcome.Prompt
	r.responses[outcome.Invocation.ID] = outcome.Response
}

func (r *MemoryRepo) ResultByAnalysisID(_ context.Context, analysisID string) (Result, []Finding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[analysisID]
	if !ok {
		return Result{}, nil, ErrNotFound
	}
	return res, r.findings[res.ID], nil
}

func (r *MemoryRepo) InvocationsByAnalysisID(_ context.Context, analysisID string) ([]Invocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invocation(nil), r.invocations[analysisID]...), nil
}

// PromptByInvocationID is a test helper exposing the stored prompt.
func (r *MemoryRepo) PromptByInvocationID(invocationID string) (PromptRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prompt, ok := r.prompts[invocationID]
	return prompt, ok
}

// ResponseByInvocationID is a test helper exposing the stored response.
func (r *MemoryRepo) ResponseByInvocationID(invocationID string) (ResponseRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	response, ok := r.responses[invocationID]
	return response, ok
}

var _ Repo = (*MemoryRepo)(nil)
