package analyses

import "context"

// Repo defines persistence for analyses and their audit trail.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, id string) (Analysis, error)
	// UpdateStatus moves an analysis along the lifecycle. Guarded
	// transitions return ErrInvalidTransition when the row is no longer
	// in the expected state.
	UpdateStatus(ctx context.Context, id, from, to string) error
	// RecordOutcome commits the invocation, prompt, response, result and
	// findings in one transaction and marks the analysis completed.
	RecordOutcome(ctx context.Context, outcome Outcome) error
	// MarkError records the failure reason and, when an invocation was
	// staged, its audit trail.
	MarkError(ctx context.Context, id, reason string, outcome *Outcome) error
	ResultByAnalysisID(ctx context.Context, analysisID string) (Result, []Finding, error)
	InvocationsByAnalysisID(ctx context.Context, analysisID string) ([]Invocation, error)
}
