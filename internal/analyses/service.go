package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"siteaudit-backend/internal/llm"
	"siteaudit-backend/internal/queue"
	"siteaudit-backend/internal/shared/metrics"
	"siteaudit-backend/internal/shared/telemetry"
	"siteaudit-backend/internal/snapshots"
	"siteaudit-backend/internal/webhook"
)

// Invoker runs the model cascade. Satisfied by *llm.Cascade.
type Invoker interface {
	Invoke(ctx context.Context, system, user, preferredModel string, temperature float32) (*llm.ChatResponse, error)
}

// StartInput carries the audit request and its per-request overrides.
type StartInput struct {
	Payload           map[string]any
	Model             string
	Temperature       *float32
	SystemPrompt      string
	ExtraInstructions string
}

// Service orchestrates the audit pipeline: persist the snapshot, run the
// model cascade, record the audit trail and notify.
type Service struct {
	Repo               Repo
	Snapshots          snapshots.Repo
	LLM                Invoker
	Queue              queue.Client
	Dispatcher         *Dispatcher
	Notifier           *webhook.Notifier
	DefaultTemperature float32
}

// Start registers a new analysis in the pending state and hands it to the
// configured transport: SQS when a queue client is wired, otherwise the
// in-process pool. The stored request lets either path run detached from
// this call.
func (s *Service) Start(ctx context.Context, input StartInput) (Analysis, error) {
	if len(input.Payload) == 0 {
		return Analysis{}, errors.New("payload is required")
	}

	temperature := s.DefaultTemperature
	if input.Temperature != nil {
		temperature = *input.Temperature
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:                   uuid.NewString(),
		ProjectCode:          projectCode(input.Payload),
		Status:               StatusPending,
		RequestPayload:       input.Payload,
		ModelOverride:        strings.TrimSpace(input.Model),
		Temperature:          temperature,
		SystemPromptOverride: input.SystemPrompt,
		ExtraInstructions:    input.ExtraInstructions,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	if s.Queue != nil {
		msg := queue.NewMessage(analysis.ID, requestIDFromContext(ctx))
		if err := s.Queue.Send(ctx, msg); err != nil {
			reason := fmt.Sprintf("enqueue failed: %s", sanitizeError(err))
			if markErr := s.Repo.MarkError(context.Background(), analysis.ID, reason, nil); markErr != nil {
				telemetry.Error("analysis.mark_error_failed", map[string]any{
					"analysis_id": analysis.ID,
					"error":       markErr.Error(),
				})
			}
			return Analysis{}, fmt.Errorf("enqueue analysis: %w", err)
		}
		return analysis, nil
	}

	if s.Dispatcher == nil {
		return Analysis{}, ErrQueueNotConfigured
	}
	s.Dispatcher.Dispatch(backgroundWithRequestID(ctx), func(ctx context.Context) {
		s.Process(ctx, analysis.ID)
	})
	return analysis, nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// Result returns the derived audit result with its findings.
func (s *Service) Result(ctx context.Context, analysisID string) (Result, []Finding, error) {
	return s.Repo.ResultByAnalysisID(ctx, analysisID)
}

// Invocations returns the provider-call audit trail for an analysis.
func (s *Service) Invocations(ctx context.Context, analysisID string) ([]Invocation, error) {
	return s.Repo.InvocationsByAnalysisID(ctx, analysisID)
}

// SnapshotSummary returns the compact projection of the persisted snapshot.
func (s *Service) SnapshotSummary(ctx context.Context, analysisID string) (snapshots.Summary, error) {
	return s.Snapshots.SummaryByAnalysisID(ctx, analysisID)
}

// Process runs the whole pipeline for one analysis. Any failure after the
// snapshot commit leaves the snapshot retrievable and the analysis in the
// error state.
func (s *Service) Process(ctx context.Context, analysisID string) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, analysisID, fmt.Errorf("panic: %v", r), nil, nil)
		}
	}()

	startedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, analysisID, StatusPending, StatusProcessing); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// Another worker claimed it; nothing to do.
			telemetry.Warn("analysis.already_claimed", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysisID,
			})
			return
		}
		s.fail(ctx, analysisID, fmt.Errorf("set processing failed: %w", err), nil, &startedAt)
		return
	}

	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		s.fail(ctx, analysisID, fmt.Errorf("analysis lookup: %w", err), nil, &startedAt)
		return
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysis.ID,
		"project_code":      analysis.ProjectCode,
		"status":            StatusProcessing,
		"status_transition": "pending->processing",
	})

	if s.Snapshots == nil || s.LLM == nil {
		s.fail(ctx, analysisID, errors.New("missing pipeline dependencies"), nil, &startedAt)
		return
	}

	// The snapshot commits on its own so a downstream LLM failure never
	// loses the ingested data.
	bundle := snapshots.Map(analysisID, analysis.RequestPayload)
	if err := s.Snapshots.Persist(ctx, bundle); err != nil {
		s.fail(ctx, analysisID, fmt.Errorf("persist snapshot: %w", err), nil, &startedAt)
		return
	}

	system, user := BuildPrompt(analysis.RequestPayload, analysis.SystemPromptOverride, analysis.ExtraInstructions)
	outcome := stageOutcome(analysisID, analysis.ModelOverride, system, user)

	callStart := time.Now()
	resp, err := s.LLM.Invoke(ctx, system, user, analysis.ModelOverride, analysis.Temperature)
	outcome.Invocation.DurationMs = time.Since(callStart).Milliseconds()
	if err != nil {
		detail := sanitizeError(err)
		outcome.Invocation.ErrorDetail = &detail
		s.fail(ctx, analysisID, fmt.Errorf("llm cascade: %w", err), &outcome, &startedAt)
		return
	}

	outcome.Invocation.ModelUsed = resp.Model
	outcome.Invocation.Success = true
	if u := resp.Usage; u != nil {
		outcome.Invocation.PromptTokens = &u.PromptTokens
		outcome.Invocation.CompletionTokens = &u.CompletionTokens
		outcome.Invocation.TotalTokens = &u.TotalTokens
	}

	parsed := llm.RepairParse(resp.Content)
	outcome.Response.RawText = resp.Content
	outcome.Response.Parsed = parsed

	result, findings := ExtractResult(resp.Content)
	result.ID = uuid.NewString()
	result.AnalysisID = analysisID
	result.CreatedAt = time.Now().UTC()
	for i := range findings {
		findings[i].ID = uuid.NewString()
		findings[i].ResultID = result.ID
	}
	outcome.Result = &result
	outcome.Findings = findings

	if err := s.Repo.RecordOutcome(ctx, outcome); err != nil {
		s.fail(ctx, analysisID, fmt.Errorf("record outcome: %w", err), nil, &startedAt)
		return
	}

	completedAt := time.Now().UTC()
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysis.ID,
		"project_code":      analysis.ProjectCode,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"model_used":        resp.Model,
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})

	s.notify(analysis, StatusCompleted)
}

// fail moves the analysis to the error state. It runs on a background
// context so a cancelled pipeline context cannot block the bookkeeping.
func (s *Service) fail(ctx context.Context, analysisID string, err error, outcome *Outcome, startedAt *time.Time) {
	reason := sanitizeError(err)
	if markErr := s.Repo.MarkError(context.Background(), analysisID, reason, outcome); markErr != nil {
		telemetry.Error("analysis.mark_error_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"error":       markErr.Error(),
			"orig":        reason,
		})
	}
	completedAt := time.Now().UTC()
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"status":            StatusError,
		"status_transition": "processing->error",
		"error":             reason,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})

	if analysis, getErr := s.Repo.GetByID(context.Background(), analysisID); getErr == nil {
		s.notify(analysis, StatusError)
	}
}

func (s *Service) notify(analysis Analysis, state string) {
	if !s.Notifier.Enabled() {
		return
	}
	event := webhook.Event{
		AnalysisID:  analysis.ID,
		ProjectCode: analysis.ProjectCode,
		State:       state,
	}
	if state == StatusCompleted {
		event.ResultURL = "/api/v1/analyses/" + analysis.ID
	}
	s.Notifier.NotifyAsync(event)
}

// stageOutcome builds the audit-trail skeleton before the provider call so
// a failed cascade still leaves a prompt and invocation on record.
func stageOutcome(analysisID, model, system, user string) Outcome {
	invocationID := uuid.NewString()
	return Outcome{
		AnalysisID: analysisID,
		Invocation: Invocation{
			ID:         invocationID,
			AnalysisID: analysisID,
			ModelUsed:  model,
			CreatedAt:  time.Now().UTC(),
		},
		Prompt: PromptRecord{
			ID:           uuid.NewString(),
			InvocationID: invocationID,
			SystemPrompt: system,
			UserPrompt:   user,
		},
		Response: ResponseRecord{
			ID:           uuid.NewString(),
			InvocationID: invocationID,
		},
	}
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
