package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"siteaudit-backend/internal/shared/metrics"
	"siteaudit-backend/internal/shared/telemetry"
)

const (
	defaultMaxCandidates    = 5
	defaultRateLimitRetries = 3
	defaultBaseBackoff      = time.Second
)

// CandidateFailure records why one candidate model was abandoned.
type CandidateFailure struct {
	Model string
	Err   error
}

// ExhaustedError is returned when every candidate model failed.
type ExhaustedError struct {
	Failures []CandidateFailure
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	b.WriteString("all candidate models exhausted")
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s: %v", f.Model, f.Err)
	}
	return b.String()
}

// Cascade tries candidate models in order until one produces a usable answer.
type Cascade struct {
	Client           Client
	Registry         *Registry
	MaxCandidates    int
	RateLimitRetries int
	BaseBackoff      time.Duration

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCascade constructs a Cascade with defaults applied.
func NewCascade(client Client, registry *Registry) *Cascade {
	return &Cascade{
		Client:           client,
		Registry:         registry,
		MaxCandidates:    defaultMaxCandidates,
		RateLimitRetries: defaultRateLimitRetries,
		BaseBackoff:      defaultBaseBackoff,
	}
}

// Invoke walks the candidate list and returns the first non-empty, error-free
// response. A 429 is retried on the same candidate with a backoff scaled by
// the candidate's position; any other failure advances to the next candidate.
func (c *Cascade) Invoke(ctx context.Context, system, user, preferredModel string, temperature float32) (*ChatResponse, error) {
	candidates := c.candidates(preferredModel)
	if len(candidates) == 0 {
		return nil, errors.New("no candidate models configured")
	}

	failures := make([]CandidateFailure, 0, len(candidates))
	for pos, model := range candidates {
		resp, err := c.tryCandidate(ctx, model, pos, ChatRequest{
			Model:       model,
			Temperature: temperature,
			System:      system,
			User:        user,
		})
		if err == nil {
			telemetry.Info("llm.cascade.success", map[string]any{
				"model":    model,
				"position": pos,
			})
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		telemetry.Warn("llm.cascade.candidate_failed", map[string]any{
			"model":    model,
			"position": pos,
			"error":    err.Error(),
		})
		failures = append(failures, CandidateFailure{Model: model, Err: err})
	}

	return nil, &ExhaustedError{Failures: failures}
}

func (c *Cascade) tryCandidate(ctx context.Context, model string, position int, req ChatRequest) (*ChatResponse, error) {
	retries := c.RateLimitRetries
	if retries <= 0 {
		retries = defaultRateLimitRetries
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		start := time.Now()
		resp, err := c.Client.Chat(ctx, req)
		metrics.IncLLMAttempt()
		metrics.ObserveLLMCallDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
		if err == nil {
			if strings.TrimSpace(resp.Content) == "" {
				// Some providers return 200 with a silently empty body.
				return nil, &CallError{Model: model, Message: "empty completion content"}
			}
			return resp, nil
		}

		var callErr *CallError
		if !errors.As(err, &callErr) || !callErr.RateLimited() {
			return nil, err
		}

		metrics.IncLLMRateLimited()
		lastErr = err
		if attempt == retries {
			break
		}
		if sleepErr := c.wait(ctx, c.backoff(position, attempt)); sleepErr != nil {
			return nil, sleepErr
		}
	}
	return nil, fmt.Errorf("rate limited after %d attempts: %w", retries, lastErr)
}

// backoff grows with both the candidate's position in the list and the
// attempt number, so already-limited low-priority models are not hammered.
func (c *Cascade) backoff(position, attempt int) time.Duration {
	base := c.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	return base * time.Duration(position+1) * time.Duration(attempt)
}

func (c *Cascade) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cascade) candidates(preferredModel string) []string {
	max := c.MaxCandidates
	if max <= 0 {
		max = defaultMaxCandidates
	}

	var pool []string
	if c.Registry != nil {
		pool = c.Registry.Snapshot()
	}

	out := make([]string, 0, max+1)
	seen := make(map[string]struct{}, max+1)
	if trimmed := strings.TrimSpace(preferredModel); trimmed != "" {
		out = append(out, trimmed)
		seen[trimmed] = struct{}{}
	}
	for _, m := range pool {
		if len(out) >= max {
			break
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
