package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedClient struct {
	calls     []ChatRequest
	responses map[string][]func() (*ChatResponse, error)
}

func (s *scriptedClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.calls = append(s.calls, req)
	queue := s.responses[req.Model]
	if len(queue) == 0 {
		return nil, errors.New("unexpected call for " + req.Model)
	}
	next := queue[0]
	s.responses[req.Model] = queue[1:]
	return next()
}

func succeed(model, content string) func() (*ChatResponse, error) {
	return func() (*ChatResponse, error) {
		return &ChatResponse{Model: model, Content: content}, nil
	}
}

func failWith(err error) func() (*ChatResponse, error) {
	return func() (*ChatResponse, error) { return nil, err }
}

func newTestCascade(client Client, models []string) *Cascade {
	c := NewCascade(client, NewRegistry(models))
	c.BaseBackoff = time.Millisecond
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestInvokeStopsAtFirstSuccess(t *testing.T) {
	client := &scriptedClient{responses: map[string][]func() (*ChatResponse, error){
		"m1": {failWith(&CallError{Model: "m1", StatusCode: 500, Message: "boom"})},
		"m2": {succeed("m2", "hello")},
	}}
	cascade := newTestCascade(client, []string{"m1", "m2", "m3"})

	resp, err := cascade.Invoke(context.Background(), "sys", "usr", "", 0.3)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Model != "m2" {
		t.Fatalf("Model = %q, want m2", resp.Model)
	}
	if len(client.calls) != 2 {
		t.Fatalf("calls = %d, want 2 (m3 must not be attempted)", len(client.calls))
	}
}

func TestInvokePrefersOverrideModelFirst(t *testing.T) {
	client := &scriptedClient{responses: map[string][]func() (*ChatResponse, error){
		"preferred": {succeed("preferred", "ok")},
	}}
	cascade := newTestCascade(client, []string{"m1", "m2"})

	resp, err := cascade.Invoke(context.Background(), "sys", "usr", "preferred", 0.3)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Model != "preferred" || len(client.calls) != 1 {
		t.Fatalf("expected single call to preferred, got %d calls model=%q", len(client.calls), resp.Model)
	}
}

func TestInvokeRetriesSameCandidateOn429(t *testing.T) {
	rateLimited := &CallError{Model: "m1", StatusCode: 429, Message: "rate limited"}
	client := &scriptedClient{responses: map[string][]func() (*ChatResponse, error){
		"m1": {failWith(rateLimited), failWith(rateLimited), succeed("m1", "finally")},
	}}
	cascade := newTestCascade(client, []string{"m1", "m2"})

	resp, err := cascade.Invoke(context.Background(), "sys", "usr", "", 0.3)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Model != "m1" {
		t.Fatalf("Model = %q, want m1", resp.Model)
	}
	for _, call := range client.calls {
		if call.Model != "m1" {
			t.Fatalf("unexpected call to %q during 429 retries", call.Model)
		}
	}
	if len(client.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(client.calls))
	}
}

func TestInvokeMovesOnAfterRetryCeiling(t *testing.T) {
	rateLimited := &CallError{Model: "m1", StatusCode: 429, Message: "rate limited"}
	client := &scriptedClient{responses: map[string][]func() (*ChatResponse, error){
		"m1": {failWith(rateLimited), failWith(rateLimited), failWith(rateLimited)},
		"m2": {succeed("m2", "ok")},
	}}
	cascade := newTestCascade(client, []string{"m1", "m2"})

	resp, err := cascade.Invoke(context.Background(), "sys", "usr", "", 0.3)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Model != "m2" {
		t.Fatalf("Model = %q, want m2", resp.Model)
	}
	if len(client.calls) != 4 {
		t.Fatalf("calls = %d, want 3 retries on m1 then 1 on m2", len(client.calls))
	}
}

func TestInvokeNon429AdvancesImmediately(t *testing.T) {
	client := &scriptedClient{responses: map[string][]func() (*ChatResponse, error){
		"m1": {failWith(&CallError{Model: "m1", StatusCode: 502, Message: "bad gateway"})},
		"m2": {succeed("m2", "ok")},
	}}
	cascade := newTestCascade(client, []string{"m1", "m2"})

	if _, err := cascade.Invoke(context.Background(), "sys", "usr", "", 0.3); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(client.calls) != 2 {
		t.Fatalf("calls = %d, want 2 (no retry for non-429)", len(client.calls))
	}
}

func TestInvokeEmptyContentCountsAsFailure(t *testing.T) {
	client := &scriptedClient{responses: map[string][]func() (*ChatResponse, error){
		"m1": {succeed("m1", "   ")},
		"m2": {succeed("m2", "real answer")},
	}}
	cascade := newTestCascade(client, []string{"m1", "m2"})

	resp, err := cascade.Invoke(context.Background(), "sys", "usr", "", 0.3)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Model != "m2" {
		t.Fatalf("Model = %q, want m2", resp.Model)
	}
}

func TestInvokeExhaustionAggregatesFailures(t *testing.T) {
	client := &scriptedClient{responses: map[string][]func() (*ChatResponse, error){
		"m1": {failWith(&CallError{Model: "m1", StatusCode: 500, Message: "err1"})},
		"m2": {failWith(errors.New("network down"))},
	}}
	cascade := newTestCascade(client, []string{"m1", "m2"})

	_, err := cascade.Invoke(context.Background(), "sys", "usr", "", 0.3)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if len(exhausted.Failures) != 2 {
		t.Fatalf("Failures = %d, want 2", len(exhausted.Failures))
	}
	if exhausted.Failures[0].Model != "m1" || exhausted.Failures[1].Model != "m2" {
		t.Fatalf("failure order = %v", exhausted.Failures)
	}
}

func TestInvokeCandidateListIsBounded(t *testing.T) {
	client := &scriptedClient{responses: map[string][]func() (*ChatResponse, error){}}
	models := []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"}
	for _, m := range models {
		client.responses[m] = []func() (*ChatResponse, error){
			failWith(&CallError{Model: m, StatusCode: 500, Message: "down"}),
		}
	}
	cascade := newTestCascade(client, models)
	cascade.MaxCandidates = 3

	_, err := cascade.Invoke(context.Background(), "sys", "usr", "", 0.3)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if len(client.calls) != 3 {
		t.Fatalf("calls = %d, want 3 (bounded candidate list)", len(client.calls))
	}
}
