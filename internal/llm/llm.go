package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client issues a single chat-completion call against one model.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest captures the inputs for one provider call.
type ChatRequest struct {
	Model       string
	Temperature float32
	System      string
	User        string
}

// Usage holds token accounting reported by the provider, when present.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is a successful provider answer.
type ChatResponse struct {
	Model   string
	Content string
	Usage   *Usage
	Raw     json.RawMessage
}

// CallError is a provider-reported failure for a single call.
type CallError struct {
	Model      string
	StatusCode int
	Message    string
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model %s: status %d: %s", e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model %s: %s", e.Model, e.Message)
}

// RateLimited reports whether the provider answered with HTTP 429.
func (e *CallError) RateLimited() bool {
	return e.StatusCode == 429
}
