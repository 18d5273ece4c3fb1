package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"siteaudit-backend/internal/llm"
)

const defaultAPIURL = "https://openrouter.ai/api/v1/chat/completions"

// Client implements llm.Client using the OpenRouter chat completions API.
type Client struct {
	apiKey     string
	apiURL     string
	referer    string
	title      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithAPIURL overrides the provider endpoint (used by tests).
func WithAPIURL(url string) Option {
	return func(c *Client) { c.apiURL = url }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient constructs a new OpenRouter client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	c := &Client{
		apiKey:  apiKey,
		apiURL:  defaultAPIURL,
		referer: "https://github.com/siteaudit/siteaudit-backend",
		title:   "siteaudit-backend",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Chat issues one chat-completion call against the requested model.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	temp := req.Temperature
	payload, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", c.referer)
	httpReq.Header.Set("X-Title", c.title)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openrouter request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &llm.CallError{Model: req.Model, StatusCode: resp.StatusCode, Message: "rate limited"}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &llm.CallError{Model: req.Model, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("openrouter response parse: %w", err)
	}
	if parsed.Error != nil {
		return nil, &llm.CallError{Model: req.Model, StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.CallError{Model: req.Model, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &llm.CallError{Model: req.Model, Message: "response missing choices"}
	}

	out := &llm.ChatResponse{
		Model:   parsed.Model,
		Content: parsed.Choices[0].Message.Content,
		Raw:     json.RawMessage(body),
	}
	if out.Model == "" {
		out.Model = req.Model
	}
	if parsed.Usage != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		}
	}
	return out, nil
}

var _ llm.Client = (*Client)(nil)
