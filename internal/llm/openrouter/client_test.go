package openrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"siteaudit-backend/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key", WithAPIURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error for blank api key")
	}
}

func TestChatSuccessParsesContentAndUsage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{
			"model": "m1",
			"choices": [{"message": {"role": "assistant", "content": "{\"resumen_general\":\"ok\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	resp, err := client.Chat(context.Background(), llm.ChatRequest{Model: "m1", System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"resumen_general":"ok"}` {
		t.Fatalf("Content = %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Fatalf("Usage = %#v, want total 15", resp.Usage)
	}
}

func TestChat429ReturnsRateLimitedCallError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Chat(context.Background(), llm.ChatRequest{Model: "m1"})
	var callErr *llm.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if !callErr.RateLimited() {
		t.Fatalf("RateLimited() = false for status %d", callErr.StatusCode)
	}
}

func TestChatBodyErrorFieldIsAFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Some providers report errors inside a 200 body.
		w.Write([]byte(`{"error": {"message": "model deprecated", "code": 404}}`))
	})

	_, err := client.Chat(context.Background(), llm.ChatRequest{Model: "m1"})
	var callErr *llm.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if callErr.Message != "model deprecated" {
		t.Fatalf("Message = %q", callErr.Message)
	}
}

func TestChatMissingChoicesIsAFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model": "m1", "choices": []}`))
	})

	if _, err := client.Chat(context.Background(), llm.ChatRequest{Model: "m1"}); err == nil {
		t.Fatal("expected error for missing choices")
	}
}

func TestChatRequiresModel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := client.Chat(context.Background(), llm.ChatRequest{}); err == nil {
		t.Fatal("expected error for empty model")
	}
}
