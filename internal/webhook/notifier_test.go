package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotifyPostsEvent(t *testing.T) {
	var got Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, WithDeadLetter(func(event Event, reason string) {
		t.Errorf("unexpected dead letter: %s", reason)
	}))
	notifier.Notify(context.Background(), Event{
		AnalysisID:  "a-1",
		ProjectCode: "OBRA-001",
		State:       "completed",
		ResultURL:   "/api/v1/analyses/a-1",
	})

	if got.AnalysisID != "a-1" || got.State != "completed" {
		t.Errorf("event = %+v", got)
	}
	if got.ResultURL != "/api/v1/analyses/a-1" {
		t.Errorf("result url = %s", got.ResultURL)
	}
}

func TestNotifyDeadLettersOnFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var reason string
	notifier := NewNotifier(server.URL, WithDeadLetter(func(event Event, r string) {
		reason = r
	}))
	notifier.Notify(context.Background(), Event{AnalysisID: "a-1", State: "error"})

	if reason == "" {
		t.Fatal("expected a dead letter")
	}
}

func TestNotifyDeadLettersOnConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	var reason string
	notifier := NewNotifier(server.URL, WithDeadLetter(func(event Event, r string) {
		reason = r
	}))
	notifier.Notify(context.Background(), Event{AnalysisID: "a-1", State: "completed"})

	if reason == "" {
		t.Fatal("expected a dead letter")
	}
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	notifier := NewNotifier("", WithDeadLetter(func(event Event, reason string) {
		t.Errorf("unexpected dead letter: %s", reason)
	}))
	if notifier.Enabled() {
		t.Fatal("empty URL should disable the notifier")
	}
	notifier.Notify(context.Background(), Event{AnalysisID: "a-1"})
	notifier.NotifyAsync(Event{AnalysisID: "a-1"})
}
