// Package webhook delivers best-effort notifications when an analysis
// reaches a terminal state. Delivery failures never affect the analysis
// outcome; they are logged as dead letters.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Event is the payload posted to the configured endpoint.
type Event struct {
	AnalysisID  string `json:"analysis_id"`
	ProjectCode string `json:"project_code"`
	State       string `json:"state"`
	ResultURL   string `json:"result_url,omitempty"`
}

type deadLetterFunc func(event Event, reason string)

// Notifier posts terminal-state events to one HTTP endpoint.
type Notifier struct {
	url        string
	httpClient *http.Client
	deadLetter deadLetterFunc
}

// NewNotifier returns a Notifier for the given endpoint. An empty URL
// yields a no-op notifier.
func NewNotifier(url string, opts ...Option) *Notifier {
	n := &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) { n.httpClient = client }
}

// WithDeadLetter overrides how failed deliveries are reported.
func WithDeadLetter(fn func(event Event, reason string)) Option {
	return func(n *Notifier) { n.deadLetter = fn }
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Notify posts the event synchronously. Failures are swallowed after
// dead-letter reporting.
func (n *Notifier) Notify(ctx context.Context, event Event) {
	if !n.Enabled() {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		n.reportDeadLetter(event, fmt.Sprintf("marshal: %v", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.reportDeadLetter(event, fmt.Sprintf("build request: %v", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.reportDeadLetter(event, fmt.Sprintf("post: %v", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.reportDeadLetter(event, fmt.Sprintf("endpoint returned %d", resp.StatusCode))
	}
}

// NotifyAsync posts the event on its own goroutine with a fresh deadline so
// it outlives the caller's request context.
func (n *Notifier) NotifyAsync(event Event) {
	if !n.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		n.Notify(ctx, event)
	}()
}

func (n *Notifier) reportDeadLetter(event Event, reason string) {
	if n.deadLetter != nil {
		n.deadLetter(event, reason)
		return
	}
	defaultDeadLetter(event, reason)
}
