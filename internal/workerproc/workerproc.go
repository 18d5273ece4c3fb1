// Package workerproc parses and dispatches queue messages for the audit
// worker process.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"siteaudit-backend/internal/analyses"
	"siteaudit-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode or validation failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	return msg, meta, nil
}

// HandleMessage parses the payload and runs the audit pipeline for the
// referenced analysis. Pipeline failures are recorded on the analysis row
// itself, so only malformed payloads surface as errors here.
func HandleMessage(ctx context.Context, svc *analyses.Service, body string) error {
	if svc == nil {
		return errors.New("analyses service not configured")
	}

	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}

	svc.Process(analyses.WithRequestID(ctx, msg.RequestID), msg.AnalysisID)
	return nil
}
