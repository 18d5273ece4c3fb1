package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Message is the payload handed to the audit worker.
type Message struct {
	AnalysisID string `json:"analysisId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// ErrMissingAnalysisID indicates a decoded message without an analysis id.
var ErrMissingAnalysisID = errors.New("message missing analysis id")

// NewMessage builds a versioned message for one analysis.
func NewMessage(analysisID, requestID string) Message {
	return Message{
		AnalysisID: analysisID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message and validates the
// analysis id is present.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(msg.AnalysisID) == "" {
		return Message{}, ErrMissingAnalysisID
	}
	return msg, nil
}
