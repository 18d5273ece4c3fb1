package analyses

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrQueueNotConfigured = errors.New("job queue not configured")
)
