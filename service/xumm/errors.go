package xumm

import (
	"errors"
	"fmt"
)

// ErrNotConfigured indicates the upstream API credentials are absent. This is
// fatal to the request and maps to a 500 at the HTTP surface.
var ErrNotConfigured = errors.New("xumm api credentials are not configured")

// NotFoundError indicates the upstream has no record of the payload.
type NotFoundError struct {
	PayloadID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("payload %s not found", e.PayloadID)
}

// UpstreamError wraps any non-success response from the wallet service. The
// upstream message is preserved and surfaced to the caller.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("xumm api error (status %d): %s", e.StatusCode, e.Message)
}
