package client

import "errors"

// Journey failure modes. Cancellation, expiry and generic failure are
// distinct so callers can show the right message.
var (
	// ErrUserCancelled means the user rejected the request in the wallet
	// app. Retrying requires a new journey.
	ErrUserCancelled = errors.New("signing request was cancelled")

	// ErrTimedOut means the payload expired or the journey's global
	// timeout fired before a terminal event. The caller may start a new
	// journey.
	ErrTimedOut = errors.New("signing request timed out")

	// ErrVerificationFailed means the payload reported signed but its
	// signature did not verify. It is never retried and never results in
	// a wallet session.
	ErrVerificationFailed = errors.New("signature verification failed")

	// ErrSuperseded means a newer journey was started and this journey's
	// transport was closed before a terminal event arrived.
	ErrSuperseded = errors.New("signing request superseded by a newer journey")
)
