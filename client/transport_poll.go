package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// pollTransport re-fetches a payload at a fixed cadence until it observes a
// terminal state. The periodic re-fetch is normal operation, not error
// recovery; a fetch failure fails the journey.
type pollTransport struct {
	svc       PayloadService
	payloadID string
	interval  time.Duration
	logger    *slog.Logger
}

func newPollTransport(svc PayloadService, payloadID string, interval time.Duration, logger *slog.Logger) *pollTransport {
	return &pollTransport{
		svc:       svc,
		payloadID: payloadID,
		interval:  interval,
		logger:    logger,
	}
}

// run ticks until a terminal meta flag shows up or the context ends. The
// journey's global timeout bounds the loop through ctx.
func (t *pollTransport) run(ctx context.Context, out chan<- observation) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		payload, err := t.svc.GetPayload(ctx, t.payloadID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			offer(out, observation{err: fmt.Errorf("poll fetch failed: %w", err)})
			return
		}

		meta := payload.Meta
		switch {
		case meta.Signed:
			t.logger.Debug("poll loop observed signed payload", "payload", t.payloadID)
			offer(out, observation{signed: true})
			return
		case meta.Cancelled:
			t.logger.Debug("poll loop observed cancelled payload", "payload", t.payloadID)
			offer(out, observation{cancelled: true})
			return
		case meta.Expired:
			t.logger.Debug("poll loop observed expired payload", "payload", t.payloadID)
			offer(out, observation{expired: true})
			return
		}
	}
}
