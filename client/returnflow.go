package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
)

// ReturnResult is the outcome of reconciling a wallet-app return URL.
type ReturnResult struct {
	// Handled is false when the URL carried no journey parameters; the
	// navigation was not a wallet return and nothing was done.
	Handled bool

	// Signed reports whether the journey completed with a signed payload
	// (and, for connect journeys, a verified signature).
	Signed bool

	Journey JourneyKind
	Account string
	TxID    string

	// CleanURL is the input URL with the journey parameters removed. It is
	// populated on every branch, success or failure, so a refresh never
	// re-triggers reconciliation.
	CleanURL string
}

// Reconciler reconciles state recovered from a redirect URL after the wallet
// app sends the browser back. It applies the same trust rule as the live
// orchestrator: no session is written from unverified data.
type Reconciler struct {
	svc      PayloadService
	sessions *SessionStore
	logger   *slog.Logger
}

// NewReconciler creates a ReturnFlowReconciler.
func NewReconciler(svc PayloadService, sessions *SessionStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Reconciler{svc: svc, sessions: sessions, logger: logger}
}

// Reconcile inspects rawURL for journey parameters (payloadId, journey). If
// absent it no-ops. Otherwise it fetches the payload's final state, verifies
// and stores the session for signed connect journeys, and returns a result
// whose CleanURL always has the parameters stripped, even on failure.
func (r *Reconciler) Reconcile(ctx context.Context, rawURL string) (*ReturnResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid return url: %w", err)
	}

	query := u.Query()
	payloadID := query.Get("payloadId")
	journey := JourneyKind(query.Get("journey"))

	if payloadID == "" {
		return &ReturnResult{Handled: false, CleanURL: rawURL}, nil
	}

	// Strip the journey parameters up front: whatever happens below, the
	// URL must not retain them.
	query.Del("payloadId")
	query.Del("journey")
	u.RawQuery = query.Encode()
	result := &ReturnResult{
		Handled:  true,
		Journey:  journey,
		CleanURL: u.String(),
	}

	r.logger.Debug("reconciling wallet return", "payload", payloadID, "journey", string(journey))

	payload, err := r.svc.GetPayload(ctx, payloadID)
	if err != nil {
		r.logger.Warn("return-flow payload lookup failed", "payload", payloadID, "error", err)
		return result, fmt.Errorf("failed to fetch payload: %w", err)
	}

	if !payload.Meta.Signed {
		// Cancelled, expired, or still open; nothing to store.
		r.logger.Info("wallet return without signature",
			"payload", payloadID,
			"cancelled", payload.Meta.Cancelled,
			"expired", payload.Meta.Expired,
		)
		return result, nil
	}

	result.TxID = payload.Response.TxID

	if payload.Response.Account == "" {
		return result, nil
	}

	// Trust rule: the account is only believed after its signature
	// verifies. A signed payload without the signed-tx hex cannot be
	// verified and therefore never creates a session.
	if payload.Response.Hex == "" {
		r.logger.Warn("signed payload has no transaction hex; not trusting account", "payload", payloadID)
		return result, ErrVerificationFailed
	}

	check, err := r.svc.CheckSign(ctx, payload.Response.Hex)
	if err != nil {
		r.logger.Warn("return-flow signature verification failed", "payload", payloadID, "error", err)
		return result, err
	}

	if r.sessions != nil && journey == JourneyConnect {
		if err := r.sessions.Connect(check.XRPAddress, check.Token); err != nil {
			return result, fmt.Errorf("failed to store wallet session: %w", err)
		}
	}

	result.Signed = true
	result.Account = check.XRPAddress
	r.logger.Info("wallet return reconciled", "payload", payloadID, "account", check.XRPAddress)
	return result, nil
}
