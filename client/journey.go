package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abroadly/xamanlink/service/xumm"
)

// JourneyKind distinguishes wallet-connect journeys from transaction-signing
// journeys. Connect journeys end with a verified wallet session; transaction
// journeys end with a signed payload record.
type JourneyKind string

const (
	JourneyConnect     JourneyKind = "connect"
	JourneyTransaction JourneyKind = "transaction"
)

// DeviceClass selects the transport strategy. It is decided once at journey
// start and is immutable for the journey's duration.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

// journeyState tracks one signing journey through its lifecycle.
type journeyState int

const (
	stateIdle journeyState = iota
	statePayloadRequested
	stateAwaitingUser
	stateReconciling
	stateCompleted
	stateFailed
)

func (s journeyState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePayloadRequested:
		return "payload_requested"
	case stateAwaitingUser:
		return "awaiting_user"
	case stateReconciling:
		return "reconciling"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// validTransitions is the state machine's transition table. Failure is
// reachable from every non-terminal state.
var validTransitions = map[journeyState][]journeyState{
	stateIdle:             {statePayloadRequested, stateFailed},
	statePayloadRequested: {stateAwaitingUser, stateCompleted, stateFailed},
	stateAwaitingUser:     {stateReconciling, stateFailed},
	stateReconciling:      {stateCompleted, stateFailed},
}

// journeyContext is the ephemeral per-attempt state. One exists per
// user-initiated action and is discarded at the terminal outcome.
type journeyContext struct {
	id        string
	kind      JourneyKind
	device    DeviceClass
	payloadID string
	state     journeyState
}

func (j *journeyContext) transition(logger *slog.Logger, next journeyState) {
	allowed := false
	for _, s := range validTransitions[j.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		logger.Warn("unexpected journey transition",
			"journey", j.id,
			"from", j.state.String(),
			"to", next.String(),
		)
	}
	logger.Debug("journey transition",
		"journey", j.id,
		"from", j.state.String(),
		"to", next.String(),
	)
	j.state = next
}

// JourneyResult is the terminal outcome of a successful journey.
type JourneyResult struct {
	Kind      JourneyKind
	PayloadID string

	// Account and Token are populated for completed Connect journeys,
	// after server-side signature verification.
	Account string
	Token   string

	// TxID and Payload are populated for completed Transaction journeys.
	TxID    string
	Payload *xumm.Payload

	// PendingReturn is set for mobile Connect journeys: the deep link has
	// been triggered and completion arrives via the return flow, not via
	// this call.
	PendingReturn bool
	DeepLink      string
}

// OrchestratorOptions tune a SigningOrchestrator. Zero values pick the
// defaults noted on each field.
type OrchestratorOptions struct {
	// Timeout bounds a whole journey from transport open to terminal
	// event. Default 5 minutes.
	Timeout time.Duration

	// PollInterval is the poll-loop cadence for mobile transaction
	// journeys. Default 2 seconds.
	PollInterval time.Duration

	// ReturnURL is the base URL the wallet app redirects back to after a
	// mobile journey. The payload id and journey tag are appended as
	// query parameters.
	ReturnURL string

	// OpenDeepLink triggers the wallet app via its URL scheme.
	// Fire-and-forget; a nil hook only logs.
	OpenDeepLink func(url string) error

	// DialWebSocket opens the payload's push channel. Defaults to a
	// gorilla/websocket dialer.
	DialWebSocket WSDialer

	// OnAwaitingUser is invoked once the journey enters the awaiting-user
	// state, with the created payload's transport handles (QR image,
	// deep link). Used by UIs to render the QR code.
	OnAwaitingUser func(created *xumm.CreatedPayload)
}

// Orchestrator drives one signing journey from payload creation through
// completion. At most one journey's transport is open per orchestrator;
// starting a new journey tears down the previous transport first.
type Orchestrator struct {
	svc      PayloadService
	sessions *SessionStore
	logger   *slog.Logger

	timeout        time.Duration
	pollInterval   time.Duration
	returnURL      string
	openDeepLink   func(string) error
	dialWS         WSDialer
	onAwaitingUser func(*xumm.CreatedPayload)

	mu     sync.Mutex
	active *journeyHandle
}

// journeyHandle identifies a live journey's transport for close-before-replace.
type journeyHandle struct {
	cancel context.CancelFunc
}

// NewOrchestrator creates a SigningOrchestrator. sessions may be nil for
// callers that only sign transactions and never connect.
func NewOrchestrator(svc PayloadService, sessions *SessionStore, opts OrchestratorOptions, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	o := &Orchestrator{
		svc:            svc,
		sessions:       sessions,
		logger:         logger,
		timeout:        opts.Timeout,
		pollInterval:   opts.PollInterval,
		returnURL:      opts.ReturnURL,
		openDeepLink:   opts.OpenDeepLink,
		dialWS:         opts.DialWebSocket,
		onAwaitingUser: opts.OnAwaitingUser,
	}
	if o.timeout <= 0 {
		o.timeout = 5 * time.Minute
	}
	if o.pollInterval <= 0 {
		o.pollInterval = 2 * time.Second
	}
	if o.dialWS == nil {
		o.dialWS = dialGorilla
	}
	return o
}

// Connect runs a wallet-connect journey: a SignIn payload is created, the
// user approves it in the wallet app, the resulting signature is verified
// and the wallet session is written. On mobile the returned result has
// PendingReturn set and completion arrives via the return flow.
func (o *Orchestrator) Connect(ctx context.Context, device DeviceClass) (*JourneyResult, error) {
	tx := map[string]any{"TransactionType": "SignIn"}
	return o.run(ctx, JourneyConnect, device, tx, "Connect your Xaman wallet")
}

// SignTransaction runs a transaction-signing journey for the given
// transaction template. No wallet session is written; the signed payload
// record is returned.
func (o *Orchestrator) SignTransaction(ctx context.Context, device DeviceClass, tx map[string]any) (*JourneyResult, error) {
	if len(tx) == 0 {
		return nil, fmt.Errorf("transaction is required")
	}
	return o.run(ctx, JourneyTransaction, device, tx, "Sign the transaction in your Xaman wallet")
}

func (o *Orchestrator) run(ctx context.Context, kind JourneyKind, device DeviceClass, tx map[string]any, instruction string) (*JourneyResult, error) {
	j := &journeyContext{
		id:     uuid.NewString(),
		kind:   kind,
		device: device,
		state:  stateIdle,
	}

	j.transition(o.logger, statePayloadRequested)
	created, err := o.createPayload(ctx, j, tx, instruction)
	if err != nil {
		j.transition(o.logger, stateFailed)
		return nil, err
	}
	j.payloadID = created.UUID

	// Mobile connect journeys have no live transport: trigger the deep
	// link and hand control back; the return flow reconciles later.
	if device == DeviceMobile && kind == JourneyConnect {
		o.triggerDeepLink(created.Next.Always)
		j.transition(o.logger, stateCompleted)
		return &JourneyResult{
			Kind:          kind,
			PayloadID:     created.UUID,
			PendingReturn: true,
			DeepLink:      created.Next.Always,
		}, nil
	}

	// Transport phase. The global timeout starts here and bounds the whole
	// awaiting-user window.
	tctx, cancel := context.WithTimeout(ctx, o.timeout)
	handle := o.adopt(cancel)
	defer o.release(handle)

	j.transition(o.logger, stateAwaitingUser)
	if o.onAwaitingUser != nil {
		o.onAwaitingUser(created)
	}
	if device == DeviceMobile {
		o.triggerDeepLink(created.Next.Always)
	}

	// First terminal observation wins; the channel is one-shot and late
	// observations are dropped.
	observations := make(chan observation, 1)
	var wg sync.WaitGroup

	ws := newWSTransport(o.dialWS, created.Refs.WebsocketStatus, o.logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws.run(tctx, observations)
	}()

	if device == DeviceMobile && kind == JourneyTransaction {
		poll := newPollTransport(o.svc, created.UUID, o.pollInterval, o.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poll.run(tctx, observations)
		}()
	}

	// Every exit path below releases the transports: cancel stops the poll
	// loop and unblocks the dialer, Close drops the socket, and the wait
	// ensures nothing is left running. Both are idempotent.
	teardown := func() {
		cancel()
		ws.Close()
		wg.Wait()
	}
	defer teardown()

	var obs observation
	select {
	case obs = <-observations:
	case <-tctx.Done():
		j.transition(o.logger, stateFailed)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if errors.Is(context.Cause(tctx), context.DeadlineExceeded) {
			return nil, ErrTimedOut
		}
		// Cancelled without a deadline: a newer journey replaced us.
		return nil, ErrSuperseded
	}

	// The winning transport has observed a terminal condition; tear the
	// losing one down before reconciling.
	teardown()

	switch {
	case obs.err != nil:
		j.transition(o.logger, stateFailed)
		return nil, obs.err
	case obs.expired:
		j.transition(o.logger, stateFailed)
		return nil, ErrTimedOut
	case obs.cancelled:
		j.transition(o.logger, stateFailed)
		return nil, ErrUserCancelled
	}

	j.transition(o.logger, stateReconciling)
	result, err := o.reconcile(ctx, j)
	if err != nil {
		j.transition(o.logger, stateFailed)
		return nil, err
	}

	j.transition(o.logger, stateCompleted)
	return result, nil
}

// createPayload submits the journey's payload with the return-URL template
// carrying the payload id and journey tag.
func (o *Orchestrator) createPayload(ctx context.Context, j *journeyContext, tx map[string]any, instruction string) (*xumm.CreatedPayload, error) {
	req := &xumm.CreatePayloadRequest{
		TxJSON: tx,
		Options: &xumm.PayloadOptions{
			Submit: j.kind == JourneyTransaction,
		},
		CustomMeta: &xumm.CustomMeta{
			Identifier:  j.id,
			Instruction: instruction,
		},
	}
	if o.returnURL != "" {
		ret := buildReturnURL(o.returnURL, j.kind)
		req.Options.ReturnURL = &xumm.ReturnURL{App: ret, Web: ret}
	}

	created, err := o.svc.CreatePayload(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create signing payload: %w", err)
	}

	o.logger.Info("journey payload created",
		"journey", j.id,
		"kind", string(j.kind),
		"device", string(j.device),
		"payload", created.UUID,
	)
	return created, nil
}

// reconcile fetches the final payload state and applies the trust rule: a
// Connect journey's account comes from signature verification, never from
// the raw payload.
func (o *Orchestrator) reconcile(ctx context.Context, j *journeyContext) (*JourneyResult, error) {
	payload, err := o.svc.GetPayload(ctx, j.payloadID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payload result: %w", err)
	}

	switch {
	case payload.Meta.Cancelled:
		return nil, ErrUserCancelled
	case payload.Meta.Expired:
		return nil, ErrTimedOut
	case !payload.Meta.Signed:
		return nil, ErrUserCancelled
	}

	result := &JourneyResult{
		Kind:      j.kind,
		PayloadID: j.payloadID,
		TxID:      payload.Response.TxID,
		Payload:   payload,
	}

	if j.kind == JourneyConnect {
		if payload.Response.Hex == "" {
			return nil, ErrVerificationFailed
		}
		check, err := o.svc.CheckSign(ctx, payload.Response.Hex)
		if err != nil {
			return nil, err
		}
		result.Account = check.XRPAddress
		result.Token = check.Token
		if o.sessions != nil {
			if err := o.sessions.Connect(check.XRPAddress, check.Token); err != nil {
				return nil, fmt.Errorf("failed to store wallet session: %w", err)
			}
		}
	} else {
		result.Account = payload.Response.Account
	}

	return result, nil
}

// adopt registers a journey's transport cancel, tearing down any previous
// journey's transport first (close-before-replace).
func (o *Orchestrator) adopt(cancel context.CancelFunc) *journeyHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		o.logger.Debug("closing previous journey transport")
		o.active.cancel()
	}
	h := &journeyHandle{cancel: cancel}
	o.active = h
	return h
}

// release cancels a journey's transport and clears the active slot if it is
// still ours. Safe to call after adopt replaced us.
func (o *Orchestrator) release(h *journeyHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h.cancel()
	if o.active == h {
		o.active = nil
	}
}

// triggerDeepLink opens the wallet app. Fire-and-forget: navigation failures
// are logged, not fatal, since the QR path remains available.
func (o *Orchestrator) triggerDeepLink(url string) {
	if o.openDeepLink == nil {
		o.logger.Debug("no deep-link opener configured", "url", url)
		return
	}
	if err := o.openDeepLink(url); err != nil {
		o.logger.Warn("failed to open deep link", "url", url, "error", err)
	}
}

// buildReturnURL appends the payload-id template and journey tag to the
// configured return URL. The {id} placeholder is substituted by the wallet
// service and must stay unescaped.
func buildReturnURL(base string, kind JourneyKind) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "payloadId={id}&journey=" + string(kind)
}
