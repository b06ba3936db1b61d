// Package auth is the card authentication engine: the state machine that
// challenges a tapped card, relays its signatures to the host, and pairs
// the card once the host confirms the signatures verify.
package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cardvault/walletcore/internal/card"
	"github.com/cardvault/walletcore/internal/events"
	"github.com/cardvault/walletcore/internal/host"
)

// DefaultInactivityTimeout bounds every suspension point of a flow: the
// wait for a card tap and the wait for the next host message.
const DefaultInactivityTimeout = 5 * time.Minute

// ConfirmFn is the user-confirmation gate consulted before any card
// contact. The default accepts immediately; whether confirmation is
// mandatory is a product decision, so the hook is injectable rather than
// hard-coded either way.
type ConfirmFn func() bool

// Wiper is a secret-bearing buffer the engine must zero on flow exit.
type Wiper interface{ Wipe() }

// Config assembles an engine.
type Config struct {
	Events    events.Source
	Transport card.Transport
	Display   Display
	Confirm   ConfirmFn
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Engine runs one card authentication attempt at a time. It owns the flow
// status cell; the driver loop reads it via Status. Not safe for concurrent
// use: one session means one goroutine by construction.
type Engine struct {
	log       zerolog.Logger
	events    events.Source
	transport card.Transport
	display   Display
	confirm   ConfirmFn
	timeout   time.Duration

	state   State
	session sessionContext
	guards  []Wiper

	// flowFailed marks a host-reported negative verdict: the attempt is
	// over even though the state cell keeps its last value.
	flowFailed bool
}

// NewEngine validates the configuration and returns an idle engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Events == nil {
		return nil, errors.New("event source is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("card transport is required")
	}
	if cfg.Display == nil {
		cfg.Display = NopDisplay{}
	}
	if cfg.Confirm == nil {
		cfg.Confirm = func() bool { return true }
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultInactivityTimeout
	}
	return &Engine{
		log:       cfg.Logger,
		events:    cfg.Events,
		transport: cfg.Transport,
		display:   cfg.Display,
		confirm:   cfg.Confirm,
		timeout:   cfg.Timeout,
		state:     StateInit,
	}, nil
}

// Status returns the current flow status.
func (e *Engine) Status() State { return e.state }

// GuardBuffers registers secret-bearing buffers the surrounding flow has
// populated; every terminal exit of Run wipes them.
func (e *Engine) GuardBuffers(bufs ...Wiper) {
	e.guards = append(e.guards, bufs...)
}

func (e *Engine) setState(s State) {
	e.log.Debug().Str("from", e.state.String()).Str("to", s.String()).Msg("flow transition")
	e.state = s
	recordTransition(s)
}

func (e *Engine) wipeGuards() {
	for _, g := range e.guards {
		g.Wipe()
	}
	e.guards = nil
}

// HandleRequest dispatches one host request against the current state and
// returns the response to emit, if any. A response may accompany an error:
// the driver sends it, then terminates.
func (e *Engine) HandleRequest(ctx context.Context, req *host.AuthCardRequest) (*host.Response, error) {
	if req == nil {
		return nil, newFlowError(CodeInvalidArguments, "handle request")
	}

	switch {
	case req.Initiate != nil:
		return e.handleInitiate(ctx, req.Initiate)
	case req.Challenge != nil:
		return e.handleChallenge(ctx, req.Challenge)
	case req.Result != nil:
		return e.handleResult(ctx, req.Result)
	default:
		return nil, newFlowError(CodeUnknownRequest, "handle request")
	}
}

// handleInitiate starts an attempt: user gate, session context, then the
// serial signing round.
func (e *Engine) handleInitiate(ctx context.Context, req *host.InitiateRequest) (*host.Response, error) {
	if e.state != StateInit {
		return nil, newFlowError(CodeInvalidState, "initiate")
	}

	if !e.confirm() {
		return nil, newFlowError(CodeAbortOccurred, "user confirmation")
	}

	e.setState(StateUserConfirmed)
	e.session = newSessionContext(req)
	e.log.Info().
		Str("session", e.session.id.String()).
		Uint8("acceptable_cards", uint8(e.session.acceptableCards)).
		Bool("pair_required", e.session.pairRequired).
		Msg("card authentication initiated")

	return e.signSerial(ctx)
}

// signSerial waits for a tap and asks the card to sign its serial number.
func (e *Engine) signSerial(ctx context.Context) (*host.Response, error) {
	e.display.Instruction(e.session.heading, e.session.message)
	e.transport.EnableSelect(e.session.acceptableCards)

	ev := e.events.Await(ctx, events.KindHardware, e.timeout)
	if ev.Abort {
		return nil, newFlowError(CodeAbortOccurred, "wait for card")
	}

	sig, err := e.transport.SignSerial(ctx)
	if err != nil {
		e.display.Notice(noticeAuthFailed)
		return failureResponse(), wrapFlowError(CodeOperationFailed, "sign serial", err)
	}

	e.setState(StateSerialSigned)
	e.session.advanceToChallenge()
	e.display.Instruction(e.session.heading, e.session.message)

	return &host.Response{SerialSignature: &host.SerialSignatureResponse{
		Serial:    sig.Serial,
		Signature: sig.Signature,
	}}, nil
}

// handleChallenge runs the challenge signing round.
func (e *Engine) handleChallenge(ctx context.Context, req *host.ChallengeRequest) (*host.Response, error) {
	if e.state != StateSerialSigned {
		return nil, newFlowError(CodeInvalidState, "challenge")
	}
	if len(req.Challenge) == 0 {
		return nil, newFlowError(CodeInvalidArguments, "challenge")
	}

	e.transport.EnableSelect(e.session.acceptableCards)

	ev := e.events.Await(ctx, events.KindHardware, e.timeout)
	if ev.Abort {
		return nil, newFlowError(CodeAbortOccurred, "wait for card")
	}

	sig, err := e.transport.SignChallenge(ctx, req.Challenge)
	if err != nil {
		e.display.Notice(noticeAuthFailed)
		return failureResponse(), wrapFlowError(CodeOperationFailed, "sign challenge", err)
	}

	e.setState(StateChallengeSigned)
	e.session.advanceToResult()
	e.display.Instruction(e.session.heading, e.session.message)

	return &host.Response{ChallengeSignature: &host.ChallengeSignatureResponse{
		Signature: sig,
	}}, nil
}

// handleResult consumes the host's verification verdict. A negative verdict
// is only a failure notice; a positive one is meaningful solely after the
// challenge round, where it triggers pairing when requested. Pairing
// failure is fatal to the attempt: falling back to an earlier state would
// desynchronize the host, and ignoring it would defeat pairing.
func (e *Engine) handleResult(ctx context.Context, req *host.ResultRequest) (*host.Response, error) {
	switch e.state {
	case StateSerialSigned:
		if req.Verified {
			// A positive verdict before the challenge round is a
			// protocol violation.
			return nil, newFlowError(CodeInvalidState, "result")
		}
		e.flowFailed = true
		e.display.Notice(noticeAuthFailed)
		return failureResponse(), nil

	case StateChallengeSigned:
		if !req.Verified {
			e.flowFailed = true
			e.display.Notice(noticeAuthFailed)
			return failureResponse(), nil
		}

		if e.session.pairRequired {
			if err := e.transport.Pair(ctx); err != nil {
				e.display.Notice(noticeAuthFailed)
				return failureResponse(), wrapFlowError(CodeOperationFailed, "pair card", err)
			}
		}

		e.setState(StatePairingDone)
		e.display.Notice(noticeAuthSuccess)
		return &host.Response{FlowComplete: &host.FlowCompleteResponse{}}, nil

	default:
		return nil, newFlowError(CodeInvalidState, "result")
	}
}

func failureResponse() *host.Response {
	return &host.Response{FlowComplete: &host.FlowCompleteResponse{Failed: true}}
}
