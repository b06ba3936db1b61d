package auth

import (
	"context"

	"github.com/cardvault/walletcore/internal/events"
	"github.com/cardvault/walletcore/internal/host"
)

// Run drives one complete authentication attempt. The initial request must
// be an initiate; anything else is ignored without response, matching the
// contract that a flow only ever starts from the top.
//
// Loop contract: dispatch the request, send any produced response, stop on
// terminal success or any engine error, otherwise block for the next host
// message bounded by the inactivity timeout. Decode failures, requests
// outside the auth-card family, and abort signals all terminate the loop
// without a response; the engine never resynchronizes. Abort is a normal
// exit and returns nil. All guarded secret buffers are wiped on every exit
// path.
func (e *Engine) Run(ctx context.Context, adapter *host.Adapter, initial *host.AuthCardRequest) error {
	defer e.wipeGuards()

	if e.state != StateInit {
		recordOutcome(outcomeProtocolError)
		return newFlowError(CodeInvalidState, "run")
	}
	if initial == nil || initial.Initiate == nil {
		// Not the start of a flow; ignore.
		return nil
	}

	req := initial
	for {
		resp, err := e.HandleRequest(ctx, req)

		if resp.HasResponse() {
			if sendErr := adapter.SendResponse(resp); sendErr != nil {
				e.log.Warn().Err(sendErr).Msg("response send failed")
				recordOutcome(outcomeProtocolError)
				return wrapFlowError(wireErrorCode(sendErr), "send response", sendErr)
			}
		}

		if err != nil {
			return e.finish(err)
		}

		if e.state == StatePairingDone {
			recordOutcome(outcomeSuccess)
			return nil
		}
		if e.flowFailed {
			recordOutcome(outcomeFailed)
			return nil
		}

		ev := e.events.Await(ctx, events.KindHost, e.timeout)
		if ev.Abort {
			recordOutcome(outcomeAborted)
			return nil
		}

		next, decErr := adapter.DecodeQuery(ev)
		if decErr != nil {
			e.log.Warn().Err(decErr).Msg("inbound message rejected")
			recordOutcome(outcomeProtocolError)
			return wrapFlowError(wireErrorCode(decErr), "decode query", decErr)
		}
		if next == nil {
			// Nothing arrived; only reachable through a racing event
			// source, treated like an abort.
			recordOutcome(outcomeAborted)
			return nil
		}
		req = next
	}
}

// finish classifies a handler error into a terminal outcome. Abort is the
// user's normal way out and is not reported as an error.
func (e *Engine) finish(err error) error {
	switch CodeOf(err) {
	case CodeAbortOccurred:
		e.log.Info().Msg("flow aborted")
		recordOutcome(outcomeAborted)
		return nil
	case CodeOperationFailed:
		e.log.Error().Err(err).Msg("card operation failed")
		recordOutcome(outcomeFailed)
		return err
	default:
		e.log.Warn().Err(err).Msg("flow terminated")
		recordOutcome(outcomeProtocolError)
		return err
	}
}
