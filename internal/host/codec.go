package host

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/cardvault/walletcore/internal/events"
)

// Wire-level failures surfaced by the adapter. The engine maps them onto
// its error taxonomy; none of them ever produce an outbound response.
var (
	ErrDecodingFailed   = errors.New("host message decoding failed")
	ErrEncodingFailed   = errors.New("response encoding failed")
	ErrUnknownRequest   = errors.New("query is not a card-authentication request")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// maxEncodedResponseSize bounds the outbound buffer handed to the transport.
const maxEncodedResponseSize = 512

// Sender hands an encoded response to the outbound transport.
type Sender interface {
	Send(payload []byte) error
}

// Adapter wraps the external codec for the engine: strict CBOR decode of
// inbound host events, encode-and-send of responses.
type Adapter struct {
	sender  Sender
	decMode cbor.DecMode
}

// NewAdapter creates an adapter sending through the given transport.
func NewAdapter(sender Sender) (*Adapter, error) {
	if sender == nil {
		return nil, errors.Wrap(ErrInvalidArguments, "sender is nil")
	}
	// Unknown wire fields are rejected rather than ignored; a host speaking
	// a newer protocol must not be half-understood.
	decMode, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		return nil, errors.Wrap(err, "build cbor decode mode")
	}
	return &Adapter{sender: sender, decMode: decMode}, nil
}

// DecodeQuery extracts a card-authentication query from an awaited event.
// An event without a host message is not an error: it returns (nil, nil) so
// the caller can distinguish "nothing arrived" from "something arrived but
// is invalid". A payload that does not parse is ErrDecodingFailed; a parsed
// query of a different family is ErrUnknownRequest.
//
// Classification runs in two passes: a lenient decode first, so a
// well-formed query of another family reads as unknown rather than
// malformed, then the strict decode, so unknown fields inside an auth-card
// query are still rejected.
func (a *Adapter) DecodeQuery(ev events.Event) (*AuthCardRequest, error) {
	if !ev.Host.Present {
		return nil, nil
	}

	var envelope Query
	if err := cbor.Unmarshal(ev.Host.Payload, &envelope); err != nil {
		return nil, errors.Wrap(ErrDecodingFailed, err.Error())
	}
	if envelope.AuthCard == nil {
		return nil, ErrUnknownRequest
	}

	var query Query
	if err := a.decMode.Unmarshal(ev.Host.Payload, &query); err != nil {
		return nil, errors.Wrap(ErrDecodingFailed, err.Error())
	}
	return query.AuthCard, nil
}

// SendResponse encodes a response and hands it to the outbound transport.
// A response with no sub-type set is rejected before encoding.
func (a *Adapter) SendResponse(resp *Response) error {
	if !resp.HasResponse() {
		return errors.Wrap(ErrInvalidArguments, "response discriminant unset")
	}

	payload, err := cbor.Marshal(resp)
	if err != nil {
		return errors.Wrap(ErrEncodingFailed, err.Error())
	}
	if len(payload) > maxEncodedResponseSize {
		return errors.Wrapf(ErrEncodingFailed, "encoded response is %d bytes, limit %d",
			len(payload), maxEncodedResponseSize)
	}

	return a.sender.Send(payload)
}

// EncodeQuery serializes a query for hosts and tests driving the engine.
func EncodeQuery(q *Query) ([]byte, error) {
	if q == nil {
		return nil, errors.Wrap(ErrInvalidArguments, "query is nil")
	}
	payload, err := cbor.Marshal(q)
	if err != nil {
		return nil, errors.Wrap(ErrEncodingFailed, err.Error())
	}
	return payload, nil
}

// DecodeResponse parses an encoded response on the host side.
func DecodeResponse(payload []byte) (*Response, error) {
	var resp Response
	if err := cbor.Unmarshal(payload, &resp); err != nil {
		return nil, errors.Wrap(ErrDecodingFailed, err.Error())
	}
	return &resp, nil
}
