// Package host adapts the byte-stream query/response channel to the
// engine's request and response variants. It owns the gate that decides
// whether an inbound event carries a message at all, and the CBOR wire
// codec around the engine types.
package host

// Query is the top-level inbound message. Exactly one family field is set;
// a message whose family is anything but auth-card is not for this core.
type Query struct {
	AuthCard *AuthCardRequest `cbor:"auth_card,omitempty"`
}

// AuthCardRequest is the card-authentication request with one sub-type set.
type AuthCardRequest struct {
	Initiate  *InitiateRequest  `cbor:"initiate,omitempty"`
	Challenge *ChallengeRequest `cbor:"challenge,omitempty"`
	Result    *ResultRequest    `cbor:"result,omitempty"`
}

// InitiateRequest starts an authentication attempt. CardIndex restricts the
// attempt to one card slot; absent means any card. PairCard requests the
// pairing step after a verified challenge.
type InitiateRequest struct {
	CardIndex *uint8 `cbor:"card_index,omitempty"`
	PairCard  *bool  `cbor:"pair_card,omitempty"`
}

// ChallengeRequest carries the server-issued challenge to sign.
type ChallengeRequest struct {
	Challenge []byte `cbor:"challenge"`
}

// ResultRequest reports the host's verification verdict on the last
// signature it received.
type ResultRequest struct {
	Verified bool `cbor:"verified"`
}

// Response is the outbound message with one sub-type set.
type Response struct {
	SerialSignature    *SerialSignatureResponse    `cbor:"serial_signature,omitempty"`
	ChallengeSignature *ChallengeSignatureResponse `cbor:"challenge_signature,omitempty"`
	FlowComplete       *FlowCompleteResponse       `cbor:"flow_complete,omitempty"`
}

// SerialSignatureResponse carries the card's signature over its serial.
type SerialSignatureResponse struct {
	Serial    []byte `cbor:"serial"`
	Signature []byte `cbor:"signature"`
}

// ChallengeSignatureResponse carries the card's challenge signature.
type ChallengeSignatureResponse struct {
	Signature []byte `cbor:"signature"`
}

// FlowCompleteResponse terminates the flow. Failed is set on every failure
// exit: hardware or pairing faults on the device side and host-reported
// negative verdicts alike.
type FlowCompleteResponse struct {
	Failed bool `cbor:"failed,omitempty"`
}

// HasResponse reports whether any sub-type is set.
func (r *Response) HasResponse() bool {
	return r != nil && (r.SerialSignature != nil || r.ChallengeSignature != nil || r.FlowComplete != nil)
}
