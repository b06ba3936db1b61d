// Package card is the hardware boundary of the authentication engine: the
// transport that talks to a tapped card, a PC/SC implementation of it, a
// software card for tests and demos, and host-side signature verification.
package card

import (
	"context"

	"github.com/pkg/errors"
)

// Mask is the acceptable-cards bitmask over the device's card slots.
// Bit i-1 accepts card index i.
type Mask uint8

// MaskAll accepts any of the four card slots.
const MaskAll Mask = 0x0F

// MaskForIndex returns a mask accepting only the given card index (1..4).
func MaskForIndex(index uint8) Mask {
	if index < 1 || index > 4 {
		return 0
	}
	return 1 << (index - 1)
}

// Accepts reports whether the mask admits the given card index.
func (m Mask) Accepts(index uint8) bool {
	return MaskForIndex(index)&m != 0
}

// SerialSignature is a card's signature over its own serial number.
type SerialSignature struct {
	Serial    []byte
	Signature []byte
}

// ErrCardNotAccepted is returned when the tapped card's index is outside the
// acceptable-cards constraint of the current attempt.
var ErrCardNotAccepted = errors.New("tapped card not accepted for this operation")

// Transport is the card command channel. EnableSelect arms detection; the
// resulting presence event surfaces through the engine's event source, after
// which the signing and pairing calls operate on the detected card. All
// blocking calls honor their context.
type Transport interface {
	// EnableSelect arms card detection constrained to the acceptable set.
	EnableSelect(acceptable Mask)
	// SignSerial asks the detected card to sign its own serial number.
	SignSerial(ctx context.Context) (*SerialSignature, error)
	// SignChallenge asks the detected card to sign a server-issued challenge.
	SignChallenge(ctx context.Context, challenge []byte) ([]byte, error)
	// Pair performs the cryptographic binding between card and device.
	Pair(ctx context.Context) error
	// WaitForRemoval blocks until the card leaves the field.
	WaitForRemoval(ctx context.Context) error
}
