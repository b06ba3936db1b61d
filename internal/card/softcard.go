package card

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"

	"github.com/cardvault/walletcore/internal/events"
)

const serialSize = 8

// SoftCard is an in-process card with its own secp256k1 key. It implements
// Transport for tests and the emulator command: EnableSelect reports
// presence immediately through the event source, the signing calls behave
// like a genuine card.
type SoftCard struct {
	index      uint8
	serial     []byte
	key        *btcec.PrivateKey
	source     *events.ChannelSource
	acceptable Mask

	// pairKey is set once Pair succeeds; both sides of the exchange are
	// simulated here, so it doubles as proof the ECDH agreed.
	pairKey []byte
}

// NewSoftCard creates a software card in the given slot (1..4) that signals
// presence on the given event source.
func NewSoftCard(index uint8, source *events.ChannelSource) (*SoftCard, error) {
	if MaskForIndex(index) == 0 {
		return nil, errors.Errorf("card index %d out of range", index)
	}
	if source == nil {
		return nil, errors.New("event source is nil")
	}

	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate card key")
	}

	serial := make([]byte, serialSize)
	if _, err := io.ReadFull(rand.Reader, serial); err != nil {
		return nil, errors.Wrap(err, "generate card serial")
	}

	return &SoftCard{index: index, serial: serial, key: key, source: source}, nil
}

// PublicKey returns the card's public key for host-side verification.
func (c *SoftCard) PublicKey() *btcec.PublicKey { return c.key.PubKey() }

// Serial returns the card's serial number.
func (c *SoftCard) Serial() []byte { return append([]byte(nil), c.serial...) }

// Paired reports whether a pairing key has been established.
func (c *SoftCard) Paired() bool { return c.pairKey != nil }

// EnableSelect implements Transport. The software card is always in the
// field, so presence is signaled at once.
func (c *SoftCard) EnableSelect(acceptable Mask) {
	c.acceptable = acceptable
	c.source.PushHardware()
}

// SignSerial implements Transport.
func (c *SoftCard) SignSerial(_ context.Context) (*SerialSignature, error) {
	if !c.acceptable.Accepts(c.index) {
		return nil, ErrCardNotAccepted
	}
	digest := sha256.Sum256(c.serial)
	sig := ecdsa.Sign(c.key, digest[:])
	return &SerialSignature{
		Serial:    c.Serial(),
		Signature: sig.Serialize(),
	}, nil
}

// SignChallenge implements Transport.
func (c *SoftCard) SignChallenge(_ context.Context, challenge []byte) ([]byte, error) {
	if !c.acceptable.Accepts(c.index) {
		return nil, ErrCardNotAccepted
	}
	if len(challenge) == 0 {
		return nil, errors.New("challenge is empty")
	}
	digest := sha256.Sum256(append(append([]byte(nil), c.serial...), challenge...))
	sig := ecdsa.Sign(c.key, digest[:])
	return sig.Serialize(), nil
}

// Pair implements Transport: an ephemeral ECDH exchange with the card key.
// Both halves run in process; the derived keys must agree.
func (c *SoftCard) Pair(_ context.Context) error {
	ephemeral, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return errors.Wrap(err, "generate ephemeral pairing key")
	}

	deviceSide := pairingKey(sharedSecret(ephemeral, c.key.PubKey()))
	cardSide := pairingKey(sharedSecret(c.key, ephemeral.PubKey()))
	if deviceSide != cardSide {
		return errors.New("pairing key agreement failed")
	}

	c.pairKey = deviceSide[:]
	return nil
}

// WaitForRemoval implements Transport; the software card leaves the field as
// soon as it is asked to.
func (c *SoftCard) WaitForRemoval(_ context.Context) error { return nil }
