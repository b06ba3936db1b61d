package card

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pkg/errors"
)

// Signature verification over card responses. The device itself does not
// verify — the host reports the outcome through a result request — but the
// host tooling and the tests need the reference check.

// ParsePublicKey parses a 33-byte compressed card public key.
func ParsePublicKey(compressed []byte) (*btcec.PublicKey, error) {
	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		return nil, errors.Wrap(err, "parse card public key")
	}
	return pub, nil
}

// VerifySerialSignature checks a card's DER signature over the SHA-256 of
// its serial number.
func VerifySerialSignature(pub *btcec.PublicKey, serial, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(serial)
	return parsed.Verify(digest[:], pub)
}

// VerifyChallengeSignature checks a card's DER signature over the SHA-256 of
// serial||challenge. Binding the serial into the digest stops a signature
// from one card being replayed as another's.
func VerifyChallengeSignature(pub *btcec.PublicKey, serial, challenge, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(append(append([]byte(nil), serial...), challenge...))
	return parsed.Verify(digest[:], pub)
}
