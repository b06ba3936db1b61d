// Package crypt is the crypto primitives adapter for the wallet core: hashing
// for checksums and PIN digests, and the authenticated cipher protecting
// share material. The rest of the core never touches cipher internals
// directly.
package crypt

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the symmetric key size for share encryption.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the AEAD nonce size consumed per share.
	NonceSize = chacha20poly1305.NonceSize
	// TagSize is the Poly1305 authentication tag size.
	TagSize = chacha20poly1305.Overhead
)

// Cipher seals and opens individual shares with ChaCha20-Poly1305.
type Cipher struct {
	key []byte
}

// NewCipher wraps a 32-byte symmetric key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, errors.Errorf("cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	c := &Cipher{key: make([]byte, KeySize)}
	copy(c.key, key)
	return c, nil
}

// SealShare encrypts share in place and returns nonce||tag. A fresh nonce is
// drawn for every call; nonces are never reused across shares or calls.
func (c *Cipher) SealShare(share []byte) ([]byte, error) {
	if len(share) == 0 {
		return nil, errors.New("share is empty")
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, errors.Wrap(err, "create aead")
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}

	sealed := aead.Seal(nil, nonce, share, nil)
	copy(share, sealed[:len(share)])

	return append(nonce, sealed[len(share):]...), nil
}

// OpenShare decrypts share in place using the nonce||tag produced by
// SealShare. The share is only overwritten when authentication succeeds.
func (c *Cipher) OpenShare(share, nonceTag []byte) error {
	if len(share) == 0 {
		return errors.New("share is empty")
	}
	if len(nonceTag) != NonceSize+TagSize {
		return errors.Errorf("nonce+tag must be %d bytes, got %d", NonceSize+TagSize, len(nonceTag))
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return errors.Wrap(err, "create aead")
	}

	sealed := make([]byte, 0, len(share)+TagSize)
	sealed = append(sealed, share...)
	sealed = append(sealed, nonceTag[NonceSize:]...)

	plain, err := aead.Open(nil, nonceTag[:NonceSize], sealed, nil)
	if err != nil {
		return errors.Wrap(err, "authenticate share")
	}

	copy(share, plain)
	return nil
}

// SingleHash is one round of SHA-256.
func SingleHash(data []byte) [sha256.Size]byte {
	return sha256.Sum256(data)
}

// DoubleHash is SHA-256 applied twice. Cards store the double hash of the
// PIN, never the PIN or its single hash.
func DoubleHash(data []byte) [sha256.Size]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}
