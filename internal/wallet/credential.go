package wallet

import (
	"github.com/pkg/errors"

	"github.com/cardvault/walletcore/pkg/memzero"
)

// CredentialData is the transient buffer for mnemonic words, passphrase and
// the single-round password hash while a flow is in progress. It is owned
// exclusively by the active flow; every entry and exit path that can observe
// it must Wipe it so no flow reads stale credentials.
type CredentialData struct {
	Words              [][]byte
	Passphrase         []byte
	PasswordSingleHash [32]byte
}

// SetWords copies the mnemonic words into the buffer, wiping whatever was
// there before.
func (c *CredentialData) SetWords(words [][]byte) error {
	if len(words) == 0 || len(words) > MaxMnemonicWords {
		return errors.Errorf("mnemonic word count %d out of range", len(words))
	}
	for i, w := range words {
		if len(w) == 0 || len(w) > MaxMnemonicWordLength {
			return errors.Errorf("mnemonic word %d has invalid length %d", i, len(w))
		}
	}

	c.wipeWords()
	c.Words = make([][]byte, len(words))
	for i, w := range words {
		c.Words[i] = append([]byte(nil), w...)
	}
	return nil
}

// SetPassphrase copies the passphrase into the buffer.
func (c *CredentialData) SetPassphrase(passphrase []byte) error {
	if len(passphrase) > MaxPassphraseLength {
		return errors.Errorf("passphrase length %d exceeds maximum", len(passphrase))
	}
	memzero.Wipe(c.Passphrase)
	c.Passphrase = append([]byte(nil), passphrase...)
	return nil
}

// Wipe zeroes every credential field.
func (c *CredentialData) Wipe() {
	c.wipeWords()
	memzero.Wipe(c.Passphrase)
	c.Passphrase = nil
	memzero.Wipe(c.PasswordSingleHash[:])
}

func (c *CredentialData) wipeWords() {
	for _, w := range c.Words {
		memzero.Wipe(w)
	}
	c.Words = nil
}
