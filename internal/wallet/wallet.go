// Package wallet holds the device-resident wallet record and the transient
// working buffers a flow fills while splitting or reconstructing a secret.
// The byte layout of the record is shared with the cards, so sizes and field
// order here are part of the on-card format and must not drift.
package wallet

import (
	"bytes"

	"github.com/pkg/errors"
)

const (
	// NameSize is the fixed size of the wallet display label.
	NameSize = 16
	// BlockSize is the size of one mnemonic share and of stored digests.
	BlockSize = 32
	// NonceFieldSize is the nonce region stored next to each share.
	NonceFieldSize = 16
	// MACSize is the authentication tag stored next to each share.
	MACSize = 16
	// ShareWithMACAndNonceSize is one share plus its nonce and tag.
	ShareWithMACAndNonceSize = BlockSize + NonceFieldSize + MACSize
	// ChecksumSize is the stored checksum width.
	ChecksumSize = 4
	// KeySize is the symmetric key encrypting the extended public key.
	KeySize = 32
	// BeneficiaryKeySize and BeneficiaryIVSize protect a secondary value.
	BeneficiaryKeySize = 16
	BeneficiaryIVSize  = 16
	// WalletIDSize is the hash of the wallet's master public key.
	WalletIDSize = 32

	// MaxWallets is the number of wallet slots a device holds.
	MaxWallets = 4
	// TotalShares is the maximum share count, one per card.
	TotalShares = 5
	// MinShares is the smallest reconstruction threshold.
	MinShares = 2
	// MaxArbitraryDataSize bounds user-supplied arbitrary data.
	MaxArbitraryDataSize = 512

	// MaxMnemonicWords and MaxMnemonicWordLength bound credential entry.
	MaxMnemonicWords      = 24
	MaxMnemonicWordLength = 16
	// MaxPassphraseLength bounds passphrase entry.
	MaxPassphraseLength = 65
)

// Flags is the wallet info bitfield unpacked into independent booleans.
// Bit positions are fixed by the card format and only materialize in
// InfoByte / FlagsFromByte.
type Flags struct {
	PINSet           bool
	PassphraseSet    bool
	HasArbitraryData bool
}

// InfoByte packs the flags into the single info byte stored on cards.
func (f Flags) InfoByte() byte {
	var b byte
	if f.PINSet {
		b |= 1 << 0
	}
	if f.PassphraseSet {
		b |= 1 << 1
	}
	if f.HasArbitraryData {
		b |= 1 << 2
	}
	return b
}

// FlagsFromByte unpacks the stored info byte.
func FlagsFromByte(b byte) Flags {
	return Flags{
		PINSet:           b&(1<<0) != 0,
		PassphraseSet:    b&(1<<1) != 0,
		HasArbitraryData: b&(1<<2) != 0,
	}
}

// Wallet is one device-resident wallet record, mirroring the structure
// written to and read from cards.
type Wallet struct {
	Name                 [NameSize]byte
	Flags                Flags
	PasswordDoubleHash   [BlockSize]byte
	ShareWithMACAndNonce [ShareWithMACAndNonceSize]byte
	ArbitraryDataShare   []byte

	MnemonicCount     uint8
	Threshold         uint8
	TotalShares       uint8
	ArbitraryDataSize uint16

	// XCoordinate is this card's share index in the polynomial (1..TotalShares).
	XCoordinate uint8

	// Checksum covers the serialized record; the low two bits of its last
	// byte are the presence tag. Legacy records leave the tag unset.
	Checksum [ChecksumSize]byte

	Key            [KeySize]byte
	BeneficiaryKey [BeneficiaryKeySize]byte
	BeneficiaryIV  [BeneficiaryIVSize]byte
	WalletID       [WalletIDSize]byte
}

// Validation errors for wallet data received from cards.
var (
	ErrInvalidNameLength   = errors.New("invalid wallet name length")
	ErrInvalidWalletConfig = errors.New("invalid wallet config")
	ErrInvalidShamirConfig = errors.New("invalid shamir config")
	ErrInvalidShareIndex   = errors.New("invalid share index")
	ErrInvalidChecksum     = errors.New("invalid checksum")
)

// Validate checks the structural invariants of a record read from a card,
// including the checksum when the presence tag is set.
func (w *Wallet) Validate() error {
	if w == nil {
		return errors.New("wallet is nil")
	}
	if w.Name[0] == 0 {
		return ErrInvalidNameLength
	}
	if int(w.ArbitraryDataSize) > MaxArbitraryDataSize || len(w.ArbitraryDataShare) > MaxArbitraryDataSize {
		return ErrInvalidWalletConfig
	}
	if w.Flags.HasArbitraryData != (w.ArbitraryDataSize > 0) {
		return ErrInvalidWalletConfig
	}
	if w.Threshold < MinShares || w.Threshold > w.TotalShares || w.TotalShares > TotalShares {
		return ErrInvalidShamirConfig
	}
	if w.XCoordinate < 1 || w.XCoordinate > w.TotalShares {
		return ErrInvalidShareIndex
	}
	if !VerifyChecksum(w) {
		return ErrInvalidChecksum
	}
	return nil
}

// NameString returns the display label without trailing zero padding.
func (w *Wallet) NameString() string {
	return string(bytes.TrimRight(w.Name[:], "\x00"))
}
