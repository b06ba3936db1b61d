package wallet

import (
	"github.com/pkg/errors"

	"github.com/cardvault/walletcore/internal/crypt"
	"github.com/cardvault/walletcore/pkg/memzero"
)

// ShareContent tags what the Shamir working buffer currently holds. The two
// interpretations are mutually exclusive: a flow splits either the mnemonic
// entropy or arbitrary user data, never both.
type ShareContent uint8

const (
	ContentUnset ShareContent = iota
	ContentMnemonic
	ContentArbitraryData
)

// ShamirData is the transient working buffer for one split or reconstruct
// flow: up to TotalShares shares with their x-coordinates and, once
// encrypted, each share's nonce||tag. It holds raw secret material, so the
// owning flow must Wipe it on every exit path and never let it survive into
// an unrelated flow.
type ShamirData struct {
	Content        ShareContent
	Shares         [TotalShares][]byte
	XCoords        [TotalShares]uint8
	EncryptionData [TotalShares][]byte
}

// SetShares populates the buffer with freshly produced shares. The buffer is
// wiped first so no slot can carry material from a previous flow.
func (d *ShamirData) SetShares(content ShareContent, shares [][]byte, xcoords []uint8) error {
	if content == ContentUnset {
		return errors.New("share content tag is unset")
	}
	if len(shares) == 0 || len(shares) > TotalShares {
		return errors.Errorf("share count %d out of range", len(shares))
	}
	if len(shares) != len(xcoords) {
		return errors.New("share and x-coordinate counts differ")
	}

	d.Wipe()
	d.Content = content
	for i := range shares {
		d.Shares[i] = append([]byte(nil), shares[i]...)
		d.XCoords[i] = xcoords[i]
	}
	return nil
}

// EncryptShares transforms every populated slot in place, drawing a fresh
// nonce per share and storing nonce||tag alongside. On error the buffer is
// in an undefined mix of plain and sealed slots and must be re-derived, not
// reused.
func (d *ShamirData) EncryptShares(cipher *crypt.Cipher) error {
	if cipher == nil {
		return errors.New("cipher is nil")
	}
	if d.Content == ContentUnset {
		return errors.New("working buffer is empty")
	}

	for i, share := range d.Shares {
		if share == nil {
			continue
		}
		nonceTag, err := cipher.SealShare(share)
		if err != nil {
			return errors.Wrapf(err, "encrypt share slot %d", i)
		}
		d.EncryptionData[i] = nonceTag
	}
	return nil
}

// DecryptShares reverses EncryptShares using each slot's stored nonce||tag.
// A slot that fails authentication reports its own index; other slots are
// not misattributed.
func (d *ShamirData) DecryptShares(cipher *crypt.Cipher) error {
	if cipher == nil {
		return errors.New("cipher is nil")
	}
	if d.Content == ContentUnset {
		return errors.New("working buffer is empty")
	}

	for i, share := range d.Shares {
		if share == nil {
			continue
		}
		if d.EncryptionData[i] == nil {
			return errors.Errorf("share slot %d has no encryption data", i)
		}
		if err := cipher.OpenShare(share, d.EncryptionData[i]); err != nil {
			return errors.Wrapf(err, "decrypt share slot %d", i)
		}
	}
	return nil
}

// Wipe zeroes all secret material and resets the buffer for the next flow.
func (d *ShamirData) Wipe() {
	for i := range d.Shares {
		memzero.WipeAll(d.Shares[i], d.EncryptionData[i])
		d.Shares[i] = nil
		d.EncryptionData[i] = nil
		d.XCoords[i] = 0
	}
	d.Content = ContentUnset
}
