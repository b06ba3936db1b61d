package wallet

import (
	"github.com/pkg/errors"

	"github.com/cardvault/walletcore/internal/shamir"
)

// SplitSecret fills a fresh working buffer with a threshold split of the
// secret. Share i lands in slot i with x-coordinate i+1, matching the card
// slot it will be written to.
func SplitSecret(content ShareContent, secret []byte, total, threshold uint8) (*ShamirData, error) {
	if total > TotalShares || threshold < MinShares {
		return nil, ErrInvalidShamirConfig
	}

	shares, err := shamir.Split(secret, int(total), int(threshold))
	if err != nil {
		return nil, errors.Wrap(err, "split secret")
	}

	xcoords := make([]uint8, total)
	for i := range xcoords {
		xcoords[i] = uint8(i + 1)
	}

	d := &ShamirData{}
	if err := d.SetShares(content, shares, xcoords); err != nil {
		return nil, err
	}
	return d, nil
}

// Reconstruct combines the populated slots back into the secret. At least
// threshold slots must hold decrypted share material; extra slots are used
// as given.
func (d *ShamirData) Reconstruct(threshold uint8) ([]byte, error) {
	if d.Content == ContentUnset {
		return nil, errors.New("working buffer is empty")
	}

	var shares [][]byte
	var xcoords []uint8
	for i, share := range d.Shares {
		if share == nil {
			continue
		}
		shares = append(shares, share)
		xcoords = append(xcoords, d.XCoords[i])
	}
	if len(shares) < int(threshold) {
		return nil, errors.Errorf("have %d shares, need %d", len(shares), threshold)
	}

	secret, err := shamir.Combine(shares, xcoords)
	if err != nil {
		return nil, errors.Wrap(err, "combine shares")
	}
	return secret, nil
}
