// Package shamir implements threshold secret sharing over GF(256). A secret
// is split byte-wise with a random polynomial per byte; any threshold-sized
// subset of shares reconstructs it, fewer reveal nothing.
//
// Shares carry their x-coordinate out of band (1..total) because the wallet
// record stores it as a separate field, not as a share prefix.
package shamir

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

const (
	// MinThreshold is the smallest supported reconstruction threshold.
	MinThreshold = 2
	// MaxShares is the largest share count a wallet can be split into,
	// bounded by the number of cards a device supports.
	MaxShares = 5
)

// Split splits secret into total shares with the given reconstruction
// threshold. The i-th returned share has x-coordinate i+1.
func Split(secret []byte, total, threshold int) ([][]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret is empty")
	}
	if threshold < MinThreshold {
		return nil, errors.Errorf("threshold must be at least %d", MinThreshold)
	}
	if total < threshold {
		return nil, errors.Errorf("total shares %d below threshold %d", total, threshold)
	}
	if total > MaxShares {
		return nil, errors.Errorf("total shares must be at most %d", MaxShares)
	}

	// One random polynomial per secret byte, constant term is the byte.
	polys := make([][]byte, len(secret))
	for i, b := range secret {
		polys[i] = make([]byte, threshold)
		polys[i][0] = b
		if _, err := rand.Read(polys[i][1:]); err != nil {
			return nil, errors.Wrap(err, "generate polynomial coefficients")
		}
	}

	shares := make([][]byte, total)
	for i := range shares {
		x := byte(i + 1)
		share := make([]byte, len(secret))
		for j := range secret {
			share[j] = evalPoly(polys[j], x)
		}
		shares[i] = share
	}

	return shares, nil
}

// Combine reconstructs the secret from shares and their x-coordinates by
// Lagrange interpolation at zero. At least threshold shares must be given;
// passing fewer yields garbage, passing more is harmless.
func Combine(shares [][]byte, xcoords []uint8) ([]byte, error) {
	if len(shares) < MinThreshold {
		return nil, errors.Errorf("need at least %d shares", MinThreshold)
	}
	if len(shares) != len(xcoords) {
		return nil, errors.New("share and x-coordinate counts differ")
	}

	length := len(shares[0])
	if length == 0 {
		return nil, errors.New("shares are empty")
	}
	for i := 1; i < len(shares); i++ {
		if len(shares[i]) != length {
			return nil, errors.New("shares have different lengths")
		}
	}

	seen := make(map[uint8]bool, len(xcoords))
	for _, x := range xcoords {
		if x == 0 {
			return nil, errors.New("x-coordinate zero is reserved for the secret")
		}
		if seen[x] {
			return nil, errors.Errorf("duplicate x-coordinate %d", x)
		}
		seen[x] = true
	}

	secret := make([]byte, length)
	for idx := 0; idx < length; idx++ {
		var acc byte
		for j := range shares {
			// L_j(0) = prod_{m!=j} x_m / (x_m - x_j)
			num, den := byte(1), byte(1)
			for m := range shares {
				if m == j {
					continue
				}
				num = gfMul(num, xcoords[m])
				den = gfMul(den, gfSub(xcoords[m], xcoords[j]))
			}
			acc = gfAdd(acc, gfMul(shares[j][idx], gfDiv(num, den)))
		}
		secret[idx] = acc
	}

	return secret, nil
}

// evalPoly evaluates the polynomial at x using Horner's rule.
func evalPoly(coeffs []byte, x byte) byte {
	result := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = gfAdd(gfMul(result, x), coeffs[i])
	}
	return result
}
