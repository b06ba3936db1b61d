package shamir

import (
	"bytes"
	"testing"
)

func TestSplitAndCombine(t *testing.T) {
	secret := []byte("master seed material under test")

	shares, err := Split(secret, 5, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(shares) != 5 {
		t.Fatalf("expected 5 shares, got %d", len(shares))
	}

	recovered, err := Combine(shares[:3], []uint8{1, 2, 3})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if !bytes.Equal(recovered, secret) {
		t.Fatalf("recovered %x, want %x", recovered, secret)
	}

	// Below-threshold reconstruction must not yield the secret.
	garbage, err := Combine(shares[:2], []uint8{1, 2})
	if err != nil {
		t.Fatalf("Combine below threshold: %v", err)
	}
	if bytes.Equal(garbage, secret) {
		t.Fatal("two shares of a 3-of-5 split reconstructed the secret")
	}
}

func TestAllValidConfigurations(t *testing.T) {
	secret := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x7f, 0xff}

	for total := 2; total <= MaxShares; total++ {
		for threshold := MinThreshold; threshold <= total; threshold++ {
			shares, err := Split(secret, total, threshold)
			if err != nil {
				t.Fatalf("Split(%d,%d): %v", total, threshold, err)
			}

			// Every threshold-sized subset must reconstruct.
			forEachSubset(total, threshold, func(indices []int) {
				subset := make([][]byte, threshold)
				xs := make([]uint8, threshold)
				for i, idx := range indices {
					subset[i] = shares[idx]
					xs[i] = uint8(idx + 1)
				}
				recovered, err := Combine(subset, xs)
				if err != nil {
					t.Fatalf("Combine(%d,%d) subset %v: %v", total, threshold, indices, err)
				}
				if !bytes.Equal(recovered, secret) {
					t.Fatalf("Combine(%d,%d) subset %v mismatch", total, threshold, indices)
				}
			})
		}
	}
}

func forEachSubset(n, k int, fn func([]int)) {
	indices := make([]int, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			fn(indices)
			return
		}
		for i := start; i < n; i++ {
			indices[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
}

func TestSplitValidation(t *testing.T) {
	cases := []struct {
		name      string
		secret    []byte
		total     int
		threshold int
	}{
		{"empty secret", nil, 3, 2},
		{"threshold too small", []byte{1}, 3, 1},
		{"total below threshold", []byte{1}, 2, 3},
		{"too many shares", []byte{1}, 6, 2},
	}
	for _, tc := range cases {
		if _, err := Split(tc.secret, tc.total, tc.threshold); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestCombineValidation(t *testing.T) {
	shares, err := Split([]byte{0xaa, 0xbb}, 3, 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	if _, err := Combine(shares[:1], []uint8{1}); err == nil {
		t.Error("expected error for single share")
	}
	if _, err := Combine(shares[:2], []uint8{1}); err == nil {
		t.Error("expected error for count mismatch")
	}
	if _, err := Combine(shares[:2], []uint8{1, 1}); err == nil {
		t.Error("expected error for duplicate x-coordinate")
	}
	if _, err := Combine(shares[:2], []uint8{0, 1}); err == nil {
		t.Error("expected error for zero x-coordinate")
	}
	if _, err := Combine([][]byte{{1, 2}, {3}}, []uint8{1, 2}); err == nil {
		t.Error("expected error for length mismatch")
	}
}
