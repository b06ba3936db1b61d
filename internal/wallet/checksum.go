package wallet

import (
	"github.com/cardvault/walletcore/internal/crypt"
)

// Checksum presence tag: the low two bits of the last checksum byte. Legacy
// records written before checksums leave them unset; such records always
// pass verification because there is nothing to check against.
const (
	checksumTagMask  = 0x03
	checksumTagValue = 0x01
)

// checksumSerialize reproduces the exact on-card serialization the checksum
// is computed over. The field order is part of the format; changing it
// breaks verification of records written by other versions. The arbitrary
// data region is hashed at its full fixed size, zero padded.
func checksumSerialize(w *Wallet) []byte {
	buf := make([]byte, 0, NameSize+4+ShareWithMACAndNonceSize+KeySize+WalletIDSize+MaxArbitraryDataSize)
	buf = append(buf, w.Name[:]...)
	buf = append(buf, w.XCoordinate)
	buf = append(buf, w.MnemonicCount)
	buf = append(buf, w.TotalShares)
	buf = append(buf, w.ShareWithMACAndNonce[:]...)
	buf = append(buf, w.Threshold)
	buf = append(buf, w.Flags.InfoByte())
	buf = append(buf, w.Key[:]...)
	buf = append(buf, w.WalletID[:]...)

	var padded [MaxArbitraryDataSize]byte
	copy(padded[:], w.ArbitraryDataShare)
	buf = append(buf, padded[:]...)

	return buf
}

// ComputeChecksum returns the 4-byte checksum of the record: the first 30
// bits of SHA-256 over the serialized fields, with the presence tag forced
// into the low two bits.
func ComputeChecksum(w *Wallet) [ChecksumSize]byte {
	digest := crypt.SingleHash(checksumSerialize(w))

	var checksum [ChecksumSize]byte
	copy(checksum[:], digest[:ChecksumSize])
	checksum[ChecksumSize-1] = checksum[ChecksumSize-1]&^checksumTagMask | checksumTagValue
	return checksum
}

// SetChecksum recomputes and stores the checksum, marking the record as
// checksum-bearing.
func (w *Wallet) SetChecksum() {
	w.Checksum = ComputeChecksum(w)
}

// VerifyChecksum reports whether the stored checksum matches recomputation.
// A nil wallet fails; a record without the presence tag passes regardless of
// content.
func VerifyChecksum(w *Wallet) bool {
	if w == nil {
		return false
	}
	if w.Checksum[ChecksumSize-1]&checksumTagMask != checksumTagValue {
		return true
	}
	return w.Checksum == ComputeChecksum(w)
}
