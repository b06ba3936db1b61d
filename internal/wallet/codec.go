package wallet

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// recordFixedSize is the serialized record size without the trailing
// arbitrary data region.
const recordFixedSize = NameSize + 1 + BlockSize + ShareWithMACAndNonceSize +
	3 + 2 + 1 + ChecksumSize + KeySize + BeneficiaryKeySize + BeneficiaryIVSize + WalletIDSize

// MarshalBinary serializes the record for the device slot store. The
// arbitrary data region is written at its actual size, length-prefixed by
// the ArbitraryDataSize field.
func (w *Wallet) MarshalBinary() ([]byte, error) {
	if int(w.ArbitraryDataSize) != len(w.ArbitraryDataShare) {
		return nil, errors.Errorf("arbitrary data size %d does not match share length %d",
			w.ArbitraryDataSize, len(w.ArbitraryDataShare))
	}

	buf := make([]byte, 0, recordFixedSize+len(w.ArbitraryDataShare))
	buf = append(buf, w.Name[:]...)
	buf = append(buf, w.Flags.InfoByte())
	buf = append(buf, w.PasswordDoubleHash[:]...)
	buf = append(buf, w.ShareWithMACAndNonce[:]...)
	buf = append(buf, w.MnemonicCount, w.Threshold, w.TotalShares)
	buf = binary.BigEndian.AppendUint16(buf, w.ArbitraryDataSize)
	buf = append(buf, w.XCoordinate)
	buf = append(buf, w.Checksum[:]...)
	buf = append(buf, w.Key[:]...)
	buf = append(buf, w.BeneficiaryKey[:]...)
	buf = append(buf, w.BeneficiaryIV[:]...)
	buf = append(buf, w.WalletID[:]...)
	buf = append(buf, w.ArbitraryDataShare...)
	return buf, nil
}

// UnmarshalBinary parses a record serialized by MarshalBinary.
func (w *Wallet) UnmarshalBinary(data []byte) error {
	if len(data) < recordFixedSize {
		return errors.Errorf("record too short: %d bytes", len(data))
	}

	off := 0
	next := func(n int) []byte {
		chunk := data[off : off+n]
		off += n
		return chunk
	}

	copy(w.Name[:], next(NameSize))
	w.Flags = FlagsFromByte(next(1)[0])
	copy(w.PasswordDoubleHash[:], next(BlockSize))
	copy(w.ShareWithMACAndNonce[:], next(ShareWithMACAndNonceSize))
	w.MnemonicCount = next(1)[0]
	w.Threshold = next(1)[0]
	w.TotalShares = next(1)[0]
	w.ArbitraryDataSize = binary.BigEndian.Uint16(next(2))
	w.XCoordinate = next(1)[0]
	copy(w.Checksum[:], next(ChecksumSize))
	copy(w.Key[:], next(KeySize))
	copy(w.BeneficiaryKey[:], next(BeneficiaryKeySize))
	copy(w.BeneficiaryIV[:], next(BeneficiaryIVSize))
	copy(w.WalletID[:], next(WalletIDSize))

	if w.ArbitraryDataSize > MaxArbitraryDataSize {
		return ErrInvalidWalletConfig
	}
	if len(data)-off != int(w.ArbitraryDataSize) {
		return errors.Errorf("arbitrary data region is %d bytes, header says %d",
			len(data)-off, w.ArbitraryDataSize)
	}
	if w.ArbitraryDataSize > 0 {
		w.ArbitraryDataShare = append([]byte(nil), data[off:]...)
	} else {
		w.ArbitraryDataShare = nil
	}
	return nil
}
