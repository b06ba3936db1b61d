package wallet

import (
	"errors"
	"testing"
)

func TestFlagsRoundTrip(t *testing.T) {
	cases := []Flags{
		{},
		{PINSet: true},
		{PassphraseSet: true},
		{HasArbitraryData: true},
		{PINSet: true, PassphraseSet: true, HasArbitraryData: true},
	}
	for _, f := range cases {
		if got := FlagsFromByte(f.InfoByte()); got != f {
			t.Errorf("flags %+v round trip gave %+v", f, got)
		}
	}
}

func TestFlagBitPositions(t *testing.T) {
	// Bit layout is card format, not an internal detail.
	if (Flags{PINSet: true}).InfoByte() != 0x01 {
		t.Error("PIN flag must be bit 0")
	}
	if (Flags{PassphraseSet: true}).InfoByte() != 0x02 {
		t.Error("passphrase flag must be bit 1")
	}
	if (Flags{HasArbitraryData: true}).InfoByte() != 0x04 {
		t.Error("arbitrary data flag must be bit 2")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Wallet {
		w := sampleWallet()
		w.SetChecksum()
		return w
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid wallet rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Wallet)
		want   error
	}{
		{"empty name", func(w *Wallet) { w.Name = [NameSize]byte{} }, ErrInvalidNameLength},
		{"threshold too low", func(w *Wallet) { w.Threshold = 1; w.SetChecksum() }, ErrInvalidShamirConfig},
		{"threshold above total", func(w *Wallet) { w.Threshold = 4; w.TotalShares = 3; w.SetChecksum() }, ErrInvalidShamirConfig},
		{"too many shares", func(w *Wallet) { w.TotalShares = 6; w.Threshold = 2; w.SetChecksum() }, ErrInvalidShamirConfig},
		{"share index zero", func(w *Wallet) { w.XCoordinate = 0; w.SetChecksum() }, ErrInvalidShareIndex},
		{"share index above total", func(w *Wallet) { w.XCoordinate = 4; w.SetChecksum() }, ErrInvalidShareIndex},
		{"flag without data", func(w *Wallet) { w.Flags.HasArbitraryData = true; w.SetChecksum() }, ErrInvalidWalletConfig},
		{"checksum mismatch", func(w *Wallet) { w.MnemonicCount = 12 }, ErrInvalidChecksum},
	}
	for _, tc := range cases {
		w := valid()
		tc.mutate(w)
		if err := w.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestRecordCodecRoundTrip(t *testing.T) {
	w := sampleWallet()
	w.Flags.HasArbitraryData = true
	w.ArbitraryDataShare = []byte("user note payload")
	w.ArbitraryDataSize = uint16(len(w.ArbitraryDataShare))
	w.SetChecksum()

	data, err := w.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var decoded Wallet
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	if decoded.NameString() != w.NameString() ||
		decoded.Flags != w.Flags ||
		decoded.Threshold != w.Threshold ||
		decoded.XCoordinate != w.XCoordinate ||
		decoded.Checksum != w.Checksum ||
		string(decoded.ArbitraryDataShare) != string(w.ArbitraryDataShare) {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, w)
	}
	if !VerifyChecksum(&decoded) {
		t.Fatal("decoded record must still verify")
	}
}

func TestRecordCodecRejectsTruncation(t *testing.T) {
	w := sampleWallet()
	data, err := w.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var decoded Wallet
	if err := decoded.UnmarshalBinary(data[:len(data)-1]); err == nil {
		t.Fatal("expected error for truncated record")
	}
}

func TestMarshalRejectsSizeMismatch(t *testing.T) {
	w := sampleWallet()
	w.ArbitraryDataShare = []byte("abc")
	w.ArbitraryDataSize = 2
	if _, err := w.MarshalBinary(); err == nil {
		t.Fatal("expected error for size/length mismatch")
	}
}
