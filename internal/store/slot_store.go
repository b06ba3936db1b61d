// Package store persists wallet records in the device's slot table: at most
// wallet.MaxWallets encrypted files under one directory. Records are sealed
// with AES-GCM under a scrypt-derived key, written atomically, and validated
// (structure plus checksum) on every load.
package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/scrypt"

	"github.com/cardvault/walletcore/internal/wallet"
)

// Lookup failures callers branch on.
var (
	ErrSlotEmpty       = errors.New("wallet slot is empty")
	ErrSlotOutOfRange  = errors.New("wallet slot out of range")
	ErrNoFreeSlot      = errors.New("all wallet slots are occupied")
	ErrDuplicateWallet = errors.New("a wallet with this id already exists")
)

const saltSize = 16

// SlotStore is the encrypted on-disk slot table.
type SlotStore struct {
	basePath string
	key      []byte
	log      zerolog.Logger
}

// NewSlotStore opens (or initializes) a slot table under basePath. The
// encryption key is derived from the passphrase with scrypt; the salt lives
// next to the slots so the same passphrase reopens the table.
func NewSlotStore(basePath, passphrase string, logger zerolog.Logger) (*SlotStore, error) {
	if passphrase == "" {
		return nil, errors.New("store passphrase is empty")
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}

	salt, err := loadOrCreateSalt(filepath.Join(basePath, "salt"))
	if err != nil {
		return nil, err
	}

	key, err := scrypt.Key([]byte(passphrase), salt, 32768, 8, 1, 32)
	if err != nil {
		return nil, errors.Wrap(err, "derive store key")
	}

	return &SlotStore{basePath: basePath, key: key, log: logger}, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltSize {
			return nil, errors.Errorf("store salt is %d bytes, want %d", len(salt), saltSize)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read store salt")
	}

	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "generate store salt")
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, errors.Wrap(err, "write store salt")
	}
	return salt, nil
}

func (s *SlotStore) slotPath(slot int) string {
	return filepath.Join(s.basePath, fmt.Sprintf("slot%d.enc", slot))
}

func (s *SlotStore) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create GCM")
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *SlotStore) open(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "create GCM")
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed record too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt slot")
	}
	return plaintext, nil
}

// Save validates and writes a wallet record into a slot. The write goes
// through a temp file and an atomic rename so a crash never leaves a
// half-written slot.
func (s *SlotStore) Save(slot int, w *wallet.Wallet) error {
	if slot < 0 || slot >= wallet.MaxWallets {
		return errors.Wrapf(ErrSlotOutOfRange, "slot %d", slot)
	}
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, "wallet record rejected")
	}

	record, err := w.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "serialize wallet record")
	}
	sealed, err := s.seal(record)
	if err != nil {
		return errors.Wrap(err, "encrypt wallet record")
	}

	path := s.slotPath(slot)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, sealed, 0600); err != nil {
		return errors.Wrap(err, "write wallet record")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "commit wallet record")
	}

	s.log.Info().Int("slot", slot).Str("wallet", w.NameString()).Msg("wallet slot written")
	return nil
}

// Insert stores a record in the first free slot and returns its index.
// A record whose wallet id already occupies a slot is rejected.
func (s *SlotStore) Insert(w *wallet.Wallet) (int, error) {
	free := -1
	for slot := 0; slot < wallet.MaxWallets; slot++ {
		existing, err := s.Load(slot)
		if errors.Is(err, ErrSlotEmpty) {
			if free < 0 {
				free = slot
			}
			continue
		}
		if err != nil {
			return 0, err
		}
		if existing.WalletID == w.WalletID {
			return 0, errors.Wrapf(ErrDuplicateWallet, "slot %d", slot)
		}
	}
	if free < 0 {
		return 0, ErrNoFreeSlot
	}
	if err := s.Save(free, w); err != nil {
		return 0, err
	}
	return free, nil
}

// Load reads, decrypts and validates the record in a slot.
func (s *SlotStore) Load(slot int) (*wallet.Wallet, error) {
	if slot < 0 || slot >= wallet.MaxWallets {
		return nil, errors.Wrapf(ErrSlotOutOfRange, "slot %d", slot)
	}

	sealed, err := os.ReadFile(s.slotPath(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrSlotEmpty, "slot %d", slot)
		}
		return nil, errors.Wrap(err, "read wallet slot")
	}

	record, err := s.open(sealed)
	if err != nil {
		return nil, err
	}

	var w wallet.Wallet
	if err := w.UnmarshalBinary(record); err != nil {
		return nil, errors.Wrap(err, "parse wallet record")
	}
	if err := w.Validate(); err != nil {
		return nil, errors.Wrap(err, "stored wallet record invalid")
	}
	return &w, nil
}

// Delete removes the record in a slot. Deleting an empty slot is not an
// error.
func (s *SlotStore) Delete(slot int) error {
	if slot < 0 || slot >= wallet.MaxWallets {
		return errors.Wrapf(ErrSlotOutOfRange, "slot %d", slot)
	}
	if err := os.Remove(s.slotPath(slot)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete wallet slot")
	}
	s.log.Info().Int("slot", slot).Msg("wallet slot cleared")
	return nil
}

// Entry describes one occupied slot.
type Entry struct {
	Slot int
	Name string
}

// List returns the occupied slots in order.
func (s *SlotStore) List() ([]Entry, error) {
	var entries []Entry
	for slot := 0; slot < wallet.MaxWallets; slot++ {
		w, err := s.Load(slot)
		if errors.Is(err, ErrSlotEmpty) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Slot: slot, Name: w.NameString()})
	}
	return entries, nil
}
