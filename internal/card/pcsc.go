package card

import (
	"context"
	"sync"
	"time"

	"github.com/ebfe/scard"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cardvault/walletcore/internal/events"
)

// Proprietary APDU instruction set of the wallet card applet.
const (
	claProprietary   = 0x80
	insGetSlotIndex  = 0xB0
	insSignSerial    = 0xA0
	insSignChallenge = 0xA2
	insPair          = 0xA4
)

const presencePollInterval = 250 * time.Millisecond

// PCSCTransport drives a physical card through a PC/SC reader. EnableSelect
// starts a background presence wait; once a card with an acceptable slot
// index is in the field, the transport connects exclusively and signals the
// event source.
type PCSCTransport struct {
	ctx    *scard.Context
	reader string
	source *events.ChannelSource
	log    zerolog.Logger

	mu           sync.Mutex
	card         *scard.Card
	generation   uint64
	cancelSelect context.CancelFunc
}

// NewPCSCTransport connects to a PC/SC reader: the one named, or the first
// available when reader is empty.
func NewPCSCTransport(reader string, source *events.ChannelSource, log zerolog.Logger) (*PCSCTransport, error) {
	if source == nil {
		return nil, errors.New("event source is nil")
	}

	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, errors.Wrap(err, "establish pcsc context")
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, errors.Wrap(err, "list pcsc readers")
	}
	chosen, err := pickReader(readers, reader)
	if err != nil {
		ctx.Release()
		return nil, err
	}

	log.Info().Str("reader", chosen).Msg("using pcsc reader")
	return &PCSCTransport{ctx: ctx, reader: chosen, source: source, log: log}, nil
}

func pickReader(readers []string, want string) (string, error) {
	if len(readers) == 0 {
		return "", errors.New("no pcsc readers found")
	}
	if want == "" {
		return readers[0], nil
	}
	for _, r := range readers {
		if r == want {
			return r, nil
		}
	}
	return "", errors.Errorf("pcsc reader %q not found", want)
}

// Release disconnects and frees the PC/SC context.
func (t *PCSCTransport) Release() {
	t.mu.Lock()
	if t.cancelSelect != nil {
		t.cancelSelect()
		t.cancelSelect = nil
	}
	if t.card != nil {
		_ = t.card.Disconnect(scard.ResetCard)
		t.card = nil
	}
	t.mu.Unlock()
	_ = t.ctx.Release()
}

// EnableSelect implements Transport. Every call supersedes the previous
// selection: a goroutine still waiting for a tap on behalf of an earlier,
// aborted attempt is cancelled, and a card it picks up anyway is discarded
// instead of being adopted under that attempt's acceptable mask.
func (t *PCSCTransport) EnableSelect(acceptable Mask) {
	ctx, gen := t.beginSelect()
	go func() {
		selected, index, err := t.selectCard(ctx, acceptable)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				t.log.Warn().Err(err).Msg("card selection failed")
			}
			return
		}
		if !t.adopt(gen, selected) {
			_ = selected.Disconnect(scard.ResetCard)
			return
		}
		t.log.Debug().Uint8("slot", index).Msg("card detected")
	}()
}

// beginSelect cancels any selection in flight and arms a new one.
func (t *PCSCTransport) beginSelect() (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelSelect != nil {
		t.cancelSelect()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancelSelect = cancel
	t.generation++
	return ctx, t.generation
}

// adopt installs a freshly selected card unless a newer selection has
// superseded this one. Only an adopted card signals presence.
func (t *PCSCTransport) adopt(gen uint64, selected *scard.Card) bool {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return false
	}
	t.card = selected
	t.mu.Unlock()

	t.source.PushHardware()
	return true
}

func (t *PCSCTransport) selectCard(ctx context.Context, acceptable Mask) (*scard.Card, uint8, error) {
	if err := t.waitPresence(ctx, scard.StatePresent); err != nil {
		return nil, 0, err
	}

	selected, err := t.ctx.Connect(t.reader, scard.ShareExclusive, scard.ProtocolAny)
	if err != nil {
		return nil, 0, errors.Wrap(err, "connect to card")
	}

	index, err := slotIndex(selected)
	if err != nil {
		_ = selected.Disconnect(scard.ResetCard)
		return nil, 0, err
	}
	if !acceptable.Accepts(index) {
		_ = selected.Disconnect(scard.ResetCard)
		return nil, 0, ErrCardNotAccepted
	}

	return selected, index, nil
}

// waitPresence polls reader state until the wanted state is seen. The poll
// timeout keeps the loop responsive to cancellation.
func (t *PCSCTransport) waitPresence(ctx context.Context, wanted scard.StateFlag) error {
	states := []scard.ReaderState{{
		Reader:       t.reader,
		CurrentState: scard.StateUnaware,
	}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.ctx.GetStatusChange(states, presencePollInterval); err != nil {
			if err == scard.ErrTimeout {
				continue
			}
			return errors.Wrap(err, "get reader status")
		}
		if states[0].EventState&wanted != 0 {
			return nil
		}
		states[0].CurrentState = states[0].EventState
	}
}

// SignSerial implements Transport. Response payload: serial (8 bytes)
// followed by a DER signature.
func (t *PCSCTransport) SignSerial(ctx context.Context) (*SerialSignature, error) {
	resp, err := t.transmit(ctx, []byte{claProprietary, insSignSerial, 0x00, 0x00})
	if err != nil {
		return nil, err
	}
	if len(resp) <= serialSize {
		return nil, errors.Errorf("sign-serial response too short: %d bytes", len(resp))
	}
	return &SerialSignature{
		Serial:    append([]byte(nil), resp[:serialSize]...),
		Signature: append([]byte(nil), resp[serialSize:]...),
	}, nil
}

// SignChallenge implements Transport.
func (t *PCSCTransport) SignChallenge(ctx context.Context, challenge []byte) ([]byte, error) {
	if len(challenge) == 0 || len(challenge) > 0xFF {
		return nil, errors.Errorf("challenge length %d out of range", len(challenge))
	}
	apdu := append([]byte{claProprietary, insSignChallenge, 0x00, 0x00, byte(len(challenge))}, challenge...)
	return t.transmit(ctx, apdu)
}

// Pair implements Transport. The pairing instruction carries no data: key
// agreement runs inside the applet against the key material of the secure
// channel already established with the selected card.
func (t *PCSCTransport) Pair(ctx context.Context) error {
	_, err := t.transmit(ctx, []byte{claProprietary, insPair, 0x00, 0x00})
	return err
}

// WaitForRemoval implements Transport.
func (t *PCSCTransport) WaitForRemoval(ctx context.Context) error {
	return t.waitPresence(ctx, scard.StateEmpty)
}

func (t *PCSCTransport) transmit(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	selected := t.card
	t.mu.Unlock()
	if selected == nil {
		return nil, errors.New("no card selected")
	}

	resp, err := selected.Transmit(apdu)
	if err != nil {
		return nil, errors.Wrap(err, "transmit apdu")
	}
	if len(resp) < 2 {
		return nil, errors.New("apdu response too short")
	}

	sw1, sw2 := resp[len(resp)-2], resp[len(resp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, errors.Errorf("card returned status %02x%02x", sw1, sw2)
	}
	return resp[:len(resp)-2], nil
}

func slotIndex(selected *scard.Card) (uint8, error) {
	resp, err := selected.Transmit([]byte{claProprietary, insGetSlotIndex, 0x00, 0x00})
	if err != nil {
		return 0, errors.Wrap(err, "read slot index")
	}
	if len(resp) < 3 || resp[len(resp)-2] != 0x90 || resp[len(resp)-1] != 0x00 {
		return 0, errors.New("bad slot index response")
	}
	return resp[0], nil
}
