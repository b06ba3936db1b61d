package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cardvault/walletcore/internal/card"
	"github.com/cardvault/walletcore/internal/events"
	"github.com/cardvault/walletcore/internal/host"
)

// mockTransport is a testify mock of the card transport.
type mockTransport struct {
	mock.Mock
	source *events.ChannelSource
}

func (m *mockTransport) EnableSelect(acceptable card.Mask) {
	m.Called(acceptable)
	if m.source != nil {
		m.source.PushHardware()
	}
}

func (m *mockTransport) SignSerial(ctx context.Context) (*card.SerialSignature, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.SerialSignature), args.Error(1)
}

func (m *mockTransport) SignChallenge(ctx context.Context, challenge []byte) ([]byte, error) {
	args := m.Called(ctx, challenge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockTransport) Pair(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTransport) WaitForRemoval(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type captureSender struct {
	payloads [][]byte
}

func (s *captureSender) Send(payload []byte) error {
	s.payloads = append(s.payloads, payload)
	return nil
}

type wipeRecorder struct{ wiped bool }

func (w *wipeRecorder) Wipe() { w.wiped = true }

func newTestEngine(t *testing.T, transport card.Transport, source events.Source) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{
		Events:    source,
		Transport: transport,
		Timeout:   200 * time.Millisecond,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return engine
}

func initiateRequest(cardIndex *uint8, pair bool) *host.AuthCardRequest {
	return &host.AuthCardRequest{Initiate: &host.InitiateRequest{
		CardIndex: cardIndex,
		PairCard:  &pair,
	}}
}

func serialSig() *card.SerialSignature {
	return &card.SerialSignature{
		Serial:    []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Signature: []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01},
	}
}

func TestInitiatePreparesSession(t *testing.T) {
	source := events.NewChannelSource()
	transport := &mockTransport{source: source}
	transport.On("EnableSelect", card.MaskForIndex(2)).Return()
	transport.On("SignSerial", mock.Anything).Return(serialSig(), nil)

	engine := newTestEngine(t, transport, source)

	index := uint8(2)
	resp, err := engine.HandleRequest(context.Background(), initiateRequest(&index, true))
	require.NoError(t, err)

	assert.Equal(t, StateSerialSigned, engine.Status())
	assert.Contains(t, engine.session.heading, "2")
	assert.True(t, engine.session.pairRequired)
	assert.Equal(t, card.MaskForIndex(2), engine.session.acceptableCards)

	require.NotNil(t, resp.SerialSignature)
	assert.Equal(t, serialSig().Serial, resp.SerialSignature.Serial)
	transport.AssertExpectations(t)
}

func TestInitiateOutsideInitState(t *testing.T) {
	source := events.NewChannelSource()
	transport := &mockTransport{source: source}
	engine := newTestEngine(t, transport, source)
	engine.state = StateSerialSigned

	buf := &wipeRecorder{}
	engine.GuardBuffers(buf)

	resp, err := engine.HandleRequest(context.Background(), initiateRequest(nil, false))
	assert.Nil(t, resp)
	assert.Equal(t, CodeInvalidState, CodeOf(err))
	// A rejected request must not touch guarded buffers.
	assert.False(t, buf.wiped)
	transport.AssertNotCalled(t, "EnableSelect", mock.Anything)
}

func TestHardwareTimeoutAborts(t *testing.T) {
	source := events.NewChannelSource()
	// No hardware push: the wait for a tap must run into the timeout.
	transport := &mockTransport{}
	transport.On("EnableSelect", card.MaskAll).Return()

	engine := newTestEngine(t, transport, source)
	engine.timeout = 20 * time.Millisecond

	resp, err := engine.HandleRequest(context.Background(), initiateRequest(nil, false))
	assert.Nil(t, resp)
	assert.Equal(t, CodeAbortOccurred, CodeOf(err))
	transport.AssertNotCalled(t, "SignSerial", mock.Anything)
}

func TestResultFalseAfterSerialSigned(t *testing.T) {
	source := events.NewChannelSource()
	transport := &mockTransport{source: source}
	engine := newTestEngine(t, transport, source)
	engine.state = StateSerialSigned

	resp, err := engine.HandleRequest(context.Background(),
		&host.AuthCardRequest{Result: &host.ResultRequest{Verified: false}})
	require.NoError(t, err)
	require.NotNil(t, resp.FlowComplete)
	assert.True(t, resp.FlowComplete.Failed)
	// No further transition: the state cell keeps its last value.
	assert.Equal(t, StateSerialSigned, engine.Status())
	assert.True(t, engine.flowFailed)
}

func TestResultTrueAfterSerialSignedIsProtocolViolation(t *testing.T) {
	source := events.NewChannelSource()
	engine := newTestEngine(t, &mockTransport{source: source}, source)
	engine.state = StateSerialSigned

	_, err := engine.HandleRequest(context.Background(),
		&host.AuthCardRequest{Result: &host.ResultRequest{Verified: true}})
	assert.Equal(t, CodeInvalidState, CodeOf(err))
}

func TestChallengeRequiresSerialSigned(t *testing.T) {
	source := events.NewChannelSource()
	engine := newTestEngine(t, &mockTransport{source: source}, source)

	_, err := engine.HandleRequest(context.Background(),
		&host.AuthCardRequest{Challenge: &host.ChallengeRequest{Challenge: []byte("c")}})
	assert.Equal(t, CodeInvalidState, CodeOf(err))
}

func TestSignSerialFailurePropagates(t *testing.T) {
	source := events.NewChannelSource()
	transport := &mockTransport{source: source}
	transport.On("EnableSelect", card.MaskAll).Return()
	transport.On("SignSerial", mock.Anything).Return(nil, errors.New("card fault"))

	engine := newTestEngine(t, transport, source)

	resp, err := engine.HandleRequest(context.Background(), initiateRequest(nil, false))
	assert.Equal(t, CodeOperationFailed, CodeOf(err))
	// The failure still reaches the host instead of being swallowed.
	require.NotNil(t, resp.FlowComplete)
	assert.True(t, resp.FlowComplete.Failed)
}

func TestPairingFailureIsFatal(t *testing.T) {
	source := events.NewChannelSource()
	transport := &mockTransport{source: source}
	transport.On("Pair", mock.Anything).Return(errors.New("pairing rejected"))

	engine := newTestEngine(t, transport, source)
	engine.state = StateChallengeSigned
	engine.session.pairRequired = true

	resp, err := engine.HandleRequest(context.Background(),
		&host.AuthCardRequest{Result: &host.ResultRequest{Verified: true}})
	assert.Equal(t, CodeOperationFailed, CodeOf(err))
	require.NotNil(t, resp.FlowComplete)
	assert.True(t, resp.FlowComplete.Failed)
	assert.NotEqual(t, StatePairingDone, engine.Status())
}

func TestRunHappyPathWithPairing(t *testing.T) {
	source := events.NewChannelSource()
	softCard, err := card.NewSoftCard(2, source)
	require.NoError(t, err)

	engine := newTestEngine(t, softCard, source)
	sender := &captureSender{}
	adapter, err := host.NewAdapter(sender)
	require.NoError(t, err)

	buf := &wipeRecorder{}
	engine.GuardBuffers(buf)

	// Queue the host's side of the conversation up front.
	challenge, err := host.EncodeQuery(&host.Query{AuthCard: &host.AuthCardRequest{
		Challenge: &host.ChallengeRequest{Challenge: []byte("server challenge bytes")},
	}})
	require.NoError(t, err)
	result, err := host.EncodeQuery(&host.Query{AuthCard: &host.AuthCardRequest{
		Result: &host.ResultRequest{Verified: true},
	}})
	require.NoError(t, err)
	source.PushHost(challenge)
	source.PushHost(result)

	index := uint8(2)
	require.NoError(t, engine.Run(context.Background(), adapter, initiateRequest(&index, true)))

	assert.Equal(t, StatePairingDone, engine.Status())
	assert.True(t, softCard.Paired())
	assert.True(t, buf.wiped)

	// Exactly two intermediate responses and one completion, in order.
	require.Len(t, sender.payloads, 3)
	first, err := host.DecodeResponse(sender.payloads[0])
	require.NoError(t, err)
	require.NotNil(t, first.SerialSignature)
	assert.True(t, card.VerifySerialSignature(softCard.PublicKey(),
		first.SerialSignature.Serial, first.SerialSignature.Signature))

	second, err := host.DecodeResponse(sender.payloads[1])
	require.NoError(t, err)
	require.NotNil(t, second.ChallengeSignature)
	assert.True(t, card.VerifyChallengeSignature(softCard.PublicKey(),
		softCard.Serial(), []byte("server challenge bytes"), second.ChallengeSignature.Signature))

	third, err := host.DecodeResponse(sender.payloads[2])
	require.NoError(t, err)
	require.NotNil(t, third.FlowComplete)
	assert.False(t, third.FlowComplete.Failed)
}

func TestRunTerminatesOnFailedVerdict(t *testing.T) {
	source := events.NewChannelSource()
	softCard, err := card.NewSoftCard(1, source)
	require.NoError(t, err)

	engine := newTestEngine(t, softCard, source)
	sender := &captureSender{}
	adapter, err := host.NewAdapter(sender)
	require.NoError(t, err)

	result, err := host.EncodeQuery(&host.Query{AuthCard: &host.AuthCardRequest{
		Result: &host.ResultRequest{Verified: false},
	}})
	require.NoError(t, err)
	source.PushHost(result)

	require.NoError(t, engine.Run(context.Background(), adapter, initiateRequest(nil, false)))

	// Serial signature, then the failure completion; nothing further.
	require.Len(t, sender.payloads, 2)
	last, err := host.DecodeResponse(sender.payloads[1])
	require.NoError(t, err)
	require.NotNil(t, last.FlowComplete)
	assert.True(t, last.FlowComplete.Failed)
	assert.NotEqual(t, StatePairingDone, engine.Status())
}

func TestRunIgnoresNonInitiateStart(t *testing.T) {
	source := events.NewChannelSource()
	engine := newTestEngine(t, &mockTransport{source: source}, source)
	sender := &captureSender{}
	adapter, err := host.NewAdapter(sender)
	require.NoError(t, err)

	buf := &wipeRecorder{}
	engine.GuardBuffers(buf)

	err = engine.Run(context.Background(), adapter,
		&host.AuthCardRequest{Result: &host.ResultRequest{Verified: true}})
	assert.NoError(t, err)
	assert.Empty(t, sender.payloads)
	assert.Equal(t, StateInit, engine.Status())
	assert.True(t, buf.wiped)
}

func TestRunRefusesReentry(t *testing.T) {
	source := events.NewChannelSource()
	engine := newTestEngine(t, &mockTransport{source: source}, source)
	engine.state = StateSerialSigned

	adapter, err := host.NewAdapter(&captureSender{})
	require.NoError(t, err)

	err = engine.Run(context.Background(), adapter, initiateRequest(nil, false))
	assert.Equal(t, CodeInvalidState, CodeOf(err))
}

func TestRunAbortDuringCardWait(t *testing.T) {
	source := events.NewChannelSource()
	transport := &mockTransport{}
	transport.On("EnableSelect", card.MaskAll).Return()

	engine := newTestEngine(t, transport, source)
	engine.timeout = 20 * time.Millisecond
	sender := &captureSender{}
	adapter, err := host.NewAdapter(sender)
	require.NoError(t, err)

	buf := &wipeRecorder{}
	engine.GuardBuffers(buf)

	// Timeout while waiting for the tap: no response, normal exit.
	err = engine.Run(context.Background(), adapter, initiateRequest(nil, false))
	assert.NoError(t, err)
	assert.Empty(t, sender.payloads)
	assert.True(t, buf.wiped)
}

func TestRunTerminatesOnGarbageMessage(t *testing.T) {
	source := events.NewChannelSource()
	softCard, err := card.NewSoftCard(1, source)
	require.NoError(t, err)

	engine := newTestEngine(t, softCard, source)
	sender := &captureSender{}
	adapter, err := host.NewAdapter(sender)
	require.NoError(t, err)

	source.PushHost([]byte{0xFF, 0x13})

	err = engine.Run(context.Background(), adapter, initiateRequest(nil, false))
	assert.Equal(t, CodeDecodingFailed, CodeOf(err))
	// Only the serial signature went out; garbage gets no reply.
	assert.Len(t, sender.payloads, 1)
}
