// Package events is the engine's single suspension mechanism: a blocking
// wait for the next hardware, host or abort event, bounded by an inactivity
// timeout. Cancellation is observable only here, never mid-computation.
package events

import (
	"context"
	"time"
)

// Kind selects which event classes a wait is interested in.
type Kind uint8

const (
	// KindHardware is card presence detected by the reader.
	KindHardware Kind = 1 << iota
	// KindHost is an inbound host message.
	KindHost
)

// Event is the outcome of one Await call. Exactly one of the fields is
// meaningful: Abort is set on user cancel or inactivity timeout, Hardware on
// card presence, Host.Present on an inbound message.
type Event struct {
	Abort    bool
	Hardware bool
	Host     HostMessage
}

// HostMessage is an inbound host payload. Present distinguishes "a message
// arrived" from "nothing arrived": a caller must not decode an absent
// message.
type HostMessage struct {
	Present bool
	Payload []byte
}

// Source delivers events to the engine. Await blocks until an event of a
// requested kind, an abort signal, a context cancellation or the timeout
// occurs; timeout and context cancellation surface as an abort event.
type Source interface {
	Await(ctx context.Context, mask Kind, timeout time.Duration) Event
}

// ChannelSource is a Source fed by channels. The hardware bridge and the
// host transport push into it from their own goroutines; the engine is the
// only consumer.
type ChannelSource struct {
	hardware chan struct{}
	host     chan []byte
	abort    chan struct{}
}

// NewChannelSource returns a source with small buffers so producers do not
// block on an engine that is between waits.
func NewChannelSource() *ChannelSource {
	return &ChannelSource{
		hardware: make(chan struct{}, 1),
		host:     make(chan []byte, 4),
		abort:    make(chan struct{}, 1),
	}
}

// PushHardware signals card presence.
func (s *ChannelSource) PushHardware() {
	select {
	case s.hardware <- struct{}{}:
	default:
	}
}

// PushHost delivers an inbound host message.
func (s *ChannelSource) PushHost(payload []byte) {
	s.host <- payload
}

// PushAbort signals a user cancel.
func (s *ChannelSource) PushAbort() {
	select {
	case s.abort <- struct{}{}:
	default:
	}
}

// Await implements Source.
func (s *ChannelSource) Await(ctx context.Context, mask Kind, timeout time.Duration) Event {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	hardware := s.hardware
	if mask&KindHardware == 0 {
		hardware = nil
	}
	host := s.host
	if mask&KindHost == 0 {
		host = nil
	}

	select {
	case <-s.abort:
		return Event{Abort: true}
	case <-ctx.Done():
		return Event{Abort: true}
	case <-timer.C:
		return Event{Abort: true}
	case <-hardware:
		return Event{Hardware: true}
	case payload := <-host:
		return Event{Host: HostMessage{Present: true, Payload: payload}}
	}
}
