// Package mock provides in-memory mock implementations of the
// [audio.Platform] and [audio.Connection] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and expose exported
// fields the test can set to control return values.
//
// Typical usage:
//
//	conn := mock.NewConnection()
//	platform := &mock.Platform{ConnectResult: conn}
//	conn.EmitEvent(audio.Event{Type: audio.EventSpeakingStart, SpeakerID: "alice"})
//	conn.PushFrame("alice", frame)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

// ─── Connection ───────────────────────────────────────────────────────────────

// Connection is a mock implementation of [audio.Connection].
type Connection struct {
	mu sync.Mutex

	// SubscribeErr, if non-nil, is returned by Subscribe.
	SubscribeErr error

	// PlayErr, if non-nil, is returned by Play after PlayDelay.
	PlayErr error

	// PlayDelay is how long Play blocks before returning. Zero means Play
	// returns immediately.
	PlayDelay time.Duration

	// DisconnectError is returned by the first Disconnect call.
	DisconnectError error

	// PlayedPCM records the pcm argument of every Play call, in order.
	PlayedPCM [][]byte

	// CallCountPlay records how many times Play was called.
	CallCountPlay int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int

	events   chan audio.Event
	inputs   map[string]chan audio.AudioFrame
	stop     chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

// NewConnection creates a mock Connection ready for use.
func NewConnection() *Connection {
	return &Connection{
		events: make(chan audio.Event, 32),
		inputs: make(map[string]chan audio.AudioFrame),
		stop:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// EmitEvent delivers ev on the event stream.
func (c *Connection) EmitEvent(ev audio.Event) {
	c.events <- ev
}

// PushFrame delivers a frame on the given speaker's input stream, creating
// the stream if necessary.
func (c *Connection) PushFrame(speakerID string, frame audio.AudioFrame) {
	c.speakerChannel(speakerID) <- frame
}

// CloseStream closes the given speaker's input stream, simulating the end of
// that speaker's audio.
func (c *Connection) CloseStream(speakerID string) {
	c.mu.Lock()
	ch, ok := c.inputs[speakerID]
	delete(c.inputs, speakerID)
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Events implements [audio.Connection].
func (c *Connection) Events() <-chan audio.Event {
	return c.events
}

// Subscribe implements [audio.Connection].
func (c *Connection) Subscribe(speakerID string) (<-chan audio.AudioFrame, error) {
	c.mu.Lock()
	err := c.SubscribeErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.speakerChannel(speakerID), nil
}

// Play implements [audio.Connection]. It records pcm, then blocks for
// PlayDelay (interruptible by ctx, Stop, or Disconnect) and returns PlayErr.
func (c *Connection) Play(ctx context.Context, pcm []byte) error {
	c.mu.Lock()
	c.CallCountPlay++
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	c.PlayedPCM = append(c.PlayedPCM, cp)
	delay := c.PlayDelay
	err := c.PlayErr
	c.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		case <-c.done:
			return nil
		case <-timer.C:
		}
	}
	return err
}

// Stop implements [audio.Connection].
func (c *Connection) Stop() {
	c.mu.Lock()
	c.CallCountStop++
	c.mu.Unlock()
	select {
	case c.stop <- struct{}{}:
	default:
	}
}

// Disconnect implements [audio.Connection]. It closes all input streams and
// the event stream.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	c.CallCountDisconnect++
	err := c.DisconnectError
	c.mu.Unlock()

	c.doneOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		for id, ch := range c.inputs {
			close(ch)
			delete(c.inputs, id)
		}
		c.mu.Unlock()
		c.events <- audio.Event{Type: audio.EventDisconnect}
		close(c.events)
	})
	return err
}

func (c *Connection) speakerChannel(speakerID string) chan audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.inputs[speakerID]
	if !ok {
		ch = make(chan audio.AudioFrame, 64)
		c.inputs[speakerID] = ch
	}
	return ch
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is returned by Connect when ConnectErr is nil.
	ConnectResult audio.Connection

	// ConnectErr, if non-nil, is returned by Connect.
	ConnectErr error

	// ConnectedChannels records the channelID argument of every Connect call.
	ConnectedChannels []string
}

// Compile-time interface assertion.
var _ audio.Platform = (*Platform)(nil)

// Connect implements [audio.Platform].
func (p *Platform) Connect(_ context.Context, channelID string) (audio.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectedChannels = append(p.ConnectedChannels, channelID)
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	return p.ConnectResult, nil
}
