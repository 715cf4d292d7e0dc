package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertion.
var _ audio.Connection = (*Connection)(nil)

const (
	inputChannelBuffer = 64
	eventChannelBuffer = 16
)

// Connection wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Connection] interface. Incoming Opus packets are demuxed by SSRC,
// decoded to PCM, and delivered on per-speaker input channels; speaking
// updates are normalized into [audio.Event] values.
//
// Connection is safe for concurrent use.
type Connection struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string

	inputsMu sync.Mutex
	inputs   map[string]chan audio.AudioFrame // keyed by speaker ID
	ssrcUser map[uint32]string                // SSRC → user ID

	events chan audio.Event

	playMu   sync.Mutex
	playing  bool
	playStop chan struct{} // re-created per Play; closed by Stop

	done      chan struct{}
	closeOnce sync.Once

	// disconnectVC tears down the voice connection during Disconnect.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newConnection initialises a Connection for an already-joined voice channel
// and starts the receive loop.
func newConnection(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string) (*Connection, error) {
	c := &Connection{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		inputs:       make(map[string]chan audio.AudioFrame),
		ssrcUser:     make(map[uint32]string),
		events:       make(chan audio.Event, eventChannelBuffer),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	// Speaking updates carry the SSRC → user mapping and drive the
	// SpeakingStart events consumed by the turn coordinator.
	vc.AddHandler(c.handleSpeakingUpdate)

	go c.recvLoop()

	return c, nil
}

// Events returns the normalized event stream for this connection.
func (c *Connection) Events() <-chan audio.Event {
	return c.events
}

// Subscribe returns the PCM input stream for the given speaker, creating it
// if it does not exist yet.
func (c *Connection) Subscribe(speakerID string) (<-chan audio.AudioFrame, error) {
	select {
	case <-c.done:
		return nil, errors.New("discord: connection is closed")
	default:
	}

	c.inputsMu.Lock()
	defer c.inputsMu.Unlock()
	ch, ok := c.inputs[speakerID]
	if !ok {
		ch = make(chan audio.AudioFrame, inputChannelBuffer)
		c.inputs[speakerID] = ch
	}
	return ch, nil
}

// Play encodes pcm (48 kHz stereo int16 PCM) to Opus and transmits it paced
// at 20 ms frames. It blocks until the last frame has been handed to the
// transport, ctx is done, or Stop is called.
func (c *Connection) Play(ctx context.Context, pcm []byte) error {
	c.playMu.Lock()
	if c.playing {
		c.playMu.Unlock()
		return errors.New("discord: playback already in progress")
	}
	c.playing = true
	stop := make(chan struct{})
	c.playStop = stop
	c.playMu.Unlock()

	defer func() {
		c.playMu.Lock()
		c.playing = false
		c.playStop = nil
		c.playMu.Unlock()
	}()

	enc, err := newOpusEncoder()
	if err != nil {
		return err
	}

	if err := c.vc.Speaking(true); err != nil {
		slog.Warn("discord: failed to set speaking state", "error", err)
	}
	defer func() {
		if err := c.vc.Speaking(false); err != nil {
			slog.Warn("discord: failed to clear speaking state", "error", err)
		}
	}()

	ticker := time.NewTicker(opusFrameSizeMs * time.Millisecond)
	defer ticker.Stop()

	for off := 0; off < len(pcm); off += opusFrameBytes {
		end := off + opusFrameBytes
		frame := make([]byte, opusFrameBytes)
		if end <= len(pcm) {
			copy(frame, pcm[off:end])
		} else {
			// Final partial frame is zero-padded to a full Opus frame.
			copy(frame, pcm[off:])
		}

		pkt, err := enc.encode(frame)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-c.done:
			return errors.New("discord: connection closed during playback")
		case <-ticker.C:
		}

		select {
		case c.vc.OpusSend <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-c.done:
			return errors.New("discord: connection closed during playback")
		}
	}
	return nil
}

// Stop aborts an in-flight Play, if any.
func (c *Connection) Stop() {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	if c.playStop != nil {
		close(c.playStop)
		c.playStop = nil
	}
}

// Disconnect tears down the voice connection and stops the receive loop.
// Safe to call more than once; subsequent calls return nil.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.Stop()

		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}

		c.inputsMu.Lock()
		for id, ch := range c.inputs {
			close(ch)
			delete(c.inputs, id)
		}
		c.inputsMu.Unlock()

		c.emitEvent(audio.Event{Type: audio.EventDisconnect})
		close(c.events)
	})
	return err
}

// handleSpeakingUpdate records the SSRC → user mapping and emits a
// SpeakingStart event when a participant begins transmitting.
func (c *Connection) handleSpeakingUpdate(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
	c.inputsMu.Lock()
	c.ssrcUser[uint32(su.SSRC)] = su.UserID
	c.inputsMu.Unlock()

	if !su.Speaking {
		return
	}

	c.emitEvent(audio.Event{
		Type:      audio.EventSpeakingStart,
		SpeakerID: su.UserID,
		Username:  c.resolveName(su.UserID),
	})
}

// recvLoop reads Opus packets from the transport, demuxes by SSRC, decodes
// to PCM, and delivers frames to the speaker's input channel.
func (c *Connection) recvLoop() {
	decoders := make(map[uint32]*opusDecoder)

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				c.emitEvent(audio.Event{
					Type: audio.EventDisconnect,
					Err:  errors.New("discord: opus receive channel closed"),
				})
				return
			}
			if pkt == nil {
				continue
			}

			c.inputsMu.Lock()
			speakerID, known := c.ssrcUser[pkt.SSRC]
			c.inputsMu.Unlock()
			if !known {
				// No speaking update seen yet; key the stream by SSRC so no
				// audio is lost. The coordinator ignores unmapped speakers.
				speakerID = strconv.FormatUint(uint64(pkt.SSRC), 10)
			}

			dec, ok := decoders[pkt.SSRC]
			if !ok {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: create opus decoder", "ssrc", pkt.SSRC, "error", err)
					continue
				}
				decoders[pkt.SSRC] = dec
			}

			pcm, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
				c.emitEvent(audio.Event{
					Type:      audio.EventStreamError,
					SpeakerID: speakerID,
					Err:       err,
				})
				continue
			}

			c.inputsMu.Lock()
			ch, ok := c.inputs[speakerID]
			if !ok {
				ch = make(chan audio.AudioFrame, inputChannelBuffer)
				c.inputs[speakerID] = ch
			}
			c.inputsMu.Unlock()

			frame := audio.AudioFrame{
				Data:       pcm,
				SampleRate: opusSampleRate,
				Channels:   opusChannels,
				Timestamp:  time.Duration(pkt.Timestamp) * time.Second / time.Duration(opusSampleRate),
			}

			select {
			case ch <- frame:
			default:
				// Channel full — drop the frame rather than block the demux loop.
			}
		}
	}
}

// emitEvent delivers ev on the event channel without blocking the caller.
func (c *Connection) emitEvent(ev audio.Event) {
	select {
	case c.events <- ev:
	default:
		slog.Warn("discord: event channel full, dropping event", "type", ev.Type.String())
	}
}

// resolveName looks up a display name for the given user, best effort.
func (c *Connection) resolveName(userID string) string {
	if c.session == nil {
		return userID
	}
	if c.session.State != nil {
		if m, err := c.session.State.Member(c.guildID, userID); err == nil && m != nil {
			if m.Nick != "" {
				return m.Nick
			}
			if m.User != nil && m.User.Username != "" {
				return m.User.Username
			}
		}
	}
	if u, err := c.session.User(userID); err == nil && u != nil && u.Username != "" {
		return u.Username
	}
	return userID
}

// String identifies the connection in logs.
func (c *Connection) String() string {
	return fmt.Sprintf("discord voice connection (guild %s)", c.guildID)
}
