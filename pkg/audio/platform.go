// Package audio defines the interfaces and types for voice-channel
// connectivity within Parley.
//
// The two primary abstractions are:
//
//   - [Platform] — connects to a voice channel and returns a [Connection].
//   - [Connection] — an active session on that channel, giving callers a
//     normalized event stream, per-speaker input streams, and a blocking
//     playback primitive.
//
// Implementations are provided by platform-specific adapter packages
// (e.g., audio/discord). The interfaces are intentionally narrow so the relay
// core stays decoupled from provider details.
//
// This package lives under pkg/ because external code (third-party platform
// adapters) is expected to implement [Platform] and [Connection].
package audio

import "context"

// EventType classifies events emitted on a [Connection]'s event stream.
type EventType int

const (
	// EventSpeakingStart is emitted when a participant begins transmitting
	// audio. This is the relay's cue to open a capture for that speaker.
	EventSpeakingStart EventType = iota

	// EventStreamEnd is emitted when a participant's audio stream ends
	// (they left the channel or stopped transmitting permanently).
	EventStreamEnd

	// EventStreamError is emitted when a participant's stream fails. The
	// affected capture must be aborted; the connection itself may survive.
	EventStreamError

	// EventDisconnect is emitted once when the connection to the voice
	// channel is lost. No further events follow.
	EventDisconnect
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventSpeakingStart:
		return "SPEAKING_START"
	case EventStreamEnd:
		return "STREAM_END"
	case EventStreamError:
		return "STREAM_ERROR"
	case EventDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Event is one entry in the normalized transport event stream.
type Event struct {
	Type EventType

	// SpeakerID is the platform-specific participant identifier.
	// Empty for EventDisconnect.
	SpeakerID string

	// Username is the human-readable display name when known.
	Username string

	// Err carries the cause for EventStreamError and EventDisconnect.
	Err error
}

// Connection represents an active session on a voice channel.
//
// A Connection is obtained via [Platform.Connect] and remains valid until
// [Connection.Disconnect] is called or the transport drops (signalled by
// EventDisconnect). Implementations must be safe for concurrent use.
type Connection interface {
	// Events returns the normalized event stream for this connection.
	// The channel is closed after EventDisconnect is delivered.
	Events() <-chan Event

	// Subscribe returns the audio input stream for the given speaker.
	// Frames are 48 kHz interleaved stereo 16-bit PCM. The channel is closed
	// when the speaker's stream ends or the connection terminates. Calling
	// Subscribe twice for the same speaker returns the same channel.
	Subscribe(speakerID string) (<-chan AudioFrame, error)

	// Play transmits pcm (48 kHz stereo 16-bit PCM) into the channel and
	// blocks until playback completes, ctx is done, or Stop is called.
	// Only one Play may run at a time; concurrent calls return an error.
	Play(ctx context.Context, pcm []byte) error

	// Stop aborts an in-flight Play, if any. Safe to call at any time.
	Stop()

	// Disconnect tears down the connection and closes all channels.
	// Safe to call more than once; subsequent calls return nil.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel identified by channelID and returns an
	// active [Connection]. The supplied ctx governs the connection attempt
	// only; once connected, the Connection lives until Disconnect.
	Connect(ctx context.Context, channelID string) (Connection, error)
}
