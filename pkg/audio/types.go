package audio

import "time"

// AudioFrame is a single frame of decoded audio flowing through the relay.
// Frames are the atomic unit of capture: the transport decodes one Opus
// packet into one frame and delivers it on the speaker's input channel.
type AudioFrame struct {
	// Data is raw little-endian 16-bit PCM.
	Data []byte

	// SampleRate in Hz (48000 for Discord voice).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}
