// Package stt defines the Recognizer interface for Speech-to-Text backends.
//
// A recognizer wraps a transcription service (a local whisper.cpp model or a
// hosted API such as Deepgram) and exposes a single batch operation: raw PCM
// in, text out. The relay hands it one finalized utterance buffer at a time,
// so no streaming session state is needed at this layer.
//
// Implementations must be safe for concurrent use and must tolerate being
// given raw PCM without any container framing.
package stt

import "context"

// AudioConfig describes the format of the PCM handed to [Recognizer.Recognize].
type AudioConfig struct {
	// SampleRate is the audio sample rate in Hz (e.g., 48000 for Discord
	// voice, 16000 for STT-optimised mono).
	SampleRate int

	// Channels is the number of interleaved channels. 1 = mono, 2 = stereo.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en",
	// "de-DE"). Empty lets the provider auto-detect, if supported.
	Language string
}

// Recognizer is the abstraction over any STT backend.
type Recognizer interface {
	// Recognize transcribes one utterance of raw little-endian 16-bit PCM.
	// An empty string with a nil error means the provider heard nothing
	// intelligible; callers treat that as "nothing said", not a failure.
	Recognize(ctx context.Context, pcm []byte, cfg AudioConfig) (string, error)
}
