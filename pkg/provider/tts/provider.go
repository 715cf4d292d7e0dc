// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// A synthesizer wraps a speech synthesis service (a local Coqui server, the
// ElevenLabs API, …) and exposes a single batch operation: text in, one
// playable audio clip out. Providers return whatever encoding is cheapest
// for them; the playback layer normalizes clips to the transport's PCM
// format.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Encoding identifies the byte layout of a synthesized clip.
type Encoding string

const (
	// EncodingPCM is raw little-endian 16-bit PCM.
	EncodingPCM Encoding = "pcm"

	// EncodingMP3 is an MPEG audio stream.
	EncodingMP3 Encoding = "mp3"
)

// VoiceProfile specifies the synthesis voice parameters.
type VoiceProfile struct {
	// Name is the provider-specific voice identifier.
	Name string

	// Language is the BCP-47 language code (e.g., "en").
	Language string

	// SpeakingRate adjusts speech speed (0.5–2.0, 0 = provider default).
	SpeakingRate float64

	// Pitch adjusts pitch (-10 to +10, 0 = default).
	Pitch float64
}

// Clip is one synthesized utterance.
type Clip struct {
	// Data is the encoded audio.
	Data []byte

	// Encoding identifies the byte layout of Data.
	Encoding Encoding

	// SampleRate and Channels describe Data when Encoding is EncodingPCM.
	// Ignored for compressed encodings, which carry their own framing.
	SampleRate int
	Channels   int
}

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize converts text into one audio clip using the given voice.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (Clip, error)
}
