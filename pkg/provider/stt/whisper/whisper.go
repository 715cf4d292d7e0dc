// Package whisper provides an stt.Recognizer backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once at startup and shared across all Recognize calls;
// each call creates its own whisper context, so concurrent recognition is
// safe.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Recognizer = (*Recognizer)(nil)

const defaultLanguage = "en"

// Recognizer implements stt.Recognizer using whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely.
type Recognizer struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithLanguage sets the default language for transcription (e.g., "en",
// "de", "auto"). Defaults to "en". A non-empty Language in the AudioConfig
// passed to Recognize takes precedence.
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// New creates a Recognizer that loads the whisper.cpp model from the given
// file path. The caller must call Close when the recognizer is no longer
// needed.
func New(modelPath string, opts ...Option) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	r := &Recognizer{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Close releases the whisper model.
func (r *Recognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// Recognize implements stt.Recognizer. The input PCM is downmixed and
// resampled to whisper's required 16 kHz mono float32 format before
// inference.
func (r *Recognizer) Recognize(ctx context.Context, pcm []byte, cfg stt.AudioConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}

	samples := toWhisperSamples(pcm, cfg)

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := r.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = r.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// toWhisperSamples converts int16 PCM in the given format to 16 kHz mono
// float32 samples in [-1, 1].
func toWhisperSamples(pcm []byte, cfg stt.AudioConfig) []float32 {
	src := audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	if src.SampleRate <= 0 {
		src.SampleRate = whisperlib.SampleRate
	}
	if src.Channels <= 0 {
		src.Channels = 1
	}

	mono := audio.ConvertPCM(pcm, src, audio.Format{SampleRate: whisperlib.SampleRate, Channels: 1})

	samples := make([]float32, len(mono)/2)
	for i := range samples {
		s := int16(mono[i*2]) | int16(mono[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples
}
