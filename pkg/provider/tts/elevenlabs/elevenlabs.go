// Package elevenlabs provides an ElevenLabs-backed synthesizer using the
// ElevenLabs batch HTTP API. It implements the tts.Synthesizer interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/parley/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

const (
	ttsEndpointFmt = "https://api.elevenlabs.io/v1/text-to-speech/%s"
	defaultModel   = "eleven_flash_v2_5"
	defaultTimeout = 30 * time.Second

	// mp3OutputFormat is the output_format query value requested from the
	// API. MP3 keeps response payloads small; the playback layer decodes it.
	mp3OutputFormat = "mp3_44100_128"
)

// Option is a functional option for configuring the ElevenLabs Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Synthesizer) {
		s.model = model
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.httpClient.Timeout = d
	}
}

// Synthesizer implements tts.Synthesizer backed by the ElevenLabs API.
type Synthesizer struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// New creates a new ElevenLabs Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey: apiKey,
		model:  defaultModel,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ttsRequest is the JSON body sent to POST /v1/text-to-speech/{voice_id}.
type ttsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// Synthesize performs one POST /v1/text-to-speech/{voice_id} call and
// returns the response as an MP3 clip.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, errors.New("elevenlabs: text must not be empty")
	}
	if voice.Name == "" {
		return tts.Clip{}, errors.New("elevenlabs: voice.Name must not be empty")
	}

	body := ttsRequest{
		Text:    text,
		ModelID: s.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           voice.SpeakingRate,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: marshal tts request: %w", err)
	}

	reqURL := fmt.Sprintf(ttsEndpointFmt, voice.Name) + "?output_format=" + mp3OutputFormat
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: create tts request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: POST text-to-speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.Clip{}, fmt.Errorf("elevenlabs: POST text-to-speech returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: read audio response: %w", err)
	}
	if len(audio) == 0 {
		return tts.Clip{}, errors.New("elevenlabs: empty audio response")
	}

	return tts.Clip{
		Data:     audio,
		Encoding: tts.EncodingMP3,
	}, nil
}
