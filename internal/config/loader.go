package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "deepgram"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "mistral", "groq", "llamacpp"},
	"tts": {"coqui", "elevenlabs"},
}

// Defaults returns a Config populated with the pipeline defaults. Loading a
// file overlays the file's values on top of these.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Pipeline: PipelineConfig{
			SilenceThresholdMS:   700,
			HardCaptureTimeoutMS: 10000,
			PollIntervalMS:       100,
			MinViableBytes:       1000,
			HistoryCap:           15,
			MinChars:             3,
			LongUtteranceChars:   20,
			AcceptLongProb:       0.8,
			AcceptShortProb:      0.4,
			TTSMaxChars:          1000,
			STTTimeoutMS:         15000,
			LLMTimeoutMS:         20000,
			TTSTimeoutMS:         20000,
			PlaybackTimeoutMS:    30000,
			ArtifactMaxAgeMS:     300000,
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if tok := os.Getenv("DISCORD_TOKEN"); tok != "" {
		cfg.Discord.Token = tok
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required (or set DISCORD_TOKEN)"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}

	// Pipeline
	p := cfg.Pipeline
	if p.SilenceThresholdMS <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.silence_threshold_ms %d must be positive", p.SilenceThresholdMS))
	}
	if p.HardCaptureTimeoutMS <= p.SilenceThresholdMS {
		errs = append(errs, fmt.Errorf("pipeline.hard_capture_timeout_ms %d must exceed silence_threshold_ms %d", p.HardCaptureTimeoutMS, p.SilenceThresholdMS))
	}
	if p.PollIntervalMS <= 0 || p.PollIntervalMS > p.SilenceThresholdMS {
		errs = append(errs, fmt.Errorf("pipeline.poll_interval_ms %d must be in (0, silence_threshold_ms]", p.PollIntervalMS))
	}
	if p.MinViableBytes < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_viable_bytes %d must not be negative", p.MinViableBytes))
	}
	if p.HistoryCap <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.history_cap %d must be positive", p.HistoryCap))
	}
	if p.AcceptLongProb < 0 || p.AcceptLongProb > 1 {
		errs = append(errs, fmt.Errorf("pipeline.accept_long_prob %.2f is out of range [0, 1]", p.AcceptLongProb))
	}
	if p.AcceptShortProb < 0 || p.AcceptShortProb > 1 {
		errs = append(errs, fmt.Errorf("pipeline.accept_short_prob %.2f is out of range [0, 1]", p.AcceptShortProb))
	}
	if p.PlaybackTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.playback_timeout_ms %d must be positive", p.PlaybackTimeoutMS))
	}

	// Persona
	v := cfg.Persona.Voice
	if v.SpeedFactor != 0 {
		if v.SpeedFactor < 0.5 || v.SpeedFactor > 2.0 {
			errs = append(errs, fmt.Errorf("persona.voice.speed_factor %.2f is out of range [0.5, 2.0]", v.SpeedFactor))
		}
	}
	if v.PitchShift < -10 || v.PitchShift > 10 {
		errs = append(errs, fmt.Errorf("persona.voice.pitch_shift %.2f is out of range [-10, 10]", v.PitchShift))
	}
	if len(cfg.Persona.BotNames) == 0 && !cfg.Pipeline.AlwaysRespond {
		slog.Warn("persona.bot_names is empty; the gate cannot detect direct address")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
