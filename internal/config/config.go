// Package config provides the configuration schema and loader for the
// Parley voice relay.
package config

import "time"

// LogLevel controls log verbosity for the relay.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Parley.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Persona   PersonaConfig   `yaml:"persona"`
}

// ServerConfig holds network and logging settings for the relay process.
type ServerConfig struct {
	// ListenAddr is the TCP address the metrics/health server listens on
	// (e.g., ":8080"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the Discord gateway settings.
type DiscordConfig struct {
	// Token is the bot token. May also be supplied via the DISCORD_TOKEN
	// environment variable, which takes precedence when set.
	Token string `yaml:"token"`

	// GuildID is the guild the bot registers its commands in. Empty
	// registers commands globally.
	GuildID string `yaml:"guild_id"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage.
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "whisper", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "nova-2", or a whisper model file path).
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig holds the timing and gating knobs of the capture/response
// pipeline. All durations are expressed in milliseconds in YAML.
type PipelineConfig struct {
	// SilenceThresholdMS is how long a speaker must stay silent before
	// their captured utterance is considered finished.
	SilenceThresholdMS int `yaml:"silence_threshold_ms"`

	// HardCaptureTimeoutMS caps the total duration of a single capture
	// regardless of ongoing speech.
	HardCaptureTimeoutMS int `yaml:"hard_capture_timeout_ms"`

	// PollIntervalMS is the activity check interval during capture.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// MinViableBytes is the smallest capture buffer worth transcribing.
	MinViableBytes int `yaml:"min_viable_bytes"`

	// HistoryCap is the maximum number of conversation turns kept, not
	// counting the system turn.
	HistoryCap int `yaml:"history_cap"`

	// MinChars is the minimum transcript length the gate will consider.
	MinChars int `yaml:"min_chars"`

	// LongUtteranceChars is the transcript length at or above which the
	// higher acceptance probability applies.
	LongUtteranceChars int `yaml:"long_utterance_chars"`

	// AcceptLongProb is the gate's acceptance probability for long
	// utterances that match no other rule.
	AcceptLongProb float64 `yaml:"accept_long_prob"`

	// AcceptShortProb is the gate's acceptance probability for short
	// utterances that match no other rule.
	AcceptShortProb float64 `yaml:"accept_short_prob"`

	// AlwaysRespond bypasses the gate entirely. Off by default.
	AlwaysRespond bool `yaml:"always_respond"`

	// Fillers extends the built-in set of transcripts ignored by the gate.
	Fillers []string `yaml:"fillers"`

	// TTSMaxChars truncates LLM replies before synthesis.
	TTSMaxChars int `yaml:"tts_max_chars"`

	// STTTimeoutMS bounds one transcription call.
	STTTimeoutMS int `yaml:"stt_timeout_ms"`

	// LLMTimeoutMS bounds one chat completion call.
	LLMTimeoutMS int `yaml:"llm_timeout_ms"`

	// TTSTimeoutMS bounds one synthesis call.
	TTSTimeoutMS int `yaml:"tts_timeout_ms"`

	// PlaybackTimeoutMS is the maximum time one clip may occupy the voice
	// channel before playback is cut off.
	PlaybackTimeoutMS int `yaml:"playback_timeout_ms"`

	// ArtifactMaxAgeMS is the age after which orphaned temp audio files
	// are swept.
	ArtifactMaxAgeMS int `yaml:"artifact_max_age_ms"`
}

// SilenceThreshold returns the silence threshold as a duration.
func (p PipelineConfig) SilenceThreshold() time.Duration {
	return time.Duration(p.SilenceThresholdMS) * time.Millisecond
}

// HardCaptureTimeout returns the hard capture cap as a duration.
func (p PipelineConfig) HardCaptureTimeout() time.Duration {
	return time.Duration(p.HardCaptureTimeoutMS) * time.Millisecond
}

// PollInterval returns the capture poll interval as a duration.
func (p PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

// STTTimeout returns the transcription timeout as a duration.
func (p PipelineConfig) STTTimeout() time.Duration {
	return time.Duration(p.STTTimeoutMS) * time.Millisecond
}

// LLMTimeout returns the chat completion timeout as a duration.
func (p PipelineConfig) LLMTimeout() time.Duration {
	return time.Duration(p.LLMTimeoutMS) * time.Millisecond
}

// TTSTimeout returns the synthesis timeout as a duration.
func (p PipelineConfig) TTSTimeout() time.Duration {
	return time.Duration(p.TTSTimeoutMS) * time.Millisecond
}

// PlaybackTimeout returns the playback cap as a duration.
func (p PipelineConfig) PlaybackTimeout() time.Duration {
	return time.Duration(p.PlaybackTimeoutMS) * time.Millisecond
}

// ArtifactMaxAge returns the temp artifact sweep age as a duration.
func (p PipelineConfig) ArtifactMaxAge() time.Duration {
	return time.Duration(p.ArtifactMaxAgeMS) * time.Millisecond
}

// PersonaConfig describes the bot's conversational identity.
type PersonaConfig struct {
	// Prompt is a free-text persona description injected into the LLM
	// system turn.
	Prompt string `yaml:"prompt"`

	// BotNames lists names the bot answers to. Used by the gate for
	// address detection and by the event loop for self-trigger suppression.
	BotNames []string `yaml:"bot_names"`

	// Voice configures the TTS voice.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies the TTS voice parameters.
type VoiceConfig struct {
	// Name is the provider-specific voice identifier.
	Name string `yaml:"name"`

	// Language is the language code (e.g., "en").
	Language string `yaml:"language"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`

	// PitchShift adjusts pitch in the range [-10, +10]. 0 means default.
	PitchShift float64 `yaml:"pitch_shift"`
}
