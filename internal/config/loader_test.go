package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/parley/internal/config"
)

const validYAML = `
discord:
  token: "test-token"
providers:
  stt:
    name: whisper
    model: /models/ggml-base.en.bin
  llm:
    name: openai
    model: gpt-4o-mini
  tts:
    name: coqui
    base_url: http://localhost:5002
persona:
  prompt: "You are a helpful companion."
  bot_names: [parley, bot]
`

func TestLoadFromReader_ValidConfig(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.STT.Name != "whisper" {
		t.Errorf("stt provider = %q, want whisper", cfg.Providers.STT.Name)
	}
	if cfg.Persona.BotNames[0] != "parley" {
		t.Errorf("bot_names[0] = %q, want parley", cfg.Persona.BotNames[0])
	}
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Pipeline.SilenceThreshold(); got != 700*time.Millisecond {
		t.Errorf("silence threshold = %v, want 700ms", got)
	}
	if got := cfg.Pipeline.HardCaptureTimeout(); got != 10*time.Second {
		t.Errorf("hard capture timeout = %v, want 10s", got)
	}
	if cfg.Pipeline.HistoryCap != 15 {
		t.Errorf("history cap = %d, want 15", cfg.Pipeline.HistoryCap)
	}
	if cfg.Pipeline.AcceptLongProb != 0.8 {
		t.Errorf("accept_long_prob = %v, want 0.8", cfg.Pipeline.AcceptLongProb)
	}
	if cfg.Pipeline.AlwaysRespond {
		t.Error("always_respond should default to false")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log level = %q, want info", cfg.Server.LogLevel)
	}
}

func TestLoadFromReader_FileOverridesDefaults(t *testing.T) {
	yaml := validYAML + `
pipeline:
  silence_threshold_ms: 500
  accept_long_prob: 0.9
  always_respond: true
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Pipeline.SilenceThreshold(); got != 500*time.Millisecond {
		t.Errorf("silence threshold = %v, want 500ms", got)
	}
	if cfg.Pipeline.AcceptLongProb != 0.9 {
		t.Errorf("accept_long_prob = %v, want 0.9", cfg.Pipeline.AcceptLongProb)
	}
	if !cfg.Pipeline.AlwaysRespond {
		t.Error("always_respond should be true")
	}
	// Untouched defaults survive the overlay.
	if cfg.Pipeline.HardCaptureTimeoutMS != 10000 {
		t.Errorf("hard_capture_timeout_ms = %d, want 10000", cfg.Pipeline.HardCaptureTimeoutMS)
	}
}

func TestValidate_MissingToken(t *testing.T) {
	yaml := `
providers:
  stt:
    name: whisper
  llm:
    name: openai
  tts:
    name: coqui
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing token, got nil")
	}
	if !strings.Contains(err.Error(), "discord.token") {
		t.Errorf("error should mention discord.token, got: %v", err)
	}
}

func TestValidate_MissingProviders(t *testing.T) {
	yaml := `
discord:
  token: "test-token"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing providers, got nil")
	}
	for _, want := range []string{"providers.stt", "providers.llm", "providers.tts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_BadPipelineValues(t *testing.T) {
	yaml := validYAML + `
pipeline:
  silence_threshold_ms: 700
  hard_capture_timeout_ms: 500
  accept_long_prob: 1.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for bad pipeline values, got nil")
	}
	if !strings.Contains(err.Error(), "hard_capture_timeout_ms") {
		t.Errorf("error should mention hard_capture_timeout_ms, got: %v", err)
	}
	if !strings.Contains(err.Error(), "accept_long_prob") {
		t.Errorf("error should mention accept_long_prob, got: %v", err)
	}
}

func TestValidate_BadVoiceValues(t *testing.T) {
	yaml := validYAML + `
pipeline:
  silence_threshold_ms: 700
`
	yaml += `
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Persona.Voice.SpeedFactor = 3.0
	cfg.Persona.Voice.PitchShift = 15
	err = config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for bad voice values, got nil")
	}
	if !strings.Contains(err.Error(), "speed_factor") {
		t.Errorf("error should mention speed_factor, got: %v", err)
	}
	if !strings.Contains(err.Error(), "pitch_shift") {
		t.Errorf("error should mention pitch_shift, got: %v", err)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := validYAML + `
nonsense_field: 42
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_EnvTokenOverride(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.Discord.Token)
	}
}
