package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/pkg/audio"
	audiomock "github.com/MrWong99/parley/pkg/audio/mock"
	llmmock "github.com/MrWong99/parley/pkg/provider/llm/mock"
	sttmock "github.com/MrWong99/parley/pkg/provider/stt/mock"
	"github.com/MrWong99/parley/pkg/provider/tts"
	ttsmock "github.com/MrWong99/parley/pkg/provider/tts/mock"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Discord.Token = "test-token"
	cfg.Persona.Prompt = "you are a test companion"
	cfg.Persona.BotNames = []string{"parley"}
	cfg.Pipeline.SilenceThresholdMS = 60
	cfg.Pipeline.PollIntervalMS = 10
	cfg.Pipeline.HardCaptureTimeoutMS = 500
	cfg.Pipeline.MinViableBytes = 100
	return cfg
}

func testRegistry(t *testing.T, conn *audiomock.Connection) (*app.VoiceSessionRegistry, *sttmock.Recognizer, *llmmock.Provider, *ttsmock.Synthesizer) {
	t.Helper()
	rec := &sttmock.Recognizer{Result: "what is the time"}
	chat := &llmmock.Provider{Reply: "time is an illusion"}
	synth := &ttsmock.Synthesizer{Result: tts.Clip{
		Data:       make([]byte, 3840),
		Encoding:   tts.EncodingPCM,
		SampleRate: 48000,
		Channels:   2,
	}}
	platform := &audiomock.Platform{ConnectResult: conn}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := app.NewVoiceSessionRegistry(testConfig(), platform, app.Providers{
		Recognizer:  rec,
		LLM:         chat,
		Synthesizer: synth,
	}, "bot-self", log)
	return reg, rec, chat, synth
}

func TestRegistry_JoinGetLeave(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	reg, _, _, _ := testRegistry(t, conn)
	ctx := context.Background()

	sess, err := reg.Join(ctx, "guild-1", "channel-1")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if sess.GuildID != "guild-1" || sess.ChannelID != "channel-1" {
		t.Errorf("session identity = %s/%s", sess.GuildID, sess.ChannelID)
	}

	got, ok := reg.Get("guild-1")
	if !ok || got != sess {
		t.Error("Get did not return the joined session")
	}

	// Second join for the same guild is refused.
	if _, err := reg.Join(ctx, "guild-1", "channel-2"); err == nil {
		t.Error("duplicate Join should fail")
	}

	if err := reg.Leave(ctx, "guild-1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, ok := reg.Get("guild-1"); ok {
		t.Error("session still registered after Leave")
	}
	if conn.CallCountDisconnect == 0 {
		t.Error("transport was not disconnected on Leave")
	}
}

func TestRegistry_LeaveWithoutSession(t *testing.T) {
	t.Parallel()
	reg, _, _, _ := testRegistry(t, audiomock.NewConnection())
	if err := reg.Leave(context.Background(), "nope"); !errors.Is(err, app.ErrNoSession) {
		t.Errorf("Leave error = %v, want ErrNoSession", err)
	}
}

func TestRegistry_EventPumpDrivesTurn(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	reg, rec, _, _ := testRegistry(t, conn)
	ctx := context.Background()

	if _, err := reg.Join(ctx, "guild-1", "channel-1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	defer reg.CloseAll(ctx)

	conn.EmitEvent(audio.Event{Type: audio.EventSpeakingStart, SpeakerID: "alice", Username: "Alice"})
	for i := 0; i < 5; i++ {
		conn.PushFrame("alice", audio.AudioFrame{Data: make([]byte, 50)})
	}

	deadline := time.After(3 * time.Second)
	for rec.CallCount() == 0 || conn.CallCountPlay == 0 {
		select {
		case <-deadline:
			t.Fatalf("pipeline never completed: stt=%d play=%d", rec.CallCount(), conn.CallCountPlay)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRegistry_SelfSpeakingEventIgnored(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	reg, rec, _, _ := testRegistry(t, conn)
	ctx := context.Background()

	if _, err := reg.Join(ctx, "guild-1", "channel-1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	defer reg.CloseAll(ctx)

	conn.EmitEvent(audio.Event{Type: audio.EventSpeakingStart, SpeakerID: "bot-self", Username: "Parley"})
	conn.PushFrame("bot-self", audio.AudioFrame{Data: make([]byte, 4000)})

	time.Sleep(200 * time.Millisecond)
	if got := rec.CallCount(); got != 0 {
		t.Errorf("STT calls = %d, want 0 for the bot's own voice", got)
	}
}

func TestRegistry_ConcurrentJoinSingleSession(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	reg, _, _, _ := testRegistry(t, conn)
	ctx := context.Background()

	const joiners = 8
	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = reg.Join(ctx, "guild-1", "channel-1")
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("%d concurrent joins succeeded, want exactly 1", won)
	}
	if _, ok := reg.Get("guild-1"); !ok {
		t.Fatal("winning session not registered")
	}

	// The winner's session is reachable and tears down cleanly.
	if err := reg.Leave(ctx, "guild-1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if conn.CallCountDisconnect == 0 {
		t.Error("transport was not disconnected on Leave")
	}
}

func TestRegistry_FailedJoinReleasesGuild(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	ctx := context.Background()

	boom := errors.New("voice gateway down")
	platform := &audiomock.Platform{ConnectErr: boom}
	failing := app.NewVoiceSessionRegistry(testConfig(), platform, app.Providers{
		Recognizer:  &sttmock.Recognizer{},
		LLM:         &llmmock.Provider{},
		Synthesizer: &ttsmock.Synthesizer{},
	}, "bot-self", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := failing.Join(ctx, "guild-1", "channel-1"); !errors.Is(err, boom) {
		t.Fatalf("Join error = %v, want %v", err, boom)
	}

	// The failed attempt must not leave the guild slot claimed.
	platform.ConnectErr = nil
	platform.ConnectResult = conn
	if _, err := failing.Join(ctx, "guild-1", "channel-1"); err != nil {
		t.Fatalf("Join after failed attempt: %v", err)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	t.Parallel()
	connA := audiomock.NewConnection()
	reg, _, _, _ := testRegistry(t, connA)
	ctx := context.Background()

	if _, err := reg.Join(ctx, "guild-1", "channel-1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	reg.CloseAll(ctx)
	if _, ok := reg.Get("guild-1"); ok {
		t.Error("session survived CloseAll")
	}
	if connA.CallCountDisconnect == 0 {
		t.Error("transport was not disconnected on CloseAll")
	}
}
