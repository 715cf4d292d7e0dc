package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/tts"
)

// Sentinel errors returned by capture and pipeline entry guards.
var (
	// ErrBusy is returned when a pipeline is already running for this session.
	ErrBusy = errors.New("relay: a turn is already in progress")

	// ErrBotSpeaking is returned when a capture is requested while the bot
	// holds the voice channel.
	ErrBotSpeaking = errors.New("relay: bot is currently speaking")

	// ErrAlreadyCapturing is returned when the speaker already has an open capture.
	ErrAlreadyCapturing = errors.New("relay: speaker already has an open capture")

	// ErrSelfCapture is returned when the triggering speaker is the bot itself.
	ErrSelfCapture = errors.New("relay: refusing to capture own voice")
)

// truncationMarker is appended to replies cut at the TTS length cap.
const truncationMarker = "..."

// CoordinatorConfig wires a Coordinator's collaborators and knobs.
type CoordinatorConfig struct {
	Conn        audio.Connection
	Recognizer  stt.Recognizer
	LLM         llm.Provider
	Synthesizer tts.Synthesizer
	Gate        *Gate
	Memory      *Memory
	Playback    *Playback
	Store       *TempStore
	Metrics     *observe.Metrics
	Log         *slog.Logger

	// BotUserID is the transport identity of the bot itself. Speaking
	// events from this ID never open a capture.
	BotUserID string

	// Capture holds the per-capture timing knobs.
	Capture CaptureConfig

	// TransportFormat describes the PCM arriving from the transport.
	TransportFormat audio.Format

	// Language is passed to the recognizer.
	Language string

	// Voice is the synthesis voice for replies.
	Voice tts.VoiceProfile

	// TTSMaxChars truncates replies before synthesis. <= 0 disables.
	TTSMaxChars int

	// Per-stage timeouts.
	STTTimeout time.Duration
	LLMTimeout time.Duration
	TTSTimeout time.Duration
}

// Coordinator drives the capture → transcribe → gate → respond →
// synthesize → play pipeline for one voice session. It enforces the
// single-flight rule: at most one utterance is in the pipeline at a time,
// and utterances arriving while busy are dropped, never queued.
//
// Safe for concurrent use; captures for different speakers run in parallel
// but serialize at the pipeline entry.
type Coordinator struct {
	cfg CoordinatorConfig
	log *slog.Logger

	mu             sync.Mutex
	conn           audio.Connection
	busy           bool
	activeSpeakers map[string]struct{}
	closed         bool

	captureWG sync.WaitGroup
}

// SetConnection swaps the transport connection after a reconnect. The
// playback controller must be swapped separately via [Playback.SetConnection].
func (c *Coordinator) SetConnection(conn audio.Connection) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Coordinator) connection() audio.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// NewCoordinator creates a Coordinator from cfg. All collaborator fields
// must be set.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		cfg:            cfg,
		log:            cfg.Log,
		conn:           cfg.Conn,
		activeSpeakers: make(map[string]struct{}),
	}
}

// HandleEvent dispatches one transport event. Speaking-start events open
// captures; stream errors are logged. Disconnects are the session layer's
// concern and are ignored here.
func (c *Coordinator) HandleEvent(ctx context.Context, ev audio.Event) {
	switch ev.Type {
	case audio.EventSpeakingStart:
		if err := c.StartCapture(ctx, ev.SpeakerID, ev.Username); err != nil {
			c.log.Debug("capture not opened", "speaker", ev.SpeakerID, "reason", err)
		}
	case audio.EventStreamError:
		c.log.Warn("speaker stream error", "speaker", ev.SpeakerID, "error", ev.Err)
	case audio.EventStreamEnd:
		c.log.Debug("speaker stream ended", "speaker", ev.SpeakerID)
	case audio.EventDisconnect:
		// Handled by the session registry.
	}
}

// StartCapture opens a capture for the speaker and runs it in the
// background. On finalize the buffer is handed to the pipeline. The
// speaker's slot is released exactly once, on every exit path.
func (c *Coordinator) StartCapture(ctx context.Context, speakerID, username string) error {
	if speakerID == c.cfg.BotUserID {
		return ErrSelfCapture
	}
	if c.cfg.Playback.IsSpeaking() {
		c.metrics().RecordDrop(ctx, "bot_speaking")
		return ErrBotSpeaking
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("relay: coordinator is closed")
	}
	if _, open := c.activeSpeakers[speakerID]; open {
		c.mu.Unlock()
		return ErrAlreadyCapturing
	}
	c.activeSpeakers[speakerID] = struct{}{}
	c.mu.Unlock()

	frames, err := c.connection().Subscribe(speakerID)
	if err != nil {
		c.releaseSpeaker(speakerID)
		return fmt.Errorf("relay: subscribe %s: %w", speakerID, err)
	}

	c.metrics().ActiveCaptures.Add(ctx, 1)
	c.log.Debug("capture opened", "speaker", speakerID, "username", username)

	sess := NewCaptureSession(speakerID, frames, c.cfg.Capture, c.log)
	c.captureWG.Add(1)
	go func() {
		start := time.Now()
		defer c.captureWG.Done()
		defer c.metrics().ActiveCaptures.Add(ctx, -1)
		defer c.releaseSpeaker(speakerID)

		buf := sess.Run(ctx)
		c.metrics().RecordStage(ctx, c.metrics().CaptureDuration, start)
		if buf == nil {
			c.metrics().RecordDrop(ctx, "too_small")
			return
		}
		c.OnUtteranceReady(ctx, speakerID, username, buf)
	}()
	return nil
}

func (c *Coordinator) releaseSpeaker(speakerID string) {
	c.mu.Lock()
	delete(c.activeSpeakers, speakerID)
	c.mu.Unlock()
}

// OnUtteranceReady runs the full pipeline for one finalized capture buffer.
// If a turn is already in flight the utterance is dropped. Every terminal
// path, success or failure, leaves busy false.
func (c *Coordinator) OnUtteranceReady(ctx context.Context, speakerID, username string, buf []byte) {
	if !c.acquireBusy() {
		c.log.Info("dropping utterance, pipeline busy", "speaker", speakerID, "bytes", len(buf))
		c.metrics().RecordDrop(ctx, "busy")
		return
	}
	defer c.releaseBusy()

	// Transcribing.
	text, err := c.transcribe(ctx, buf)
	if err != nil {
		c.log.Warn("transcription failed", "speaker", speakerID, "error", err)
		c.metrics().RecordProviderError(ctx, "stt")
		return
	}
	if strings.TrimSpace(text) == "" {
		c.log.Debug("transcription empty, nothing said", "speaker", speakerID)
		c.metrics().RecordDrop(ctx, "stt_empty")
		return
	}
	c.log.Info("transcribed utterance", "speaker", speakerID, "username", username, "text", text)

	// Gating.
	if !c.cfg.Gate.ShouldRespond(text) {
		c.log.Debug("gate rejected utterance", "speaker", speakerID, "text", text)
		c.metrics().RecordDrop(ctx, "gate_reject")
		return
	}

	c.metrics().TurnsStarted.Add(ctx, 1)
	c.respond(ctx, username, text)
}

// Ask feeds gate-exempt text straight into the responding stage, as if the
// speaker had said it and the gate had accepted. Returns ErrBusy when a
// turn is in flight.
func (c *Coordinator) Ask(ctx context.Context, username, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("relay: ask text must not be empty")
	}
	if !c.acquireBusy() {
		return ErrBusy
	}
	defer c.releaseBusy()

	c.metrics().TurnsStarted.Add(ctx, 1)
	c.respond(ctx, username, text)
	return nil
}

// Say synthesizes and plays text without touching the gate or memory.
// Returns ErrBusy when a turn is in flight.
func (c *Coordinator) Say(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("relay: say text must not be empty")
	}
	if !c.acquireBusy() {
		return ErrBusy
	}
	defer c.releaseBusy()

	return c.speak(ctx, text)
}

// respond appends the user turn, queries the LLM with the full history,
// and speaks the reply. LLM failures degrade to a spoken fallback sentence
// per failure class instead of silence.
func (c *Coordinator) respond(ctx context.Context, username, text string) {
	c.cfg.Memory.AddUser(username, text)

	reply, err := c.complete(ctx)
	if err != nil {
		c.log.Error("chat completion failed", "error", err)
		c.metrics().RecordProviderError(ctx, "llm")
		reply = resilience.FallbackReply(err)
	} else {
		c.cfg.Memory.AddAssistant(reply)
	}

	reply = truncateForSpeech(reply, c.cfg.TTSMaxChars)

	if err := c.speak(ctx, reply); err != nil {
		c.log.Error("failed to speak reply", "error", err)
	}
}

// truncateForSpeech caps text at max characters, replacing the tail with
// the truncation marker. The cut counts runes so a multi-byte character is
// never split mid-sequence.
func truncateForSpeech(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	cut := max - utf8.RuneCountInString(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	runes := []rune(text)
	return string(runes[:cut]) + truncationMarker
}

// speak synthesizes text, stages the clip as a temp artifact, and plays it.
func (c *Coordinator) speak(ctx context.Context, text string) error {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, c.cfg.TTSTimeout)
	clip, err := c.cfg.Synthesizer.Synthesize(tctx, text, c.cfg.Voice)
	cancel()
	c.metrics().RecordStage(ctx, c.metrics().TTSDuration, start)
	if err != nil {
		c.metrics().RecordProviderError(ctx, "tts")
		return fmt.Errorf("relay: synthesize: %w", err)
	}

	artifact, err := c.cfg.Store.Create(clip.Data, "."+string(clip.Encoding))
	if err != nil {
		c.log.Warn("failed to stage clip artifact, playing from memory", "error", err)
		artifact = ""
	}

	start = time.Now()
	completed, err := c.cfg.Playback.Play(ctx, clip, artifact)
	c.metrics().RecordStage(ctx, c.metrics().PlaybackDuration, start)
	if err != nil {
		return fmt.Errorf("relay: play: %w", err)
	}
	if !completed {
		c.log.Warn("playback did not run to completion", "text_len", len(text))
	}
	return nil
}

func (c *Coordinator) transcribe(ctx context.Context, buf []byte) (string, error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, c.cfg.STTTimeout)
	defer cancel()
	text, err := c.cfg.Recognizer.Recognize(sctx, buf, stt.AudioConfig{
		SampleRate: c.cfg.TransportFormat.SampleRate,
		Channels:   c.cfg.TransportFormat.Channels,
		Language:   c.cfg.Language,
	})
	c.metrics().RecordStage(ctx, c.metrics().STTDuration, start)
	return text, err
}

func (c *Coordinator) complete(ctx context.Context) (string, error) {
	start := time.Now()
	lctx, cancel := context.WithTimeout(ctx, c.cfg.LLMTimeout)
	defer cancel()
	reply, err := c.cfg.LLM.Chat(lctx, llm.ChatRequest{Messages: c.cfg.Memory.Snapshot()})
	c.metrics().RecordStage(ctx, c.metrics().LLMDuration, start)
	return reply, err
}

func (c *Coordinator) acquireBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Coordinator) releaseBusy() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Status is a point-in-time snapshot of the coordinator's state.
type Status struct {
	Busy           bool
	BotSpeaking    bool
	ActiveCaptures int
	HistoryLen     int
}

// Status returns the current pipeline state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	busy := c.busy
	captures := len(c.activeSpeakers)
	c.mu.Unlock()
	return Status{
		Busy:           busy,
		BotSpeaking:    c.cfg.Playback.IsSpeaking(),
		ActiveCaptures: captures,
		HistoryLen:     c.cfg.Memory.Len(),
	}
}

// Reset clears the conversation history. The system turn survives.
func (c *Coordinator) Reset() {
	c.cfg.Memory.Reset()
}

// Close stops playback, refuses new captures, and waits for in-flight
// capture goroutines. Temp artifacts are removed by the store.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cfg.Playback.Stop()
	c.captureWG.Wait()
	c.cfg.Store.Close()
}

func (c *Coordinator) metrics() *observe.Metrics {
	if c.cfg.Metrics != nil {
		return c.cfg.Metrics
	}
	return observe.DefaultMetrics()
}
