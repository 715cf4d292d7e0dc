// Package app wires the relay subsystems into running voice sessions.
//
// The VoiceSessionRegistry is the single owner of per-guild session state:
// there are no package-level connection maps or player singletons. The
// application root constructs one registry and injects it into the command
// surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/relay"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/tts"
)

// ErrNoSession is returned when an operation targets a guild without an
// active voice session.
var ErrNoSession = errors.New("app: no active voice session for this guild")

// Providers holds one interface value per pipeline stage. Populated by
// main.go from the config.
type Providers struct {
	Recognizer  stt.Recognizer
	LLM         llm.Provider
	Synthesizer tts.Synthesizer
}

// VoiceSession is one live voice-channel membership: the transport
// connection, its coordinator, and the event pump that feeds it.
type VoiceSession struct {
	GuildID   string
	ChannelID string

	coord *relay.Coordinator
	recon *resilience.Reconnector
	log   *slog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Coordinator exposes the session's pipeline for the command surface.
func (s *VoiceSession) Coordinator() *relay.Coordinator {
	return s.coord
}

// pump forwards transport events to the coordinator until the event stream
// closes. A closed stream means the connection dropped; the reconnector is
// notified and the pump exits, to be restarted for the new connection.
func (s *VoiceSession) pump(ctx context.Context, conn audio.Connection) error {
	for {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				s.log.Warn("voice event stream closed", "guild", s.GuildID)
				s.recon.NotifyDisconnect()
				return nil
			}
			if ev.Type == audio.EventDisconnect {
				s.recon.NotifyDisconnect()
				continue
			}
			s.coord.HandleEvent(ctx, ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close tears the session down: playback stopped, captures drained,
// artifacts deleted, transport disconnected.
func (s *VoiceSession) close() error {
	s.cancel()
	s.coord.Close()
	err := s.recon.Stop()
	_ = s.group.Wait()
	return err
}

// VoiceSessionRegistry tracks at most one VoiceSession per guild. All
// methods are safe for concurrent use.
type VoiceSessionRegistry struct {
	cfg       *config.Config
	platform  audio.Platform
	providers Providers
	metrics   *observe.Metrics
	log       *slog.Logger

	// BotUserID is the transport identity of the bot, used for
	// self-trigger suppression.
	botUserID string

	mu       sync.Mutex
	sessions map[string]*VoiceSession
	// pending holds guilds whose session is still being built, so a
	// concurrent Join cannot slip past the one-per-guild check while the
	// first is connecting.
	pending map[string]bool
}

// NewVoiceSessionRegistry creates an empty registry.
func NewVoiceSessionRegistry(cfg *config.Config, platform audio.Platform, providers Providers, botUserID string, log *slog.Logger) *VoiceSessionRegistry {
	return &VoiceSessionRegistry{
		cfg:       cfg,
		platform:  platform,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
		log:       log,
		botUserID: botUserID,
		sessions:  make(map[string]*VoiceSession),
		pending:   make(map[string]bool),
	}
}

// reserve claims the guild slot before the session is built. The claim is
// released by commit (on success) or unreserve (on failure).
func (r *VoiceSessionRegistry) reserve(guildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[guildID]; exists {
		return fmt.Errorf("app: guild %s already has a voice session", guildID)
	}
	if r.pending[guildID] {
		return fmt.Errorf("app: guild %s already has a voice session being set up", guildID)
	}
	r.pending[guildID] = true
	return nil
}

func (r *VoiceSessionRegistry) unreserve(guildID string) {
	r.mu.Lock()
	delete(r.pending, guildID)
	r.mu.Unlock()
}

func (r *VoiceSessionRegistry) commit(guildID string, sess *VoiceSession) {
	r.mu.Lock()
	delete(r.pending, guildID)
	r.sessions[guildID] = sess
	r.mu.Unlock()
}

// Join connects to the given voice channel and builds the full pipeline
// behind it. At most one session per guild; joining while a session exists
// returns an error.
func (r *VoiceSessionRegistry) Join(ctx context.Context, guildID, channelID string) (*VoiceSession, error) {
	if err := r.reserve(guildID); err != nil {
		return nil, err
	}

	p := r.cfg.Pipeline
	store, err := relay.NewTempStore(p.ArtifactMaxAge(), r.log)
	if err != nil {
		r.unreserve(guildID)
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, groupCtx := errgroup.WithContext(sessCtx)

	sess := &VoiceSession{
		GuildID:   guildID,
		ChannelID: channelID,
		log:       r.log,
		cancel:    cancel,
		group:     group,
	}

	var playback *relay.Playback
	recon := resilience.NewReconnector(resilience.ReconnectorConfig{
		Platform:  r.platform,
		ChannelID: channelID,
		OnReconnect: func(conn audio.Connection) {
			sess.coord.SetConnection(conn)
			playback.SetConnection(conn)
			sess.group.Go(func() error { return sess.pump(groupCtx, conn) })
		},
	})
	sess.recon = recon

	conn, err := recon.Connect(ctx)
	if err != nil {
		cancel()
		store.Close()
		r.unreserve(guildID)
		return nil, err
	}

	transport := audio.Format{SampleRate: 48000, Channels: 2}
	playback = relay.NewPlayback(conn, store, transport, p.PlaybackTimeout(), r.log)

	sess.coord = relay.NewCoordinator(relay.CoordinatorConfig{
		Conn:        conn,
		Recognizer:  r.providers.Recognizer,
		LLM:         r.providers.LLM,
		Synthesizer: r.providers.Synthesizer,
		Gate: relay.NewGate(relay.GateConfig{
			MinChars:           p.MinChars,
			LongUtteranceChars: p.LongUtteranceChars,
			AcceptLongProb:     p.AcceptLongProb,
			AcceptShortProb:    p.AcceptShortProb,
			AlwaysRespond:      p.AlwaysRespond,
			BotNames:           r.cfg.Persona.BotNames,
			ExtraFillers:       p.Fillers,
		}),
		Memory:          relay.NewMemory(r.cfg.Persona.Prompt, p.HistoryCap),
		Playback:        playback,
		Store:           store,
		Metrics:         r.metrics,
		Log:             r.log.With("guild", guildID),
		BotUserID:       r.botUserID,
		Capture: relay.CaptureConfig{
			SilenceThreshold: p.SilenceThreshold(),
			HardTimeout:      p.HardCaptureTimeout(),
			PollInterval:     p.PollInterval(),
			MinViableBytes:   p.MinViableBytes,
		},
		TransportFormat: transport,
		Language:        r.cfg.Persona.Voice.Language,
		Voice: tts.VoiceProfile{
			Name:         r.cfg.Persona.Voice.Name,
			Language:     r.cfg.Persona.Voice.Language,
			SpeakingRate: r.cfg.Persona.Voice.SpeedFactor,
			Pitch:        r.cfg.Persona.Voice.PitchShift,
		},
		TTSMaxChars: p.TTSMaxChars,
		STTTimeout:  p.STTTimeout(),
		LLMTimeout:  p.LLMTimeout(),
		TTSTimeout:  p.TTSTimeout(),
	})

	group.Go(func() error { return sess.pump(groupCtx, conn) })
	recon.Monitor(sessCtx)

	r.commit(guildID, sess)

	r.metrics.ActiveSessions.Add(ctx, 1)
	r.log.Info("joined voice channel", "guild", guildID, "channel", channelID)
	return sess, nil
}

// Get returns the session for guildID, if any.
func (r *VoiceSessionRegistry) Get(guildID string) (*VoiceSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Leave tears down the guild's session. Returns ErrNoSession when none exists.
func (r *VoiceSessionRegistry) Leave(ctx context.Context, guildID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[guildID]
	delete(r.sessions, guildID)
	r.mu.Unlock()
	if !ok {
		return ErrNoSession
	}

	err := sess.close()
	r.metrics.ActiveSessions.Add(ctx, -1)
	r.log.Info("left voice channel", "guild", guildID, "channel", sess.ChannelID)
	if err != nil {
		return fmt.Errorf("app: leave guild %s: %w", guildID, err)
	}
	return nil
}

// CloseAll tears down every session. Used at shutdown.
func (r *VoiceSessionRegistry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*VoiceSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*VoiceSession)
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.close(); err != nil {
			r.log.Warn("session close error", "guild", s.GuildID, "error", err)
		}
		r.metrics.ActiveSessions.Add(ctx, -1)
	}
}
