package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/tts"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Playback wraps the transport's play primitive with completion signaling,
// a bounded timeout, and forced-stop semantics. One Playback exists per
// voice session.
type Playback struct {
	conn    audio.Connection
	store   *TempStore
	target  audio.Format
	timeout time.Duration
	log     *slog.Logger

	mu       sync.Mutex
	speaking bool
}

// SetConnection swaps the underlying transport connection. Used after a
// reconnect. Does not touch in-progress playback on the old connection.
func (p *Playback) SetConnection(conn audio.Connection) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
}

func (p *Playback) connection() audio.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

// NewPlayback creates a Playback that normalizes clips to target before
// handing them to conn. Clips taking longer than timeout are cut off.
func NewPlayback(conn audio.Connection, store *TempStore, target audio.Format, timeout time.Duration, log *slog.Logger) *Playback {
	return &Playback{
		conn:    conn,
		store:   store,
		target:  target,
		timeout: timeout,
		log:     log,
	}
}

// Play decodes the clip, plays it over the transport, and reports whether
// playback ran to natural completion. It returns false on timeout or
// transport error. The artifact at artifactPath (when non-empty) is deleted
// before Play returns regardless of outcome, as is the speaking flag.
func (p *Playback) Play(ctx context.Context, clip tts.Clip, artifactPath string) (completed bool, err error) {
	p.mu.Lock()
	p.speaking = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.speaking = false
		p.mu.Unlock()
		if artifactPath != "" {
			p.store.Remove(artifactPath)
		}
	}()

	pcm, err := p.decode(clip)
	if err != nil {
		return false, err
	}
	if len(pcm) == 0 {
		return false, errors.New("relay: clip decoded to zero samples")
	}

	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn := p.connection()
	err = conn.Play(tctx, pcm)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(tctx.Err(), context.DeadlineExceeded):
		p.log.Warn("playback cut off at timeout", "timeout", p.timeout)
		conn.Stop()
		return false, nil
	default:
		return false, fmt.Errorf("relay: playback: %w", err)
	}
}

// IsSpeaking reports whether a clip is currently playing.
func (p *Playback) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// Stop forcibly ends any in-progress playback. Used on session teardown.
func (p *Playback) Stop() {
	p.connection().Stop()
	p.mu.Lock()
	p.speaking = false
	p.mu.Unlock()
}

// decode converts a clip of any supported encoding into PCM at the target
// transport format.
func (p *Playback) decode(clip tts.Clip) ([]byte, error) {
	switch clip.Encoding {
	case tts.EncodingPCM:
		src := audio.Format{SampleRate: clip.SampleRate, Channels: clip.Channels}
		if src.SampleRate == 0 || src.Channels == 0 {
			return nil, fmt.Errorf("relay: pcm clip missing format (rate=%d channels=%d)", clip.SampleRate, clip.Channels)
		}
		return audio.ConvertPCM(clip.Data, src, p.target), nil

	case tts.EncodingMP3:
		dec, err := mp3.NewDecoder(bytes.NewReader(clip.Data))
		if err != nil {
			return nil, fmt.Errorf("relay: decode mp3 clip: %w", err)
		}
		pcm, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("relay: read mp3 samples: %w", err)
		}
		// go-mp3 always emits 16-bit stereo at the stream's sample rate.
		src := audio.Format{SampleRate: dec.SampleRate(), Channels: 2}
		return audio.ConvertPCM(pcm, src, p.target), nil

	default:
		return nil, fmt.Errorf("relay: unsupported clip encoding %q", clip.Encoding)
	}
}
