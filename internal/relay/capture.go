package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

// CaptureConfig holds the timing knobs of a single capture.
type CaptureConfig struct {
	// SilenceThreshold is how long the speaker must stay inactive before
	// the capture finalizes.
	SilenceThreshold time.Duration

	// HardTimeout unconditionally finalizes the capture regardless of
	// ongoing activity. Never reset.
	HardTimeout time.Duration

	// PollInterval is how often activity is checked against the silence
	// threshold.
	PollInterval time.Duration

	// MinViableBytes is the smallest buffer worth returning. Anything
	// below is discarded as noise.
	MinViableBytes int
}

// CaptureSession accumulates one speaker's audio until end-of-turn. A
// session runs exactly once; create a new one per utterance.
//
// End-of-turn is whichever comes first: the silence threshold elapsing
// with no new frames, the hard timeout, the frame stream closing, or ctx
// cancellation.
type CaptureSession struct {
	speakerID string
	frames    <-chan audio.AudioFrame
	cfg       CaptureConfig
	log       *slog.Logger
}

// NewCaptureSession creates a session reading frames for speakerID.
func NewCaptureSession(speakerID string, frames <-chan audio.AudioFrame, cfg CaptureConfig, log *slog.Logger) *CaptureSession {
	return &CaptureSession{
		speakerID: speakerID,
		frames:    frames,
		cfg:       cfg,
		log:       log,
	}
}

// Run blocks until the capture finalizes and returns the accumulated PCM.
// It returns nil when the buffer is below MinViableBytes or when ctx is
// cancelled before anything useful arrived. The caller is responsible for
// releasing the speaker's capture slot; Run itself holds no shared state.
func (c *CaptureSession) Run(ctx context.Context) []byte {
	var buf []byte
	started := time.Now()
	lastActivity := started

	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()
	hard := time.NewTimer(c.cfg.HardTimeout)
	defer hard.Stop()

	finalize := func(reason string) []byte {
		elapsed := time.Since(started)
		if len(buf) < c.cfg.MinViableBytes {
			c.log.Debug("discarding capture below viable size",
				"speaker", c.speakerID, "bytes", len(buf), "duration", elapsed, "reason", reason)
			return nil
		}
		c.log.Debug("capture finalized",
			"speaker", c.speakerID, "bytes", len(buf), "duration", elapsed, "reason", reason)
		return buf
	}

	for {
		select {
		case frame, ok := <-c.frames:
			if !ok {
				return finalize("stream closed")
			}
			buf = append(buf, frame.Data...)
			lastActivity = time.Now()

		case <-poll.C:
			if time.Since(lastActivity) >= c.cfg.SilenceThreshold {
				return finalize("silence")
			}

		case <-hard.C:
			return finalize("hard timeout")

		case <-ctx.Done():
			c.log.Debug("capture aborted", "speaker", c.speakerID, "error", ctx.Err())
			return nil
		}
	}
}
