package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/parley/internal/relay"
	"github.com/MrWong99/parley/pkg/audio"
)

func testCaptureConfig() relay.CaptureConfig {
	return relay.CaptureConfig{
		SilenceThreshold: 60 * time.Millisecond,
		HardTimeout:      500 * time.Millisecond,
		PollInterval:     10 * time.Millisecond,
		MinViableBytes:   100,
	}
}

func frame(n int) audio.AudioFrame {
	return audio.AudioFrame{
		Data:       make([]byte, n),
		SampleRate: 48000,
		Channels:   2,
		Timestamp:  20 * time.Millisecond,
	}
}

func TestCaptureSession_FinalizesOnSilence(t *testing.T) {
	t.Parallel()
	frames := make(chan audio.AudioFrame, 16)
	sess := relay.NewCaptureSession("alice", frames, testCaptureConfig(), discardLogger())

	for i := 0; i < 5; i++ {
		frames <- frame(50)
	}
	// No further frames: the silence threshold should finalize the capture.

	done := make(chan []byte, 1)
	go func() { done <- sess.Run(context.Background()) }()

	select {
	case buf := <-done:
		if len(buf) != 250 {
			t.Errorf("buffer length = %d, want 250", len(buf))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("capture never finalized on silence")
	}
}

func TestCaptureSession_DiscardsBelowViableSize(t *testing.T) {
	t.Parallel()
	frames := make(chan audio.AudioFrame, 4)
	sess := relay.NewCaptureSession("alice", frames, testCaptureConfig(), discardLogger())

	frames <- frame(30) // below the 100-byte floor

	buf := sess.Run(context.Background())
	if buf != nil {
		t.Errorf("buffer = %d bytes, want nil (noise discard)", len(buf))
	}
}

func TestCaptureSession_HardTimeoutCutsContinuousSpeech(t *testing.T) {
	t.Parallel()
	cfg := testCaptureConfig()
	cfg.HardTimeout = 200 * time.Millisecond

	frames := make(chan audio.AudioFrame, 256)
	sess := relay.NewCaptureSession("alice", frames, cfg, discardLogger())

	// Feed frames continuously so the silence timer never fires.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case frames <- frame(50):
				default:
				}
			case <-stop:
				return
			}
		}
	}()
	defer close(stop)

	start := time.Now()
	buf := sess.Run(context.Background())
	elapsed := time.Since(start)

	if buf == nil {
		t.Fatal("expected a non-nil buffer from hard timeout finalize")
	}
	if elapsed < cfg.HardTimeout || elapsed > cfg.HardTimeout+300*time.Millisecond {
		t.Errorf("capture ran %v, want ~%v (hard timeout)", elapsed, cfg.HardTimeout)
	}
}

func TestCaptureSession_FinalizesOnStreamClose(t *testing.T) {
	t.Parallel()
	frames := make(chan audio.AudioFrame, 8)
	sess := relay.NewCaptureSession("alice", frames, testCaptureConfig(), discardLogger())

	for i := 0; i < 3; i++ {
		frames <- frame(50)
	}
	close(frames)

	buf := sess.Run(context.Background())
	if len(buf) != 150 {
		t.Errorf("buffer length = %d, want 150", len(buf))
	}
}

func TestCaptureSession_AbortsOnContextCancel(t *testing.T) {
	t.Parallel()
	frames := make(chan audio.AudioFrame, 8)
	sess := relay.NewCaptureSession("alice", frames, testCaptureConfig(), discardLogger())

	frames <- frame(500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if buf := sess.Run(ctx); buf != nil {
		t.Errorf("buffer = %d bytes after cancel, want nil", len(buf))
	}
}
