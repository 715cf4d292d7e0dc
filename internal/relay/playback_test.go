package relay_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/parley/internal/relay"
	"github.com/MrWong99/parley/pkg/audio"
	audiomock "github.com/MrWong99/parley/pkg/audio/mock"
	"github.com/MrWong99/parley/pkg/provider/tts"
)

var targetFormat = audio.Format{SampleRate: 48000, Channels: 2}

func pcmClip(n int) tts.Clip {
	return tts.Clip{
		Data:       make([]byte, n),
		Encoding:   tts.EncodingPCM,
		SampleRate: targetFormat.SampleRate,
		Channels:   targetFormat.Channels,
	}
}

func newTestPlayback(t *testing.T, conn *audiomock.Connection, timeout time.Duration) (*relay.Playback, *relay.TempStore) {
	t.Helper()
	store, err := relay.NewTempStore(0, discardLogger())
	if err != nil {
		t.Fatalf("NewTempStore: %v", err)
	}
	t.Cleanup(store.Close)
	return relay.NewPlayback(conn, store, targetFormat, timeout, discardLogger()), store
}

func TestPlayback_CompletesAndDeletesArtifact(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	pb, store := newTestPlayback(t, conn, time.Second)

	artifact, err := store.Create([]byte("clip"), ".pcm")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	completed, err := pb.Play(context.Background(), pcmClip(3840), artifact)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !completed {
		t.Error("completed = false, want true")
	}
	if conn.CallCountPlay != 1 {
		t.Errorf("transport Play calls = %d, want 1", conn.CallCountPlay)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Error("artifact survived playback")
	}
	if pb.IsSpeaking() {
		t.Error("IsSpeaking() = true after completion")
	}
}

func TestPlayback_TimeoutReportsNotCompleted(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	conn.PlayDelay = 2 * time.Second
	pb, store := newTestPlayback(t, conn, 50*time.Millisecond)

	artifact, err := store.Create([]byte("clip"), ".pcm")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	completed, err := pb.Play(context.Background(), pcmClip(3840), artifact)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if completed {
		t.Error("completed = true, want false on timeout")
	}
	if conn.CallCountStop == 0 {
		t.Error("transport Stop was not called on timeout")
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Error("artifact survived timed-out playback")
	}
}

func TestPlayback_EmptyClipFails(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	pb, _ := newTestPlayback(t, conn, time.Second)

	if _, err := pb.Play(context.Background(), pcmClip(0), ""); err == nil {
		t.Error("Play with empty clip should fail")
	}
	if pb.IsSpeaking() {
		t.Error("IsSpeaking() = true after failed play")
	}
}

func TestPlayback_UnsupportedEncoding(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	pb, _ := newTestPlayback(t, conn, time.Second)

	clip := tts.Clip{Data: []byte{1, 2, 3}, Encoding: "ogg"}
	if _, err := pb.Play(context.Background(), clip, ""); err == nil {
		t.Error("Play with unsupported encoding should fail")
	}
}

func TestPlayback_StopClearsSpeaking(t *testing.T) {
	t.Parallel()
	conn := audiomock.NewConnection()
	conn.PlayDelay = time.Second
	pb, _ := newTestPlayback(t, conn, 5*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pb.Play(context.Background(), pcmClip(3840), "")
	}()

	// Wait for playback to start, then force-stop it.
	deadline := time.After(2 * time.Second)
	for !pb.IsSpeaking() {
		select {
		case <-deadline:
			t.Fatal("playback never started")
		case <-time.After(5 * time.Millisecond):
		}
	}
	pb.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after Stop")
	}
	if pb.IsSpeaking() {
		t.Error("IsSpeaking() = true after Stop")
	}
}
