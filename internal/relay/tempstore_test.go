package relay_test

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/parley/internal/relay"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTempStore_CreateAndRemove(t *testing.T) {
	t.Parallel()
	store, err := relay.NewTempStore(0, discardLogger())
	if err != nil {
		t.Fatalf("NewTempStore: %v", err)
	}
	defer store.Close()

	path, err := store.Create([]byte("audio bytes"), ".mp3")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact not on disk: %v", err)
	}
	if got := store.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}

	store.Remove(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("artifact still on disk after Remove: %v", err)
	}
	if got := store.Count(); got != 0 {
		t.Errorf("Count() = %d after Remove, want 0", got)
	}
}

func TestTempStore_CloseDeletesEverything(t *testing.T) {
	t.Parallel()
	store, err := relay.NewTempStore(time.Minute, discardLogger())
	if err != nil {
		t.Fatalf("NewTempStore: %v", err)
	}

	var paths []string
	for i := 0; i < 3; i++ {
		p, err := store.Create([]byte{0x01, 0x02}, ".pcm")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		paths = append(paths, p)
	}

	store.Close()
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("artifact %s survived Close", p)
		}
	}

	// Closed store refuses new artifacts.
	if _, err := store.Create([]byte("x"), ".mp3"); err == nil {
		t.Error("Create after Close should fail")
	}
	// Close is idempotent.
	store.Close()
}

func TestTempStore_SweepRemovesStaleArtifacts(t *testing.T) {
	t.Parallel()
	store, err := relay.NewTempStore(40*time.Millisecond, discardLogger())
	if err != nil {
		t.Fatalf("NewTempStore: %v", err)
	}
	defer store.Close()

	path, err := store.Create([]byte("stale"), ".mp3")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweep never removed the stale artifact")
		case <-time.After(20 * time.Millisecond):
		}
	}
	if got := store.Count(); got != 0 {
		t.Errorf("Count() = %d after sweep, want 0", got)
	}
}

func TestTempStore_RemoveTwiceIsHarmless(t *testing.T) {
	t.Parallel()
	store, err := relay.NewTempStore(0, discardLogger())
	if err != nil {
		t.Fatalf("NewTempStore: %v", err)
	}
	defer store.Close()

	path, err := store.Create([]byte("x"), ".wav")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.Remove(path)
	store.Remove(path)
}
