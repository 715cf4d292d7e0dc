package relay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TempStore allocates and tracks transient audio files for one voice
// session. Every artifact is either deleted by its consumer, swept once it
// exceeds the maximum age, or removed when the store closes. Nothing
// survives Close.
type TempStore struct {
	dir    string
	maxAge time.Duration
	log    *slog.Logger

	mu        sync.Mutex
	artifacts map[string]time.Time // path -> createdAt
	closed    bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewTempStore creates a store rooted at a fresh directory under the OS
// temp dir and starts the periodic age sweep. maxAge <= 0 disables the
// sweep.
func NewTempStore(maxAge time.Duration, log *slog.Logger) (*TempStore, error) {
	dir, err := os.MkdirTemp("", "parley-session-*")
	if err != nil {
		return nil, fmt.Errorf("relay: create temp dir: %w", err)
	}
	s := &TempStore{
		dir:       dir,
		maxAge:    maxAge,
		log:       log,
		artifacts: make(map[string]time.Time),
		done:      make(chan struct{}),
	}
	if maxAge > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s, nil
}

// Create writes data to a new uuid-named file with the given extension
// (e.g., ".mp3") and returns its path. The caller owns the artifact and
// should Remove it once consumed.
func (s *TempStore) Create(data []byte, ext string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", fmt.Errorf("relay: temp store is closed")
	}
	s.mu.Unlock()

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("relay: write artifact %s: %w", path, err)
	}

	s.mu.Lock()
	s.artifacts[path] = time.Now()
	s.mu.Unlock()
	return path, nil
}

// Remove deletes the artifact at path. Deletion failures are logged, never
// escalated.
func (s *TempStore) Remove(path string) {
	s.mu.Lock()
	delete(s.artifacts, path)
	s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to delete temp artifact", "path", path, "error", err)
	}
}

// Count returns the number of tracked artifacts.
func (s *TempStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}

// Close stops the sweep, deletes all remaining artifacts, and removes the
// session directory. Safe to call more than once.
func (s *TempStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	paths := make([]string, 0, len(s.artifacts))
	for p := range s.artifacts {
		paths = append(paths, p)
	}
	s.artifacts = make(map[string]time.Time)
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to delete temp artifact", "path", p, "error", err)
		}
	}
	if err := os.Remove(s.dir); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove temp dir", "dir", s.dir, "error", err)
	}
}

func (s *TempStore) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.maxAge / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.done:
			return
		}
	}
}

// sweep removes artifacts older than maxAge as of now.
func (s *TempStore) sweep(now time.Time) {
	s.mu.Lock()
	var stale []string
	for p, created := range s.artifacts {
		if now.Sub(created) > s.maxAge {
			stale = append(stale, p)
			delete(s.artifacts, p)
		}
	}
	s.mu.Unlock()

	for _, p := range stale {
		s.log.Debug("sweeping stale temp artifact", "path", p)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to sweep temp artifact", "path", p, "error", err)
		}
	}
}
