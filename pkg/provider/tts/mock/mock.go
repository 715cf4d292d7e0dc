// Package mock provides a configurable in-memory tts.Synthesizer for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// SynthesizeCall records the arguments of one Synthesize invocation.
type SynthesizeCall struct {
	Text  string
	Voice tts.VoiceProfile
}

// Synthesizer is a test double for tts.Synthesizer. Configure Result and Err
// before use; Calls records every invocation. Safe for concurrent use.
type Synthesizer struct {
	mu sync.Mutex

	// Result is returned from Synthesize when Err is nil.
	Result tts.Clip

	// Err, when non-nil, is returned from every Synthesize call.
	Err error

	// Calls holds one entry per Synthesize invocation.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns the configured Result or Err.
func (s *Synthesizer) Synthesize(_ context.Context, text string, voice tts.VoiceProfile) (tts.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, SynthesizeCall{Text: text, Voice: voice})
	if s.Err != nil {
		return tts.Clip{}, s.Err
	}
	return s.Result, nil
}

// CallCount returns how many times Synthesize was invoked.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// LastText returns the text of the most recent call, or "" if none.
func (s *Synthesizer) LastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Calls) == 0 {
		return ""
	}
	return s.Calls[len(s.Calls)-1].Text
}
