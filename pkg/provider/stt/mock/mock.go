// Package mock provides a test double for the stt.Recognizer interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/provider/stt"
)

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	// PCM is the audio buffer passed to Recognize.
	PCM []byte
	// Cfg is the audio configuration passed to Recognize.
	Cfg stt.AudioConfig
}

// Recognizer is a mock implementation of stt.Recognizer.
// Set Result and Err before use; inspect Calls afterwards.
type Recognizer struct {
	mu sync.Mutex

	// Result is returned by Recognize when Err is nil.
	Result string

	// Err, if non-nil, is returned by Recognize.
	Err error

	// Calls records every Recognize invocation in order.
	Calls []RecognizeCall
}

// Compile-time interface assertion.
var _ stt.Recognizer = (*Recognizer)(nil)

// Recognize implements stt.Recognizer.
func (r *Recognizer) Recognize(_ context.Context, pcm []byte, cfg stt.AudioConfig) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	r.Calls = append(r.Calls, RecognizeCall{PCM: cp, Cfg: cfg})
	if r.Err != nil {
		return "", r.Err
	}
	return r.Result, nil
}

// CallCount returns how many times Recognize was called.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
