// Package relay implements the voice conversation pipeline: per-speaker
// capture, response gating, the turn coordinator, and playback.
package relay

import (
	"strings"
	"sync"

	"github.com/MrWong99/parley/pkg/provider/llm"
)

// Memory is the bounded conversation history shared across turns. The
// system turn set at construction is pinned: it survives eviction and Reset,
// and is always the first message of a snapshot. User and assistant turns
// are evicted oldest-first once the cap is reached.
//
// Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	system llm.Message
	turns  []llm.Message
	cap    int
}

// NewMemory creates a Memory pinned to the given system prompt, keeping at
// most cap non-system turns. A cap below 1 is treated as 1.
func NewMemory(systemPrompt string, cap int) *Memory {
	if cap < 1 {
		cap = 1
	}
	return &Memory{
		system: llm.Message{Role: llm.RoleSystem, Content: systemPrompt},
		cap:    cap,
	}
}

// AddUser appends a user turn attributed to the given speaker. Blank or
// whitespace-only content is ignored so transcription noise never pollutes
// the history.
func (m *Memory) AddUser(speaker, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	m.add(llm.Message{Role: llm.RoleUser, Name: speaker, Content: content})
}

// AddAssistant appends an assistant turn. Blank content is ignored.
func (m *Memory) AddAssistant(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	m.add(llm.Message{Role: llm.RoleAssistant, Content: content})
}

func (m *Memory) add(msg llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, msg)
	if over := len(m.turns) - m.cap; over > 0 {
		m.turns = append(m.turns[:0], m.turns[over:]...)
	}
}

// Snapshot returns the system turn followed by the retained conversation
// turns in chronological order. The returned slice is a copy.
func (m *Memory) Snapshot() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Message, 0, len(m.turns)+1)
	out = append(out, m.system)
	out = append(out, m.turns...)
	return out
}

// Len returns the number of retained turns, not counting the system turn.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Reset discards all conversation turns. The system turn is retained.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}
