// Package llm defines the Provider interface for Large Language Model
// backends and the error classes the relay distinguishes when a backend
// misbehaves.
//
// The relay only needs one operation — send the conversation, get a reply —
// so the interface is deliberately small. Implementations classify their
// transport failures into the exported sentinel errors so the coordinator
// can map each failure class to a distinct user-legible fallback sentence.
package llm

import (
	"context"
	"errors"
)

// Error classes for backend failures. Providers wrap their native errors so
// that errors.Is matches against these sentinels.
var (
	// ErrUnreachable indicates the backend could not be contacted at all
	// (connection refused, DNS failure, server down).
	ErrUnreachable = errors.New("llm backend unreachable")

	// ErrTimeout indicates the backend accepted the request but did not
	// reply within the configured deadline.
	ErrTimeout = errors.New("llm request timed out")

	// ErrModelNotFound indicates the configured model does not exist on the
	// backend.
	ErrModelNotFound = errors.New("llm model not found")

	// ErrBadRequest indicates the backend rejected the request as malformed.
	ErrBadRequest = errors.New("llm request rejected")
)

// Roles for conversation turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn sent to the backend.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser], or [RoleAssistant].
	Role string

	// Name optionally identifies the speaker of a user turn.
	Name string

	// Content is the turn's text.
	Content string
}

// Text returns the content a backend should send for this turn. User turns
// carry the speaker's name as a prefix so the model can tell voice channel
// participants apart; the chat completion APIs have no portable per-message
// identity field.
func (m Message) Text() string {
	if m.Role == RoleUser && m.Name != "" {
		return m.Name + ": " + m.Content
	}
	return m.Content
}

// ChatRequest carries the full ordered conversation for one completion.
type ChatRequest struct {
	Messages []Message
}

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Chat sends the ordered conversation and returns the assistant's reply
	// text. Failures are classified into the package's sentinel errors where
	// possible.
	Chat(ctx context.Context, req ChatRequest) (string, error)
}
