// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the conversation the coordinator
// sends and to feed controlled replies without a live backend.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/provider/llm"
)

// ChatCall records a single invocation of Chat.
type ChatCall struct {
	// Req is the ChatRequest passed to Chat.
	Req llm.ChatRequest
}

// Provider is a mock implementation of llm.Provider.
// Set Reply and Err before use; inspect Calls afterwards.
type Provider struct {
	mu sync.Mutex

	// Reply is returned by Chat when Err is nil.
	Reply string

	// Err, if non-nil, is returned by Chat.
	Err error

	// Calls records every Chat invocation in order.
	Calls []ChatCall
}

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// Chat implements llm.Provider.
func (p *Provider) Chat(_ context.Context, req llm.ChatRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	p.Calls = append(p.Calls, ChatCall{Req: llm.ChatRequest{Messages: msgs}})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Reply, nil
}

// CallCount returns how many times Chat was called.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastRequest returns the most recent ChatRequest, or a zero value if Chat
// was never called.
func (p *Provider) LastRequest() llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return llm.ChatRequest{}
	}
	return p.Calls[len(p.Calls)-1].Req
}
