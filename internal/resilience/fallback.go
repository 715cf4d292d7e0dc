// Package resilience provides failure-path behaviour for the relay: fixed
// spoken fallback replies per LLM failure class, and voice transport
// reconnection with exponential backoff.
package resilience

import (
	"errors"

	"github.com/MrWong99/parley/pkg/provider/llm"
)

// Spoken fallback sentences, one per LLM failure class. Distinct wording
// per class so an operator can diagnose the failure from transcripts alone.
const (
	replyUnreachable   = "Sorry, I can't reach my language model right now. Please try again in a moment."
	replyTimeout       = "Sorry, my language model took too long to answer. Please try again."
	replyModelNotFound = "Sorry, my configured language model doesn't seem to exist. Someone should check my setup."
	replyBadRequest    = "Sorry, I couldn't make sense of that request to my language model."
	replyGeneric       = "Sorry, something went wrong while I was thinking. Please try again."
)

// FallbackReply maps an LLM error to a user-legible spoken sentence. The
// relay plays this instead of propagating the raw backend error, so the bot
// always produces audible feedback that something failed.
func FallbackReply(err error) string {
	switch {
	case errors.Is(err, llm.ErrUnreachable):
		return replyUnreachable
	case errors.Is(err, llm.ErrTimeout):
		return replyTimeout
	case errors.Is(err, llm.ErrModelNotFound):
		return replyModelNotFound
	case errors.Is(err, llm.ErrBadRequest):
		return replyBadRequest
	default:
		return replyGeneric
	}
}
