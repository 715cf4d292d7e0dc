package relay

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// defaultFillers are transcripts that never warrant a reply. The gate
// compares against them after trimming and case-folding.
var defaultFillers = []string{
	"um", "uh", "uhh", "umm", "hmm", "hm", "mhm", "mm",
	"ok", "okay", "yeah", "yep", "yes", "no", "nah", "sure",
	"oh", "ah", "huh", "right", "lol", "haha",
}

// interrogativeStarts are leading words that mark a question or request.
var interrogativeStarts = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"can", "could", "would", "should", "will", "is", "are",
	"do you", "are you", "tell me", "explain",
}

// addressTokens are generic ways of addressing the bot, checked in addition
// to the configured bot names.
var addressTokens = []string{"hey", "hi", "hello", "ai", "assistant", "bot"}

// addressFuzzyThreshold is the JaroWinkler score above which a word counts
// as one of the configured bot names. Catches STT mangling of the name.
const addressFuzzyThreshold = 0.88

// GateConfig holds the tunable parts of the response policy.
type GateConfig struct {
	// MinChars rejects transcripts shorter than this after trimming.
	MinChars int

	// LongUtteranceChars is the length at which AcceptLongProb applies
	// instead of AcceptShortProb.
	LongUtteranceChars int

	// AcceptLongProb and AcceptShortProb are the fall-through acceptance
	// probabilities for transcripts matched by no other rule.
	AcceptLongProb  float64
	AcceptShortProb float64

	// AlwaysRespond accepts every non-empty transcript, bypassing the
	// policy. Off by default.
	AlwaysRespond bool

	// BotNames are names the bot answers to; matched fuzzily for direct
	// address.
	BotNames []string

	// ExtraFillers extends the built-in filler set.
	ExtraFillers []string
}

// Gate decides whether a transcribed utterance warrants a generated reply.
// Safe for concurrent use.
type Gate struct {
	cfg      GateConfig
	fillers  map[string]struct{}
	botNames []string

	mu   sync.Mutex
	rand *rand.Rand
}

// NewGate creates a Gate from cfg. A nil random source seeds from the rand
// package default; tests inject a deterministic source via WithRandSource.
func NewGate(cfg GateConfig, opts ...GateOption) *Gate {
	fillers := make(map[string]struct{}, len(defaultFillers)+len(cfg.ExtraFillers))
	for _, f := range defaultFillers {
		fillers[f] = struct{}{}
	}
	for _, f := range cfg.ExtraFillers {
		fillers[strings.ToLower(strings.TrimSpace(f))] = struct{}{}
	}
	names := make([]string, 0, len(cfg.BotNames))
	for _, n := range cfg.BotNames {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			names = append(names, n)
		}
	}
	g := &Gate{
		cfg:      cfg,
		fillers:  fillers,
		botNames: names,
		rand:     rand.New(rand.NewSource(rand.Int63())),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GateOption configures a Gate beyond its GateConfig.
type GateOption func(*Gate)

// WithRandSource replaces the gate's random source. Used by tests to make
// the probabilistic branch deterministic.
func WithRandSource(src rand.Source) GateOption {
	return func(g *Gate) {
		g.rand = rand.New(src)
	}
}

// ShouldRespond reports whether the transcript warrants a reply.
//
// Order of evaluation: empty and too-short transcripts are rejected, then
// exact filler matches. Questions and direct address are accepted
// unconditionally. Everything else falls through to the probabilistic
// policy.
func (g *Gate) ShouldRespond(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if g.cfg.AlwaysRespond {
		return true
	}
	if len(trimmed) < g.cfg.MinChars {
		return false
	}

	lower := strings.ToLower(trimmed)
	folded := strings.TrimRight(lower, ".!?,")
	if _, ok := g.fillers[folded]; ok {
		return false
	}

	if g.isInterrogative(lower) {
		return true
	}
	if g.isDirectAddress(lower) {
		return true
	}

	prob := g.cfg.AcceptShortProb
	if len(trimmed) >= g.cfg.LongUtteranceChars {
		prob = g.cfg.AcceptLongProb
	}
	g.mu.Lock()
	roll := g.rand.Float64()
	g.mu.Unlock()
	return roll < prob
}

func (g *Gate) isInterrogative(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	for _, w := range interrogativeStarts {
		if strings.HasPrefix(lower, w+" ") || lower == w {
			return true
		}
	}
	return false
}

func (g *Gate) isDirectAddress(lower string) bool {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	for _, w := range words {
		for _, tok := range addressTokens {
			if w == tok {
				return true
			}
		}
		for _, name := range g.botNames {
			if w == name {
				return true
			}
			if matchr.JaroWinkler(w, name, false) >= addressFuzzyThreshold {
				return true
			}
		}
	}
	return false
}
