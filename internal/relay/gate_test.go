package relay_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/MrWong99/parley/internal/relay"
)

func defaultGateConfig() relay.GateConfig {
	return relay.GateConfig{
		MinChars:           3,
		LongUtteranceChars: 20,
		AcceptLongProb:     0.8,
		AcceptShortProb:    0.4,
		BotNames:           []string{"parley"},
	}
}

func TestGate_RejectsShortText(t *testing.T) {
	t.Parallel()
	g := relay.NewGate(defaultGateConfig())
	for _, in := range []string{"", "hi", "a", "  x  "} {
		if g.ShouldRespond(in) {
			t.Errorf("ShouldRespond(%q) = true, want reject (too short)", in)
		}
	}
}

func TestGate_RejectsFillers(t *testing.T) {
	t.Parallel()
	g := relay.NewGate(defaultGateConfig())
	for _, in := range []string{"yeah", "okay", "Umm", "hmm.", "YEAH!"} {
		if g.ShouldRespond(in) {
			t.Errorf("ShouldRespond(%q) = true, want reject (filler)", in)
		}
	}
}

func TestGate_ExtraFillers(t *testing.T) {
	t.Parallel()
	cfg := defaultGateConfig()
	cfg.ExtraFillers = []string{"whatever"}
	g := relay.NewGate(cfg)
	if g.ShouldRespond("whatever") {
		t.Error("ShouldRespond(\"whatever\") = true, want reject (configured filler)")
	}
}

func TestGate_AcceptsInterrogatives(t *testing.T) {
	t.Parallel()
	g := relay.NewGate(defaultGateConfig())
	for _, in := range []string{
		"what time is it",
		"is that true?",
		"How does this work",
		"could you repeat that",
		"do you know the answer",
	} {
		if !g.ShouldRespond(in) {
			t.Errorf("ShouldRespond(%q) = false, want accept (interrogative)", in)
		}
	}
}

func TestGate_AcceptsDirectAddress(t *testing.T) {
	t.Parallel()
	g := relay.NewGate(defaultGateConfig())
	for _, in := range []string{
		"hey everyone listen up",
		"hello there friend",
		"parley play some music",
		"parlay turn it down", // fuzzy match against the configured name
	} {
		if !g.ShouldRespond(in) {
			t.Errorf("ShouldRespond(%q) = false, want accept (direct address)", in)
		}
	}
}

func TestGate_ProbabilisticLongUtterance(t *testing.T) {
	t.Parallel()
	g := relay.NewGate(defaultGateConfig(), relay.WithRandSource(rand.NewSource(42)))

	// 50-char declarative sentence matching no unconditional rule.
	in := strings.Repeat("the weather stayed gray ", 2) + "all"
	if len(in) < 50 {
		t.Fatalf("test input too short: %d", len(in))
	}

	accepted := 0
	const runs = 1000
	for i := 0; i < runs; i++ {
		if g.ShouldRespond(in) {
			accepted++
		}
	}
	rate := float64(accepted) / runs
	if rate < 0.75 || rate > 0.85 {
		t.Errorf("long-utterance acceptance rate = %.3f, want ~0.80", rate)
	}
}

func TestGate_ProbabilisticShortUtterance(t *testing.T) {
	t.Parallel()
	g := relay.NewGate(defaultGateConfig(), relay.WithRandSource(rand.NewSource(7)))

	accepted := 0
	const runs = 1000
	for i := 0; i < runs; i++ {
		if g.ShouldRespond("nice weather") {
			accepted++
		}
	}
	rate := float64(accepted) / runs
	if rate < 0.35 || rate > 0.45 {
		t.Errorf("short-utterance acceptance rate = %.3f, want ~0.40", rate)
	}
}

func TestGate_AlwaysRespondBypass(t *testing.T) {
	t.Parallel()
	cfg := defaultGateConfig()
	cfg.AlwaysRespond = true
	g := relay.NewGate(cfg)

	for _, in := range []string{"hi", "yeah", "mumble"} {
		if !g.ShouldRespond(in) {
			t.Errorf("ShouldRespond(%q) = false with always_respond, want accept", in)
		}
	}
	if g.ShouldRespond("   ") {
		t.Error("ShouldRespond(blank) = true, want reject even with always_respond")
	}
}
