package relay_test

import (
	"fmt"
	"testing"

	"github.com/MrWong99/parley/internal/relay"
	"github.com/MrWong99/parley/pkg/provider/llm"
)

func TestMemory_SystemTurnFirst(t *testing.T) {
	t.Parallel()
	m := relay.NewMemory("be helpful", 5)
	m.AddUser("alice", "hello there")

	snap := m.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snap))
	}
	if snap[0].Role != llm.RoleSystem || snap[0].Content != "be helpful" {
		t.Errorf("first turn = %+v, want pinned system turn", snap[0])
	}
	if snap[1].Role != llm.RoleUser || snap[1].Name != "alice" {
		t.Errorf("second turn = %+v, want alice's user turn", snap[1])
	}
}

func TestMemory_CapEvictsOldestFirst(t *testing.T) {
	t.Parallel()
	m := relay.NewMemory("persona", 10)
	for i := 0; i < 15; i++ {
		m.AddUser("alice", fmt.Sprintf("message %d", i))
	}

	if got := m.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10", got)
	}
	snap := m.Snapshot()
	if len(snap) != 11 {
		t.Fatalf("snapshot length = %d, want 11 (system + 10)", len(snap))
	}
	if snap[0].Role != llm.RoleSystem {
		t.Error("system turn was evicted")
	}
	if snap[1].Content != "message 5" {
		t.Errorf("oldest retained turn = %q, want %q", snap[1].Content, "message 5")
	}
	if snap[10].Content != "message 14" {
		t.Errorf("newest turn = %q, want %q", snap[10].Content, "message 14")
	}
}

func TestMemory_AddUserIgnoresBlank(t *testing.T) {
	t.Parallel()
	m := relay.NewMemory("persona", 5)
	m.AddUser("alice", "")
	m.AddUser("alice", "   \t\n")
	if got := m.Len(); got != 0 {
		t.Errorf("Len() = %d after blank adds, want 0", got)
	}
}

func TestMemory_ResetKeepsSystemTurn(t *testing.T) {
	t.Parallel()
	m := relay.NewMemory("persona", 5)
	m.AddUser("alice", "hi bot")
	m.AddAssistant("hello alice")
	m.Reset()

	if got := m.Len(); got != 0 {
		t.Errorf("Len() = %d after reset, want 0", got)
	}
	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].Role != llm.RoleSystem {
		t.Errorf("snapshot after reset = %+v, want only the system turn", snap)
	}
}

func TestMemory_InterleavedRoles(t *testing.T) {
	t.Parallel()
	m := relay.NewMemory("persona", 4)
	m.AddUser("alice", "one")
	m.AddAssistant("two")
	m.AddUser("bob", "three")
	m.AddAssistant("four")
	m.AddUser("alice", "five")

	snap := m.Snapshot()
	want := []string{"two", "three", "four", "five"}
	for i, w := range want {
		if snap[i+1].Content != w {
			t.Errorf("turn %d = %q, want %q", i+1, snap[i+1].Content, w)
		}
	}
}
