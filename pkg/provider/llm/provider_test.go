package llm_test

import (
	"testing"

	"github.com/MrWong99/parley/pkg/provider/llm"
)

func TestMessageText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  llm.Message
		want string
	}{
		{
			name: "named user turn carries the speaker",
			msg:  llm.Message{Role: llm.RoleUser, Name: "Alice", Content: "what time is it"},
			want: "Alice: what time is it",
		},
		{
			name: "anonymous user turn is unchanged",
			msg:  llm.Message{Role: llm.RoleUser, Content: "what time is it"},
			want: "what time is it",
		},
		{
			name: "system turn never gets a prefix",
			msg:  llm.Message{Role: llm.RoleSystem, Name: "Alice", Content: "be helpful"},
			want: "be helpful",
		},
		{
			name: "assistant turn never gets a prefix",
			msg:  llm.Message{Role: llm.RoleAssistant, Name: "Alice", Content: "it is noon"},
			want: "it is noon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.msg.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}
