package views

import (
	"strings"
	"testing"
	"time"

	"github.com/iboybrian/atitlan-vibes/internal/tui/model"
	"github.com/iboybrian/atitlan-vibes/internal/tui/ui"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"❤️", "❤"},
		{"👍🏽", "👍"},
		{"👨‍👩‍👧", "👨👩👧"},
		{"San Pedro 🌋", "San Pedro 🌋"},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderEmptyRoom(t *testing.T) {
	out := Render(nil, ui.DefaultTheme())
	if !strings.Contains(out, "No messages yet!") {
		t.Errorf("empty render = %q", out)
	}
}

func TestRenderLines(t *testing.T) {
	out := Render([]model.Line{
		{Index: 1, Sender: "Ana", Time: "10:00", Text: "[red]not a tag"},
		{Index: 2, Sender: "You", Mine: true, Time: "10:01", Text: "ok",
			Reply:     &model.ReplyPreview{Sender: "Ana", Text: "not a tag"},
			Reactions: []model.Chip{{Emoji: "👍", Count: 2, Mine: true}}},
	}, ui.DefaultTheme())

	for _, want := range []string{"Ana", "10:00", "[red[]not a tag", "│ Ana: not a tag", "👍 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "  1") > strings.Index(out, "  2") {
		t.Error("lines out of order")
	}
}

func TestStatusBarLine(t *testing.T) {
	sb := NewStatusBar(ui.DefaultTheme())
	sb.SetProfile("main", "ana")
	sb.SetState("READY")
	sb.SetSending(1)
	sb.SetFlash("send failed", model.Err)

	line := sb.line(time.Date(2026, 1, 1, 18, 45, 0, 0, time.UTC))
	for _, want := range []string{"main/ana", "READY", "sending 1", "18:45", "send failed"} {
		if !strings.Contains(line, want) {
			t.Errorf("status line missing %q: %s", want, line)
		}
	}
}
