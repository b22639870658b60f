package model

import (
	"testing"
	"time"

	"github.com/iboybrian/atitlan-vibes/internal/chat"
)

type stubRoom struct {
	msgs      []chat.Message
	reactions map[string][]chat.Group
	names     map[string]string
	uid       string
}

func (s *stubRoom) Messages() []chat.Message { return s.msgs }

func (s *stubRoom) Message(id string) (chat.Message, bool) {
	for _, m := range s.msgs {
		if m.ID == id {
			return m, true
		}
	}
	return chat.Message{}, false
}

func (s *stubRoom) Reactions(id string) []chat.Group { return s.reactions[id] }

func (s *stubRoom) DisplayName(uid string) string {
	if n, ok := s.names[uid]; ok {
		return n
	}
	return chat.FallbackName
}

func (s *stubRoom) IsMine(m chat.Message) bool { return m.SenderID == s.uid }
func (s *stubRoom) UserID() string             { return s.uid }

func TestBuildLines(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	src := &stubRoom{
		uid:   "me",
		names: map[string]string{"ana": "Ana"},
		msgs: []chat.Message{
			{ID: "m1", SenderID: "ana", Text: "who is going to the market\nin Sololá?", CreatedAt: at},
			{ID: "m2", SenderID: "me", Text: "me!", ReplyToID: "m1", CreatedAt: at.Add(time.Minute)},
			{ID: "m3", SenderID: "ghost", Text: "hi", ReplyToID: "gone", CreatedAt: at.Add(2 * time.Minute)},
		},
		reactions: map[string][]chat.Group{
			"m1": {{Emoji: "👍", Count: 2, Users: []string{"ana", "me"}}, {Emoji: "🔥", Count: 1, Users: []string{"ana"}}},
		},
	}

	lines := BuildLines(src, time.UTC)
	if len(lines) != 3 {
		t.Fatalf("len = %d, want 3", len(lines))
	}
	if lines[0].Index != 1 || lines[0].Sender != "Ana" || lines[0].Time != "09:30" || lines[0].Mine {
		t.Errorf("line 1 = %+v", lines[0])
	}
	if len(lines[0].Reactions) != 2 || !lines[0].Reactions[0].Mine || lines[0].Reactions[1].Mine {
		t.Errorf("chips = %+v", lines[0].Reactions)
	}
	if lines[1].Sender != "You" || !lines[1].Mine {
		t.Errorf("line 2 = %+v", lines[1])
	}
	if lines[1].Reply == nil || lines[1].Reply.Sender != "Ana" || lines[1].Reply.Text != "who is going to the market in Sololá?" {
		t.Errorf("reply preview = %+v", lines[1].Reply)
	}
	if lines[2].Sender != chat.FallbackName || lines[2].Reply != nil {
		t.Errorf("line 3 = %+v", lines[2])
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"lancha a San Marcos", 8, "lancha …"},
		{"  many   spaces\n", 20, "many spaces"},
		{"ñandú", 3, "ña…"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
