package model

import (
	"strings"
	"time"

	"github.com/iboybrian/atitlan-vibes/internal/chat"
)

// RoomSource is the slice of the chat controller the room view reads.
type RoomSource interface {
	Messages() []chat.Message
	Message(id string) (chat.Message, bool)
	Reactions(messageID string) []chat.Group
	DisplayName(userID string) string
	IsMine(m chat.Message) bool
	UserID() string
}

// Line is one rendered message.
type Line struct {
	Index     int // 1-based, used by :react and :reply
	ID        string
	Sender    string
	Mine      bool
	Time      string
	Text      string
	Reply     *ReplyPreview
	Reactions []Chip
}

// ReplyPreview quotes the message a line replies to.
type ReplyPreview struct {
	Sender string
	Text   string
}

// Chip is one reaction group under a message.
type Chip struct {
	Emoji string
	Count int
	Mine  bool
}

const previewWidth = 48

// BuildLines renders the controller's room state. Replies to messages that
// are not loaded have no preview.
func BuildLines(src RoomSource, loc *time.Location) []Line {
	if loc == nil {
		loc = time.Local
	}
	uid := src.UserID()
	msgs := src.Messages()
	lines := make([]Line, len(msgs))
	for i, m := range msgs {
		l := Line{
			Index: i + 1,
			ID:    m.ID,
			Mine:  src.IsMine(m),
			Time:  m.CreatedAt.In(loc).Format("15:04"),
			Text:  m.Text,
		}
		if l.Mine {
			l.Sender = "You"
		} else {
			l.Sender = src.DisplayName(m.SenderID)
		}
		if m.ReplyToID != "" {
			if parent, ok := src.Message(m.ReplyToID); ok {
				l.Reply = &ReplyPreview{Sender: src.DisplayName(parent.SenderID), Text: Truncate(parent.Text, previewWidth)}
			}
		}
		for _, g := range src.Reactions(m.ID) {
			mine := false
			for _, u := range g.Users {
				if u == uid {
					mine = true
					break
				}
			}
			l.Reactions = append(l.Reactions, Chip{Emoji: g.Emoji, Count: g.Count, Mine: mine})
		}
		lines[i] = l
	}
	return lines
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
