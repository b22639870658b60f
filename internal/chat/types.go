package chat

import (
	"fmt"
	"strings"
	"time"
)

// DefaultRoomType is the room type used when a scope names only a town.
const DefaultRoomType = "town"

// FallbackName is shown for users with neither a name nor an email.
const FallbackName = "Traveler"

// EmojiOptions is the reaction palette offered by clients.
var EmojiOptions = []string{"👍", "❤️", "😂", "😮", "😢", "🔥", "🎉", "👏"}

// Scope identifies the one room a town holds for a room type.
type Scope struct {
	TownID string
	Type   string
}

// ParseScope parses "<townId>" or "<townId>:<roomType>".
func ParseScope(s string) (Scope, error) {
	s = strings.TrimSpace(s)
	sc := Scope{TownID: s, Type: DefaultRoomType}
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		sc.TownID, sc.Type = s[:i], s[i+1:]
	}
	if !sc.Valid() {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	return sc, nil
}

// Key returns the "<townId>:<roomType>" form.
func (s Scope) Key() string {
	return s.TownID + ":" + s.Type
}

// Valid reports whether both parts are present.
func (s Scope) Valid() bool {
	return s.TownID != "" && s.Type != ""
}

func (s Scope) String() string { return s.Key() }

// Town is a lakeside town.
type Town struct {
	ID          string
	Name        string
	Description string
}

// RoomName returns the display name for a town's chat room.
func RoomName(t *Town) string {
	if t == nil || strings.TrimSpace(t.Name) == "" {
		return "Town Chat"
	}
	return strings.TrimSpace(t.Name) + " Chat"
}

// Room is a resolved chat room.
type Room struct {
	ID    string
	Scope Scope
	Name  string
}

// Message is a chat message. ChatID never changes after creation.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Text      string
	ReplyToID string
	CreatedAt time.Time
}

// Reaction is one (message, user, emoji) tuple.
type Reaction struct {
	ID        string
	MessageID string
	UserID    string
	Emoji     string
}

// Group is every user who reacted to a message with one emoji.
type Group struct {
	Emoji string
	Count int
	Users []string
}

// Identity is what the identity store knows about a user. Placeholder marks
// a user that was looked up and not found.
type Identity struct {
	UserID      string
	Name        string
	Email       string
	Placeholder bool
}

// DisplayName returns the trimmed name, else the local part of the email,
// else FallbackName.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(strings.TrimSpace(i.Email), "@"); local != "" {
		return local
	}
	return FallbackName
}

// Table names of the backing store.
const (
	TableChats     = "chats"
	TableMessages  = "messages"
	TableReactions = "message_reactions"
	TableUsers     = "users"
	TableTowns     = "towns"
)

// Op is a row-level change operation.
type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Change is one row-level event from the live feed. Exactly one of Message
// and Reaction is set, matching Table.
type Change struct {
	Table    string
	Op       Op
	Message  *Message
	Reaction *Reaction
}
