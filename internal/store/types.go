package store

// Town is a lakeside town. Every town has at most one chat per room type.
type Town struct {
	ID          string
	Name        string
	Description string
}

// User is an identity record served to chat clients.
type User struct {
	ID    string
	Name  string
	Email string
}

// Chat is a chat room row. (TownID, Type) is unique.
type Chat struct {
	ID        string
	TownID    string
	Type      string
	Name      string
	CreatedAt int64
}

// Message is a chat message. CreatedAt is unix milliseconds.
type Message struct {
	Seq       int64
	ID        string
	ChatID    string
	SenderID  string
	Text      string
	ReplyToID string
	CreatedAt int64
}

// Reaction is a single (message, user, emoji) tuple.
type Reaction struct {
	Seq       int64
	ID        string
	MessageID string
	UserID    string
	Emoji     string
	CreatedAt int64
}
