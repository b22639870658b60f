package chat

import (
	"context"
	"strings"
)

// RoomStore acquires chat rooms. UpsertRoom is the store's atomic
// insert-or-return-existing keyed by scope.
type RoomStore interface {
	UpsertRoom(ctx context.Context, scope Scope, name string) (Room, error)
	RoomByScope(ctx context.Context, scope Scope) (Room, error)
}

// MessageStore reads and writes messages. Messages returns a chat's messages
// ascending by creation time. InsertMessage assigns ID and CreatedAt.
type MessageStore interface {
	Messages(ctx context.Context, chatID string) ([]Message, error)
	InsertMessage(ctx context.Context, m Message) (Message, error)
}

// ReactionStore reads and writes reactions. InsertReaction fails with
// ErrConflict when the tuple already exists.
type ReactionStore interface {
	Reactions(ctx context.Context, messageIDs []string) ([]Reaction, error)
	InsertReaction(ctx context.Context, r Reaction) (Reaction, error)
	DeleteReaction(ctx context.Context, id string) error
}

// IdentityStore batch-looks-up users. Unknown ids are absent from the result.
type IdentityStore interface {
	Identities(ctx context.Context, userIDs []string) ([]Identity, error)
}

// TownStore looks up towns. Town returns ErrNotFound for unknown ids.
type TownStore interface {
	Town(ctx context.Context, id string) (Town, error)
}

// Store is the full backing-store contract used by the controller.
type Store interface {
	RoomStore
	MessageStore
	ReactionStore
	IdentityStore
	TownStore
}

// FeedQuery selects which changes a subscription receives. Filter matches
// column values exactly; an empty Ops means every operation.
type FeedQuery struct {
	Table  string
	Filter map[string]string
	Ops    []Op
}

// Feed delivers live row-level changes, at least once.
type Feed interface {
	Subscribe(ctx context.Context, q FeedQuery) (Subscription, error)
}

// Subscription is a live feed registration. Events is closed when the
// subscription ends; Err then reports ErrSubscriptionDropped if it ended
// for any reason other than Close.
type Subscription interface {
	Events() <-chan Change
	Err() error
	Close()
}

// IdentityProvider supplies the current user's id.
type IdentityProvider interface {
	UserID(ctx context.Context) (string, error)
}

// StaticIdentity is an IdentityProvider with a fixed user id. The empty id
// is unauthenticated.
type StaticIdentity string

// UserID implements IdentityProvider.
func (s StaticIdentity) UserID(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}
