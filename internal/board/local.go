package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/chat"
	"github.com/iboybrian/atitlan-vibes/internal/store"
)

// Local serves the chat core in-process, straight from the engine.
type Local struct {
	engine  *Engine
	bufSize int
}

var (
	_ chat.Store = (*Local)(nil)
	_ chat.Feed  = (*Local)(nil)
)

// NewLocal creates an in-process backend. bufSize is the per-subscription
// buffer; a subscriber further behind than that is dropped.
func NewLocal(e *Engine, bufSize int) *Local {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Local{engine: e, bufSize: bufSize}
}

// ChatError maps engine and store errors onto the chat sentinels.
func ChatError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", chat.ErrConflict, err)
	case errors.Is(err, store.ErrMissingReference):
		return fmt.Errorf("%w: %w", chat.ErrNotFound, err)
	}
	return err
}

// ToChatMessage converts a stored message.
func ToChatMessage(m *store.Message) chat.Message {
	return chat.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		ReplyToID: m.ReplyToID,
		CreatedAt: time.UnixMilli(m.CreatedAt),
	}
}

// ToChatReaction converts a stored reaction.
func ToChatReaction(r *store.Reaction) chat.Reaction {
	return chat.Reaction{ID: r.ID, MessageID: r.MessageID, UserID: r.UserID, Emoji: r.Emoji}
}

func toRoom(c *store.Chat) chat.Room {
	return chat.Room{ID: c.ID, Scope: chat.Scope{TownID: c.TownID, Type: c.Type}, Name: c.Name}
}

// UpsertRoom implements chat.RoomStore.
func (l *Local) UpsertRoom(ctx context.Context, scope chat.Scope, name string) (chat.Room, error) {
	c, err := l.engine.UpsertChat(ctx, scope.TownID, scope.Type, name)
	if err != nil {
		return chat.Room{}, ChatError(err)
	}
	return toRoom(c), nil
}

// RoomByScope implements chat.RoomStore.
func (l *Local) RoomByScope(ctx context.Context, scope chat.Scope) (chat.Room, error) {
	c, err := l.engine.DB().GetChatByScope(ctx, scope.TownID, scope.Type)
	if err != nil {
		return chat.Room{}, err
	}
	if c == nil {
		return chat.Room{}, fmt.Errorf("%w: room %s", chat.ErrNotFound, scope.Key())
	}
	return toRoom(c), nil
}

// Messages implements chat.MessageStore.
func (l *Local) Messages(ctx context.Context, chatID string) ([]chat.Message, error) {
	rows, err := l.engine.DB().ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, len(rows))
	for i := range rows {
		out[i] = ToChatMessage(&rows[i])
	}
	return out, nil
}

// InsertMessage implements chat.MessageStore.
func (l *Local) InsertMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	row, err := l.engine.InsertMessage(ctx, &store.Message{
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		ReplyToID: m.ReplyToID,
	})
	if err != nil {
		return chat.Message{}, ChatError(err)
	}
	return ToChatMessage(row), nil
}

// Reactions implements chat.ReactionStore.
func (l *Local) Reactions(ctx context.Context, messageIDs []string) ([]chat.Reaction, error) {
	rows, err := l.engine.DB().ListReactions(ctx, messageIDs)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Reaction, len(rows))
	for i := range rows {
		out[i] = ToChatReaction(&rows[i])
	}
	return out, nil
}

// InsertReaction implements chat.ReactionStore.
func (l *Local) InsertReaction(ctx context.Context, r chat.Reaction) (chat.Reaction, error) {
	row, err := l.engine.InsertReaction(ctx, &store.Reaction{MessageID: r.MessageID, UserID: r.UserID, Emoji: r.Emoji})
	if err != nil {
		return chat.Reaction{}, ChatError(err)
	}
	return ToChatReaction(row), nil
}

// DeleteReaction implements chat.ReactionStore.
func (l *Local) DeleteReaction(ctx context.Context, id string) error {
	row, err := l.engine.DeleteReaction(ctx, id)
	if err != nil {
		return ChatError(err)
	}
	if row == nil {
		return fmt.Errorf("%w: reaction %s", chat.ErrNotFound, id)
	}
	return nil
}

// Identities implements chat.IdentityStore.
func (l *Local) Identities(ctx context.Context, userIDs []string) ([]chat.Identity, error) {
	users, err := l.engine.DB().UsersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Identity, len(users))
	for i, u := range users {
		out[i] = chat.Identity{UserID: u.ID, Name: u.Name, Email: u.Email}
	}
	return out, nil
}

// Town implements chat.TownStore.
func (l *Local) Town(ctx context.Context, id string) (chat.Town, error) {
	t, err := l.engine.DB().GetTown(ctx, id)
	if err != nil {
		return chat.Town{}, err
	}
	if t == nil {
		return chat.Town{}, fmt.Errorf("%w: town %s", chat.ErrNotFound, id)
	}
	return chat.Town{ID: t.ID, Name: t.Name, Description: t.Description}, nil
}

// Subscribe implements chat.Feed.
func (l *Local) Subscribe(_ context.Context, q chat.FeedQuery) (chat.Subscription, error) {
	ops := make([]string, len(q.Ops))
	for i, op := range q.Ops {
		ops[i] = string(op)
	}
	s := &localSub{
		table:  q.Table,
		filter: q.Filter,
		ops:    ops,
		bsub:   l.engine.Subscribe(q.Table, l.bufSize),
		engine: l.engine,
		ch:     make(chan chat.Change, l.bufSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

type localSub struct {
	table  string
	filter map[string]string
	ops    []string
	engine *Engine

	bsub *bus.Subscription
	ch   chan chat.Change
	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func (s *localSub) run() {
	defer close(s.done)
	defer close(s.ch)
	defer s.bsub.Close()
	for {
		select {
		case <-s.stop:
			return
		case <-s.bsub.Dropped():
			s.engine.Dropped(s.table)
			s.mu.Lock()
			s.err = fmt.Errorf("%w: %s feed overflowed", chat.ErrSubscriptionDropped, s.table)
			s.mu.Unlock()
			return
		case evt := <-s.bsub.Events():
			c, ok := evt.Payload.(Change)
			if !ok || !Matches(c, s.filter, s.ops) {
				continue
			}
			out, ok := ToChatChange(c)
			if !ok {
				continue
			}
			select {
			case s.ch <- out:
			case <-s.stop:
				return
			}
		}
	}
}

// ToChatChange converts a board change into the chat core's form.
func ToChatChange(c Change) (chat.Change, bool) {
	out := chat.Change{Table: c.Table, Op: chat.Op(c.Op)}
	switch r := c.Row.(type) {
	case *store.Message:
		m := ToChatMessage(r)
		out.Message = &m
	case *store.Reaction:
		rr := ToChatReaction(r)
		out.Reaction = &rr
	default:
		return chat.Change{}, false
	}
	return out, true
}

func (s *localSub) Events() <-chan chat.Change { return s.ch }

func (s *localSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *localSub) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
