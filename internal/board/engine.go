// Package board is the daemon side of the shared store: every mutation is
// committed to SQLite first and then published on the bus as a change event.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/metrics"
	"github.com/iboybrian/atitlan-vibes/internal/store"
)

// ErrInvalid is returned for rows that fail validation before reaching the store.
var ErrInvalid = errors.New("invalid row")

// Table names.
const (
	TableChats     = "chats"
	TableMessages  = "messages"
	TableReactions = "message_reactions"
	TableUsers     = "users"
	TableTowns     = "towns"
)

// Change operations.
const (
	OpInsert = "insert"
	OpDelete = "delete"
	OpUpdate = "update"
)

// Change is the payload of every "change.*" bus event. Row is one of
// *store.Chat, *store.Message, *store.Reaction, *store.User or *store.Town.
type Change struct {
	Table string
	Op    string
	Row   any
}

// Engine performs validated writes and publishes the resulting changes.
type Engine struct {
	db      *store.DB
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
	cancel  context.CancelFunc
	now     func() time.Time
}

// NewEngine creates a new board engine.
func NewEngine(db *store.DB, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:      db,
		bus:     b,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Start watches the change feed and keeps the feed metrics current.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	sub := e.bus.Subscribe(bus.ChangePrefix, 1024)

	go func() {
		defer func() { sub.Close() }()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case evt := <-sub.Events():
				if c, ok := evt.Payload.(Change); ok {
					e.metrics.ObserveChange(c.Table, c.Op)
				}
			case <-sub.Dropped():
				e.logger.Warn("change audit fell behind, resubscribing")
				sub.Close()
				sub = e.bus.Subscribe(bus.ChangePrefix, 1024)
			case <-ticker.C:
				e.metrics.SetSubscribers(e.bus.Subscribers() - 1)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) publish(table, op string, row any) {
	e.bus.Publish(bus.Event{
		Kind:      bus.ChangeKind(table, op),
		Timestamp: e.now(),
		Payload:   Change{Table: table, Op: op, Row: row},
	})
}

func (e *Engine) observe(table, op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		result = "conflict"
	case errors.Is(err, ErrInvalid):
		result = "invalid"
	case errors.Is(err, store.ErrMissingReference):
		result = "not_found"
	default:
		result = "error"
	}
	e.metrics.ObserveOp(table, op, result)
}

// UpsertChat returns the chat for (townID, typ), creating it with name if
// absent. A change event is published only when the row was created here.
func (e *Engine) UpsertChat(ctx context.Context, townID, typ, name string) (chat *store.Chat, err error) {
	defer func() { e.observe(TableChats, "upsert", err) }()

	townID, typ = strings.TrimSpace(townID), strings.TrimSpace(typ)
	if typ == "" {
		typ = "town"
	}
	if townID == "" {
		return nil, fmt.Errorf("%w: town_id is required", ErrInvalid)
	}
	candidate := &store.Chat{
		ID:        uuid.NewString(),
		TownID:    townID,
		Type:      typ,
		Name:      name,
		CreatedAt: e.now().UnixMilli(),
	}
	chat, err = e.db.UpsertChat(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("upsert chat: %w", err)
	}
	if chat.ID == candidate.ID {
		e.logger.Info("chat room created", zap.String("chat_id", chat.ID), zap.String("town_id", townID), zap.String("type", typ))
		e.publish(TableChats, OpInsert, chat)
	}
	return chat, nil
}

// InsertMessage validates and stores a message, assigning its id and
// creation time.
func (e *Engine) InsertMessage(ctx context.Context, m *store.Message) (out *store.Message, err error) {
	defer func() { e.observe(TableMessages, OpInsert, err) }()

	msg := *m
	msg.Text = strings.TrimSpace(msg.Text)
	switch {
	case msg.ChatID == "":
		return nil, fmt.Errorf("%w: chat_id is required", ErrInvalid)
	case msg.SenderID == "":
		return nil, fmt.Errorf("%w: sender_id is required", ErrInvalid)
	case msg.Text == "":
		return nil, fmt.Errorf("%w: text is empty", ErrInvalid)
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = e.now().UnixMilli()

	out, err = e.db.InsertMessage(ctx, &msg)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	e.publish(TableMessages, OpInsert, out)
	return out, nil
}

// InsertReaction validates and stores a reaction. A duplicate tuple fails
// with store.ErrConflict.
func (e *Engine) InsertReaction(ctx context.Context, r *store.Reaction) (out *store.Reaction, err error) {
	defer func() { e.observe(TableReactions, OpInsert, err) }()

	rec := *r
	switch {
	case rec.MessageID == "":
		return nil, fmt.Errorf("%w: message_id is required", ErrInvalid)
	case rec.UserID == "":
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalid)
	case strings.TrimSpace(rec.Emoji) == "":
		return nil, fmt.Errorf("%w: emoji is required", ErrInvalid)
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = e.now().UnixMilli()

	out, err = e.db.InsertReaction(ctx, &rec)
	if err != nil {
		return nil, fmt.Errorf("insert reaction: %w", err)
	}
	e.publish(TableReactions, OpInsert, out)
	return out, nil
}

// DeleteReaction removes a reaction by id. It returns nil, nil when no row
// matched; nothing is published in that case.
func (e *Engine) DeleteReaction(ctx context.Context, id string) (out *store.Reaction, err error) {
	defer func() { e.observe(TableReactions, OpDelete, err) }()

	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalid)
	}
	out, err = e.db.DeleteReaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete reaction: %w", err)
	}
	if out != nil {
		e.publish(TableReactions, OpDelete, out)
	}
	return out, nil
}

// UpsertTown creates or renames a town.
func (e *Engine) UpsertTown(ctx context.Context, t *store.Town) (err error) {
	defer func() { e.observe(TableTowns, "upsert", err) }()

	if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: town id and name are required", ErrInvalid)
	}
	if err := e.db.UpsertTown(ctx, t); err != nil {
		return fmt.Errorf("upsert town: %w", err)
	}
	e.publish(TableTowns, OpUpdate, t)
	return nil
}

// UpsertUser creates or updates an identity record.
func (e *Engine) UpsertUser(ctx context.Context, u *store.User) (err error) {
	defer func() { e.observe(TableUsers, "upsert", err) }()

	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalid)
	}
	if err := e.db.UpsertUser(ctx, u); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	e.publish(TableUsers, OpUpdate, u)
	return nil
}

// DB returns the underlying store for reads.
func (e *Engine) DB() *store.DB {
	return e.db
}

// Subscribe opens a bus subscription for changes to table.
func (e *Engine) Subscribe(table string, bufSize int) *bus.Subscription {
	return e.bus.Subscribe(bus.ChangePrefix+table+".", bufSize)
}

// Dropped records a subscription cut off for falling behind.
func (e *Engine) Dropped(table string) {
	e.logger.Warn("live subscription dropped", zap.String("table", table))
	e.metrics.FeedDropped()
}
