package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/status"
)

// Bus event kinds published by the controller. State changes are published
// by the state machine as status.EventStateChanged.
const (
	EventMessageAppended    = "chat.message_appended"
	EventMessagesLoaded     = "chat.messages_loaded"
	EventReactionsRefreshed = "chat.reactions_refreshed"
	EventError              = "chat.error"
)

// Options configures a Controller.
type Options struct {
	Store    Store
	Feed     Feed
	Identity IdentityProvider
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// Controller runs one chat room at a time: open, send, react, leave.
type Controller struct {
	store    Store
	feed     Feed
	identity IdentityProvider
	bus      *bus.Bus
	logger   *zap.Logger

	machine    *status.Machine
	identities *IdentityCache

	// life serializes Open and Leave.
	life sync.Mutex

	mu         sync.Mutex
	room       *Room
	userID     string
	stream     *MessageStream
	reactions  *ReactionAggregator
	runCancel  context.CancelFunc
	initCancel context.CancelFunc
	sending    int
	draft      string
	replyTo    string
}

// NewController creates a controller in the Unauthenticated state.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:      opts.Store,
		feed:       opts.Feed,
		identity:   opts.Identity,
		bus:        opts.Bus,
		logger:     logger,
		machine:    status.NewMachine(opts.Bus),
		identities: NewIdentityCache(opts.Store, logger),
	}
}

// Open resolves the room for scope and starts its live feeds.
//
// A missing user id leaves the controller Unauthenticated. A failed room
// acquisition moves it to Unavailable. A failed history load still ends in
// Ready with an empty list and returns an error wrapping ErrLoadFailed.
func (c *Controller) Open(ctx context.Context, scope Scope) error {
	uid, err := c.identity.UserID(ctx)
	if err != nil || uid == "" {
		if c.machine.Current() == status.Left {
			_ = c.machine.Transition(status.Unauthenticated)
		}
		if err == nil || !errors.Is(err, ErrUnauthenticated) {
			err = errors.Join(ErrUnauthenticated, err)
		}
		return c.report(err)
	}
	if !scope.Valid() {
		return c.report(fmt.Errorf("%w: %q", ErrInvalidScope, scope.Key()))
	}

	if err := c.machine.Transition(status.Initializing); err != nil {
		return fmt.Errorf("%w: %w", ErrAlreadyOpen, err)
	}

	c.life.Lock()
	defer c.life.Unlock()

	if c.machine.Current() != status.Initializing {
		return fmt.Errorf("%w: room left while initializing", ErrNotReady)
	}

	initCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.initCancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.initCancel = nil
		c.mu.Unlock()
	}()

	logger := c.logger.With(zap.String("scope", scope.Key()), zap.String("user_id", uid))

	var town *Town
	if t, err := c.store.Town(initCtx, scope.TownID); err == nil {
		town = &t
	} else if !errors.Is(err, ErrNotFound) {
		logger.Warn("town lookup failed, using generic room name", zap.Error(err))
	}

	room, err := NewResolver(c.store, logger).Acquire(initCtx, scope, RoomName(town))
	if err != nil {
		_ = c.machine.Transition(status.Unavailable)
		return c.report(err)
	}
	logger = logger.With(zap.String("chat_id", room.ID))

	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	stream := NewMessageStream(room.ID, c.store, c.feed, logger)
	reactions := NewReactionAggregator(c.store, c.feed, stream.IDs, logger)
	stream.OnAppend(func(m Message) { c.onMessage(runCtx, reactions, m) })
	stream.OnDropped(func(err error) { _ = c.report(err) })
	reactions.OnRefresh(func() { c.publish(EventReactionsRefreshed, room.ID) })
	reactions.OnError(func(err error) { _ = c.report(err) })

	c.mu.Lock()
	c.room = &room
	c.userID = uid
	c.stream = stream
	c.reactions = reactions
	c.runCancel = runCancel
	c.mu.Unlock()

	if err := c.machine.Transition(status.Ready); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	logger.Info("chat room ready", zap.String("name", room.Name))

	var errs []error
	if err := stream.Start(runCtx); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrLoadFailed, err))
	}
	if err := reactions.Start(runCtx); err != nil {
		errs = append(errs, err)
	}

	msgs, err := stream.Load(initCtx)
	if err != nil {
		errs = append(errs, err)
	}
	senders := make([]string, 0, len(msgs))
	for _, m := range msgs {
		senders = append(senders, m.SenderID)
	}
	if err := c.identities.ResolveMany(initCtx, senders); err != nil {
		logger.Debug("sender lookup degraded to placeholders", zap.Error(err))
	}
	if err := reactions.Refresh(initCtx, stream.IDs()); err != nil {
		errs = append(errs, err)
	}
	c.publish(EventMessagesLoaded, len(msgs))

	for _, err := range errs {
		_ = c.report(err)
	}
	return errors.Join(errs...)
}

func (c *Controller) onMessage(ctx context.Context, reactions *ReactionAggregator, m Message) {
	if err := c.identities.ResolveMany(ctx, []string{m.SenderID}); err != nil {
		c.logger.Debug("sender lookup degraded to placeholder", zap.String("sender_id", m.SenderID), zap.Error(err))
	}
	reactions.RequestRefresh()
	c.publish(EventMessageAppended, m)
}

// Leave tears down both feeds, clears the identity cache and moves to Left.
// When Leave returns no callback of the old room is running.
func (c *Controller) Leave() error {
	c.mu.Lock()
	if c.initCancel != nil {
		c.initCancel()
	}
	c.mu.Unlock()

	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	stream, reactions, runCancel := c.stream, c.reactions, c.runCancel
	c.stream, c.reactions, c.runCancel = nil, nil, nil
	c.room = nil
	c.draft, c.replyTo = "", ""
	c.mu.Unlock()

	if runCancel != nil {
		runCancel()
	}
	if stream != nil {
		stream.Close()
	}
	if reactions != nil {
		reactions.Close()
	}
	c.identities.Reset()

	switch c.machine.Current() {
	case status.Unauthenticated, status.Left:
		return nil
	}
	return c.machine.Transition(status.Left)
}

// Send inserts a message into the open room. The message shows up through
// the live feed, not as a local echo.
func (c *Controller) Send(ctx context.Context, text, replyToID string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.machine.Current() != status.Ready || c.room == nil {
		c.mu.Unlock()
		return Message{}, ErrNotReady
	}
	chatID, uid := c.room.ID, c.userID
	c.sending++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending--
		c.mu.Unlock()
	}()

	msg, err := c.store.InsertMessage(ctx, Message{
		ChatID:    chatID,
		SenderID:  uid,
		Text:      text,
		ReplyToID: replyToID,
	})
	if err != nil {
		return Message{}, c.report(fmt.Errorf("%w: %w", ErrSendRejected, err))
	}
	return msg, nil
}

// Sending returns the number of messages currently being sent.
func (c *Controller) Sending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// SetDraft replaces the compose text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Draft returns the compose text.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// ReplyTo sets the reply target to a loaded message.
func (c *Controller) ReplyTo(messageID string) error {
	if _, ok := c.Message(messageID); !ok {
		return fmt.Errorf("%w: message %q", ErrNotFound, messageID)
	}
	c.mu.Lock()
	c.replyTo = messageID
	c.mu.Unlock()
	return nil
}

// CancelReply clears the reply target.
func (c *Controller) CancelReply() {
	c.mu.Lock()
	c.replyTo = ""
	c.mu.Unlock()
}

// ReplyTarget returns the message being replied to, if any.
func (c *Controller) ReplyTarget() (Message, bool) {
	c.mu.Lock()
	id := c.replyTo
	c.mu.Unlock()
	if id == "" {
		return Message{}, false
	}
	return c.Message(id)
}

// Submit sends the draft with the current reply target. Both are cleared
// before the insert and are not restored if it fails.
func (c *Controller) Submit(ctx context.Context) (Message, error) {
	c.mu.Lock()
	text, replyTo := c.draft, c.replyTo
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return Message{}, ErrEmptyMessage
	}
	c.draft, c.replyTo = "", ""
	c.mu.Unlock()
	return c.Send(ctx, text, replyTo)
}

// React toggles the current user's emoji on a message.
func (c *Controller) React(ctx context.Context, messageID, emoji string) (bool, error) {
	c.mu.Lock()
	reactions, uid := c.reactions, c.userID
	ready := c.machine.Current() == status.Ready && reactions != nil
	c.mu.Unlock()
	if !ready {
		return false, ErrNotReady
	}
	on, err := reactions.Toggle(ctx, messageID, uid, emoji)
	if err != nil {
		return on, c.report(err)
	}
	return on, nil
}

// State returns the lifecycle state.
func (c *Controller) State() status.State {
	return c.machine.Current()
}

// Room returns the open room.
func (c *Controller) Room() (Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return Room{}, false
	}
	return *c.room, true
}

// UserID returns the id the room was opened as.
func (c *Controller) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Messages returns the ordered message list of the open room.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Messages()
}

// Message returns a loaded message by id, for reply previews.
func (c *Controller) Message(id string) (Message, bool) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return Message{}, false
	}
	return stream.Message(id)
}

// Reactions returns the reaction groups of a message.
func (c *Controller) Reactions(messageID string) []Group {
	c.mu.Lock()
	reactions := c.reactions
	c.mu.Unlock()
	if reactions == nil {
		return nil
	}
	return reactions.Summary(messageID)
}

// DisplayName returns the best-known label for a user.
func (c *Controller) DisplayName(userID string) string {
	return c.identities.DisplayName(userID)
}

// IsMine reports whether m was sent by the current user.
func (c *Controller) IsMine(m Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID != "" && m.SenderID == c.userID
}

func (c *Controller) report(err error) error {
	c.logger.Warn("chat error", zap.Error(err))
	c.publish(EventError, err)
	return err
}

func (c *Controller) publish(kind string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
