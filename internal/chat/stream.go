package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// MessageStream holds the ordered message list of one room: the history
// loaded once, followed by live inserts in arrival order.
//
// Live messages are appended at the tail and never re-sorted. Duplicate ids
// from the feed are dropped. Messages that arrive while the history is still
// loading are held back and merged after it.
type MessageStream struct {
	chatID string
	store  MessageStore
	feed   Feed
	logger *zap.Logger

	mu        sync.Mutex
	msgs      []Message
	ids       map[string]struct{}
	pending   []Message
	loaded    bool
	closed    bool
	onAppend  func(Message)
	onDropped func(error)

	sub  Subscription
	done chan struct{}
}

// NewMessageStream creates a stream for chatID.
func NewMessageStream(chatID string, store MessageStore, feed Feed, logger *zap.Logger) *MessageStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageStream{
		chatID: chatID,
		store:  store,
		feed:   feed,
		logger: logger.With(zap.String("chat_id", chatID)),
		ids:    make(map[string]struct{}),
	}
}

// OnAppend registers a callback for every message added to the list after
// the initial load. It runs on the feed goroutine and must not call Close.
func (s *MessageStream) OnAppend(fn func(Message)) {
	s.mu.Lock()
	s.onAppend = fn
	s.mu.Unlock()
}

// OnDropped registers a callback for a feed that ends on its own.
func (s *MessageStream) OnDropped(fn func(error)) {
	s.mu.Lock()
	s.onDropped = fn
	s.mu.Unlock()
}

// Start subscribes to message inserts for the chat. The subscription lives
// until Close, independent of ctx after Start returns.
func (s *MessageStream) Start(ctx context.Context) error {
	sub, err := s.feed.Subscribe(ctx, FeedQuery{
		Table:  TableMessages,
		Filter: map[string]string{"chat_id": s.chatID},
		Ops:    []Op{OpInsert},
	})
	if err != nil {
		return fmt.Errorf("subscribe messages: %w", err)
	}

	s.mu.Lock()
	if s.closed || s.sub != nil {
		s.mu.Unlock()
		sub.Close()
		return nil
	}
	s.sub = sub
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.pump(sub, s.done)
	return nil
}

func (s *MessageStream) pump(sub Subscription, done chan struct{}) {
	defer close(done)
	for c := range sub.Events() {
		if c.Message == nil || c.Message.ChatID != s.chatID {
			continue
		}
		s.receive(*c.Message)
	}

	err := sub.Err()
	if err == nil {
		return
	}
	s.mu.Lock()
	closed, fn := s.closed, s.onDropped
	s.mu.Unlock()
	if closed {
		return
	}
	s.logger.Warn("message feed dropped", zap.Error(err))
	if fn != nil {
		fn(err)
	}
}

func (s *MessageStream) receive(m Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.loaded {
		s.pending = append(s.pending, m)
		s.mu.Unlock()
		return
	}
	if !s.add(m) {
		s.mu.Unlock()
		s.logger.Debug("duplicate message dropped", zap.String("message_id", m.ID))
		return
	}
	fn := s.onAppend
	s.mu.Unlock()

	if fn != nil {
		fn(m)
	}
}

// add appends m unless its id is already held. Caller holds mu.
func (s *MessageStream) add(m Message) bool {
	if _, ok := s.ids[m.ID]; ok {
		return false
	}
	s.ids[m.ID] = struct{}{}
	s.msgs = append(s.msgs, m)
	return true
}

// Load fetches the history and seeds the list with it, then merges anything
// the feed delivered meanwhile. On failure the list is left empty (live
// messages still append) and the error wraps ErrLoadFailed.
func (s *MessageStream) Load(ctx context.Context) ([]Message, error) {
	history, err := s.store.Messages(ctx, s.chatID)
	if err != nil {
		history = nil
	}
	slices.SortStableFunc(history, func(a, b Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil
	}
	s.msgs = make([]Message, 0, len(history)+len(s.pending))
	s.ids = make(map[string]struct{}, cap(s.msgs))
	for _, m := range history {
		s.add(m)
	}
	var merged []Message
	for _, m := range s.pending {
		if s.add(m) {
			merged = append(merged, m)
		}
	}
	s.pending = nil
	s.loaded = true
	fn := s.onAppend
	out := slices.Clone(s.msgs)
	s.mu.Unlock()

	if fn != nil {
		for _, m := range merged {
			fn(m)
		}
	}
	if err != nil {
		s.logger.Warn("load messages failed", zap.Error(err))
		return out, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return out, nil
}

// Messages returns a snapshot of the ordered list.
func (s *MessageStream) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.msgs)
}

// Message returns the held message with id.
func (s *MessageStream) Message(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; !ok {
		return Message{}, false
	}
	for _, m := range s.msgs {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// IDs returns the ids of the held messages in list order.
func (s *MessageStream) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.msgs))
	for i, m := range s.msgs {
		ids[i] = m.ID
	}
	return ids
}

// Close ends the subscription. When Close returns, no callback is running
// and none will run again.
func (s *MessageStream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub, done := s.sub, s.done
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
}
