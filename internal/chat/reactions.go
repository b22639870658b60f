package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ReactionAggregator keeps the reaction groups of the loaded messages.
//
// Any reaction change anywhere triggers a full refresh over the current
// message ids, so the result does not depend on how the message and
// reaction feeds interleave. Bursts of changes collapse into one queued
// refresh, and a refresh that finishes after a newer one is discarded.
type ReactionAggregator struct {
	store      ReactionStore
	feed       Feed
	messageIDs func() []string
	logger     *zap.Logger

	mu        sync.Mutex
	byMessage map[string][]Reaction
	issued    uint64
	applied   uint64
	closed    bool
	onRefresh func()
	onError   func(error)

	kick   chan struct{}
	sub    Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReactionAggregator creates an aggregator. messageIDs supplies the ids
// to refresh when a change arrives.
func NewReactionAggregator(store ReactionStore, feed Feed, messageIDs func() []string, logger *zap.Logger) *ReactionAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReactionAggregator{
		store:      store,
		feed:       feed,
		messageIDs: messageIDs,
		logger:     logger,
		byMessage:  make(map[string][]Reaction),
		kick:       make(chan struct{}, 1),
	}
}

// OnRefresh registers a callback run after every committed refresh.
func (a *ReactionAggregator) OnRefresh(fn func()) {
	a.mu.Lock()
	a.onRefresh = fn
	a.mu.Unlock()
}

// OnError registers a callback for background refresh failures and a
// dropped feed.
func (a *ReactionAggregator) OnError(fn func(error)) {
	a.mu.Lock()
	a.onError = fn
	a.mu.Unlock()
}

// Start subscribes to every reaction insert and delete and starts the
// refresh worker. Both run until Close.
func (a *ReactionAggregator) Start(ctx context.Context) error {
	sub, err := a.feed.Subscribe(ctx, FeedQuery{
		Table: TableReactions,
		Ops:   []Op{OpInsert, OpDelete},
	})
	if err != nil {
		return fmt.Errorf("subscribe reactions: %w", err)
	}

	a.mu.Lock()
	if a.closed || a.sub != nil {
		a.mu.Unlock()
		sub.Close()
		return nil
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.sub = sub
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(2)
	go a.pump(sub)
	go a.worker(wctx)
	return nil
}

func (a *ReactionAggregator) pump(sub Subscription) {
	defer a.wg.Done()
	for range sub.Events() {
		a.RequestRefresh()
	}
	if err := sub.Err(); err != nil {
		a.fail(err)
	}
}

func (a *ReactionAggregator) worker(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.kick:
			if err := a.Refresh(ctx, a.messageIDs()); err != nil && ctx.Err() == nil {
				a.fail(err)
			}
		}
	}
}

func (a *ReactionAggregator) fail(err error) {
	a.mu.Lock()
	closed, fn := a.closed, a.onError
	a.mu.Unlock()
	if closed {
		return
	}
	a.logger.Warn("reaction refresh failed", zap.Error(err))
	if fn != nil {
		fn(err)
	}
}

// RequestRefresh queues a background refresh. It never blocks; a request
// made while one is already queued is absorbed by it.
func (a *ReactionAggregator) RequestRefresh() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Refresh re-fetches every reaction of messageIDs and replaces the groups.
// Results are committed in request order.
func (a *ReactionAggregator) Refresh(ctx context.Context, messageIDs []string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.issued++
	seq := a.issued
	a.mu.Unlock()

	var rs []Reaction
	if len(messageIDs) > 0 {
		var err error
		rs, err = a.store.Reactions(ctx, messageIDs)
		if err != nil {
			return fmt.Errorf("refresh reactions: %w", err)
		}
	}

	byMessage := make(map[string][]Reaction, len(messageIDs))
	for _, r := range rs {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], r)
	}

	a.mu.Lock()
	if a.closed || seq <= a.applied {
		a.mu.Unlock()
		return nil
	}
	a.applied = seq
	a.byMessage = byMessage
	fn := a.onRefresh
	a.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// Toggle flips userID's emoji reaction on messageID and reports whether it
// is now on. The local groups change only with the next refresh.
func (a *ReactionAggregator) Toggle(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	current, err := a.store.Reactions(ctx, []string{messageID})
	if err != nil {
		return false, fmt.Errorf("toggle reaction: %w", err)
	}
	for _, r := range current {
		if r.UserID == userID && r.Emoji == emoji {
			if err := a.store.DeleteReaction(ctx, r.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return true, fmt.Errorf("toggle reaction off: %w", err)
			}
			return false, nil
		}
	}

	_, err = a.store.InsertReaction(ctx, Reaction{MessageID: messageID, UserID: userID, Emoji: emoji})
	if err != nil && !errors.Is(err, ErrConflict) {
		return false, fmt.Errorf("toggle reaction on: %w", err)
	}
	return true, nil
}

// GroupsFor returns emoji -> user ids for one message.
func (a *ReactionAggregator) GroupsFor(messageID string) map[string][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	rs := a.byMessage[messageID]
	if len(rs) == 0 {
		return nil
	}
	groups := make(map[string][]string)
	for _, r := range rs {
		groups[r.Emoji] = append(groups[r.Emoji], r.UserID)
	}
	return groups
}

// Summary returns the groups of one message ordered by first reaction.
func (a *ReactionAggregator) Summary(messageID string) []Group {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Group
	for _, r := range a.byMessage[messageID] {
		i := slices.IndexFunc(out, func(g Group) bool { return g.Emoji == r.Emoji })
		if i < 0 {
			out = append(out, Group{Emoji: r.Emoji})
			i = len(out) - 1
		}
		out[i].Count++
		out[i].Users = append(out[i].Users, r.UserID)
	}
	return out
}

// Close ends the subscription and the worker. When Close returns, no
// refresh will be committed.
func (a *ReactionAggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	sub, cancel := a.sub, a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Close()
	}
	a.wg.Wait()
}
