package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// IdentityCache memoizes sender identities for one chat session. Every id
// is queried at most once: ids the store does not know become placeholders
// and are never asked for again until Reset.
type IdentityCache struct {
	store  IdentityStore
	logger *zap.Logger

	mu       sync.Mutex
	entries  map[string]Identity
	inflight map[string]chan struct{}
	gen      uint64
}

// NewIdentityCache creates an empty cache.
func NewIdentityCache(store IdentityStore, logger *zap.Logger) *IdentityCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityCache{
		store:    store,
		logger:   logger,
		entries:  make(map[string]Identity),
		inflight: make(map[string]chan struct{}),
	}
}

// ResolveMany makes sure every id in userIDs has an entry. Unknown ids are
// batch-queried in one round trip; ids another call is already resolving
// are waited for instead of queried again. If the query fails every queried
// id becomes a placeholder and the error is returned.
func (c *IdentityCache) ResolveMany(ctx context.Context, userIDs []string) error {
	c.mu.Lock()
	gen := c.gen
	seen := make(map[string]struct{}, len(userIDs))
	var want []string
	var wait []chan struct{}
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := c.entries[id]; ok {
			continue
		}
		if ch, ok := c.inflight[id]; ok {
			wait = append(wait, ch)
			continue
		}
		want = append(want, id)
	}
	done := make(chan struct{})
	for _, id := range want {
		c.inflight[id] = done
	}
	c.mu.Unlock()

	var err error
	if len(want) > 0 {
		err = c.lookup(ctx, gen, want, done)
	}

	for _, ch := range wait {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *IdentityCache) lookup(ctx context.Context, gen uint64, ids []string, done chan struct{}) error {
	defer close(done)

	found, qerr := c.store.Identities(ctx, ids)
	byID := make(map[string]Identity, len(found))
	if qerr == nil {
		for _, rec := range found {
			byID[rec.UserID] = rec
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if c.inflight[id] == done {
			delete(c.inflight, id)
		}
	}
	if c.gen != gen {
		return nil
	}
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			rec = Identity{UserID: id, Placeholder: true}
		}
		rec.UserID = id
		c.entries[id] = rec
	}

	if qerr != nil {
		c.logger.Warn("identity lookup failed, using placeholders", zap.Int("ids", len(ids)), zap.Error(qerr))
		return fmt.Errorf("resolve identities: %w", qerr)
	}
	return nil
}

// Lookup returns the cached entry for userID.
func (c *IdentityCache) Lookup(userID string) (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[userID]
	return rec, ok
}

// DisplayName returns a best-effort label without blocking. Ids not yet
// resolved get FallbackName.
func (c *IdentityCache) DisplayName(userID string) string {
	rec, ok := c.Lookup(userID)
	if !ok {
		return FallbackName
	}
	return rec.DisplayName()
}

// Len returns the number of cached entries, placeholders included.
func (c *IdentityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset discards every entry. Lookups still in flight finish without
// writing into the new generation.
func (c *IdentityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]Identity)
	c.inflight = make(map[string]chan struct{})
}
