package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Resolver acquires the single room for a scope.
type Resolver struct {
	store  RoomStore
	logger *zap.Logger
}

// NewResolver creates a resolver over store.
func NewResolver(store RoomStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Acquire returns the room for scope, creating it with name if absent. Safe
// to call concurrently from any number of processes: uniqueness is enforced
// by the store, and a conflicting insert falls back to reading the winner.
func (r *Resolver) Acquire(ctx context.Context, scope Scope, name string) (Room, error) {
	if !scope.Valid() {
		return Room{}, fmt.Errorf("%w: %w: %q", ErrRoomUnavailable, ErrInvalidScope, scope.Key())
	}

	room, err := r.store.UpsertRoom(ctx, scope, name)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, ErrConflict) {
		return Room{}, fmt.Errorf("%w: %w", ErrRoomUnavailable, err)
	}

	r.logger.Debug("room upsert conflicted, reading winner", zap.String("scope", scope.Key()))
	room, err = r.store.RoomByScope(ctx, scope)
	if err != nil {
		return Room{}, fmt.Errorf("%w: %w", ErrRoomUnavailable, err)
	}
	return room, nil
}
