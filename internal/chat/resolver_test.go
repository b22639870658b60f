package chat

import (
	"context"
	"errors"
	"testing"
)

// conflictStore reports a conflict on every upsert, as when another client
// created the row between our attempt and its commit.
type conflictStore struct {
	*fakeStore
}

func (s conflictStore) UpsertRoom(context.Context, Scope, string) (Room, error) {
	return Room{}, ErrConflict
}

func TestAcquireIdempotent(t *testing.T) {
	store := newFakeStore(nil)
	r := NewResolver(store, nil)
	scope := Scope{TownID: "SanPedro", Type: DefaultRoomType}

	first, err := r.Acquire(context.Background(), scope, "San Pedro La Laguna Chat")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Acquire(context.Background(), scope, "San Pedro La Laguna Chat")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("ids = %q, %q, want same room", first.ID, second.ID)
	}
	if len(store.rooms) != 1 {
		t.Errorf("rooms = %d, want 1", len(store.rooms))
	}
}

func TestAcquireConflictReadsWinner(t *testing.T) {
	store := newFakeStore(nil)
	scope := Scope{TownID: "SanPedro", Type: DefaultRoomType}
	store.rooms[scope.Key()] = Room{ID: "winner", Scope: scope, Name: "San Pedro La Laguna Chat"}

	room, err := NewResolver(conflictStore{store}, nil).Acquire(context.Background(), scope, "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if room.ID != "winner" {
		t.Errorf("room = %q, want winner", room.ID)
	}
}

func TestAcquireConflictWithoutWinner(t *testing.T) {
	store := newFakeStore(nil)
	_, err := NewResolver(conflictStore{store}, nil).Acquire(context.Background(), Scope{TownID: "X", Type: "town"}, "X Chat")
	if !errors.Is(err, ErrRoomUnavailable) || !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrRoomUnavailable wrapping ErrNotFound", err)
	}
}

func TestAcquireStoreFailure(t *testing.T) {
	store := newFakeStore(nil)
	boom := errors.New("disk full")
	store.upsertErr = boom

	_, err := NewResolver(store, nil).Acquire(context.Background(), Scope{TownID: "SanPedro", Type: "town"}, "x")
	if !errors.Is(err, ErrRoomUnavailable) || !errors.Is(err, boom) {
		t.Errorf("err = %v, want ErrRoomUnavailable wrapping cause", err)
	}
}

func TestAcquireInvalidScope(t *testing.T) {
	_, err := NewResolver(newFakeStore(nil), nil).Acquire(context.Background(), Scope{}, "x")
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("err = %v, want ErrInvalidScope", err)
	}
}
