package board

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/metrics"
	"github.com/iboybrian/atitlan-vibes/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEngineInsertMessagePublishes(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, metrics.New(), nil)
	ctx := context.Background()

	sub := b.Subscribe(bus.ChangePrefix+TableMessages+".", 10)
	defer sub.Close()

	chat, err := e.UpsertChat(ctx, "SanPedro", "", "San Pedro La Laguna Chat")
	if err != nil {
		t.Fatal(err)
	}
	if chat.Type != "town" {
		t.Errorf("type = %q, want default town", chat.Type)
	}

	msg, err := e.InsertMessage(ctx, &store.Message{ChatID: chat.ID, SenderID: "u1", Text: "  sunset at the dock  "})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" || msg.CreatedAt == 0 {
		t.Errorf("id/created_at not assigned: %+v", msg)
	}
	if msg.Text != "sunset at the dock" {
		t.Errorf("text = %q, want trimmed", msg.Text)
	}

	select {
	case evt := <-sub.Events():
		if evt.Kind != "change.messages.insert" {
			t.Errorf("event kind = %q, want change.messages.insert", evt.Kind)
		}
		c := evt.Payload.(Change)
		if got := c.Row.(*store.Message).ID; got != msg.ID {
			t.Errorf("published %q, want %q", got, msg.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change.messages.insert event")
	}
}

func TestEngineUpsertChatPublishesOnce(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, nil, nil)
	ctx := context.Background()

	sub := b.Subscribe(bus.ChangePrefix+TableChats+".", 10)
	defer sub.Close()

	first, err := e.UpsertChat(ctx, "Jaibalito", "town", "Jaibalito Chat")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.UpsertChat(ctx, "Jaibalito", "town", "Jaibalito Chat")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("ids = %q, %q, want same", first.ID, second.ID)
	}

	<-sub.Events()
	select {
	case evt := <-sub.Events():
		t.Errorf("unexpected second event %v", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineValidation(t *testing.T) {
	e := NewEngine(testDB(t), bus.New(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"chat without town", func() error { _, err := e.UpsertChat(ctx, " ", "town", "x"); return err }},
		{"message without chat", func() error {
			_, err := e.InsertMessage(ctx, &store.Message{SenderID: "u", Text: "x"})
			return err
		}},
		{"message without sender", func() error {
			_, err := e.InsertMessage(ctx, &store.Message{ChatID: "c", Text: "x"})
			return err
		}},
		{"blank message", func() error {
			_, err := e.InsertMessage(ctx, &store.Message{ChatID: "c", SenderID: "u", Text: "  "})
			return err
		}},
		{"reaction without emoji", func() error {
			_, err := e.InsertReaction(ctx, &store.Reaction{MessageID: "m", UserID: "u"})
			return err
		}},
		{"delete without id", func() error { _, err := e.DeleteReaction(ctx, ""); return err }},
		{"town without name", func() error { return e.UpsertTown(ctx, &store.Town{ID: "X"}) }},
		{"user without id", func() error { return e.UpsertUser(ctx, &store.User{Name: "Ana"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestEngineReactionLifecycle(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, nil, nil)
	ctx := context.Background()

	sub := b.Subscribe(bus.ChangePrefix+TableReactions+".", 10)
	defer sub.Close()

	chat, _ := e.UpsertChat(ctx, "SanJuan", "town", "San Juan Chat")
	msg, err := e.InsertMessage(ctx, &store.Message{ChatID: chat.ID, SenderID: "u1", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	r, err := e.InsertReaction(ctx, &store.Reaction{MessageID: msg.ID, UserID: "u2", Emoji: "👏"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.InsertReaction(ctx, &store.Reaction{MessageID: msg.ID, UserID: "u2", Emoji: "👏"}); !errors.Is(err, store.ErrConflict) {
		t.Errorf("duplicate err = %v, want ErrConflict", err)
	}
	if _, err := e.DeleteReaction(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	gone, err := e.DeleteReaction(ctx, r.ID)
	if err != nil || gone != nil {
		t.Errorf("second delete = %v, %v; want nil, nil", gone, err)
	}

	var kinds []string
	for len(kinds) < 2 {
		select {
		case evt := <-sub.Events():
			kinds = append(kinds, evt.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %v", kinds)
		}
	}
	if kinds[0] != "change.message_reactions.insert" || kinds[1] != "change.message_reactions.delete" {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestMatches(t *testing.T) {
	c := Change{Table: TableMessages, Op: OpInsert, Row: &store.Message{ID: "m1", ChatID: "c1"}}

	tests := []struct {
		name   string
		filter map[string]string
		ops    []string
		want   bool
	}{
		{"no filter", nil, nil, true},
		{"matching chat", map[string]string{"chat_id": "c1"}, nil, true},
		{"other chat", map[string]string{"chat_id": "c2"}, nil, false},
		{"op listed", nil, []string{OpDelete, OpInsert}, true},
		{"op not listed", nil, []string{OpDelete}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(c, tt.filter, tt.ops); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
