package chat

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

func TestToggleTwiceRestoresSet(t *testing.T) {
	store := newFakeStore(nil)
	store.reactions = []Reaction{{ID: "r0", MessageID: "m1", UserID: "u2", Emoji: "🎉"}}
	before := store.reactionSet()
	a := NewReactionAggregator(store, &fakeFeed{}, nil, nil)
	ctx := context.Background()

	on, err := a.Toggle(ctx, "m1", "u1", "🔥")
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v; want on", on, err)
	}
	if got := store.reactionSet(); len(got) != 2 {
		t.Fatalf("after first toggle = %v, want 2 reactions", got)
	}
	on, err = a.Toggle(ctx, "m1", "u1", "🔥")
	if err != nil || on {
		t.Fatalf("second toggle = %v, %v; want off", on, err)
	}
	if got := store.reactionSet(); !slices.Equal(got, before) {
		t.Errorf("after two toggles = %v, want %v", got, before)
	}
}

// lostRaceStore hides the tuple from the lookup so the insert runs into the
// uniqueness constraint, as when another device reacted at the same moment.
type lostRaceStore struct {
	*fakeStore
}

func (s lostRaceStore) Reactions(context.Context, []string) ([]Reaction, error) {
	return nil, nil
}

func TestToggleConflictCountsAsOn(t *testing.T) {
	store := newFakeStore(nil)
	store.reactions = []Reaction{{ID: "r0", MessageID: "m1", UserID: "u1", Emoji: "👍"}}
	a := NewReactionAggregator(lostRaceStore{store}, &fakeFeed{}, nil, nil)

	on, err := a.Toggle(context.Background(), "m1", "u1", "👍")
	if err != nil {
		t.Fatalf("conflict should not surface: %v", err)
	}
	if !on {
		t.Error("lost insert race should report on")
	}
}

func TestRefreshGroupsAndSummary(t *testing.T) {
	store := newFakeStore(nil)
	store.reactions = []Reaction{
		{ID: "1", MessageID: "m1", UserID: "u1", Emoji: "🔥"},
		{ID: "2", MessageID: "m1", UserID: "u2", Emoji: "👍"},
		{ID: "3", MessageID: "m1", UserID: "u3", Emoji: "🔥"},
		{ID: "4", MessageID: "m2", UserID: "u1", Emoji: "😂"},
		{ID: "5", MessageID: "m9", UserID: "u1", Emoji: "😂"},
	}
	a := NewReactionAggregator(store, &fakeFeed{}, nil, nil)

	if err := a.Refresh(context.Background(), []string{"m1", "m2"}); err != nil {
		t.Fatal(err)
	}
	groups := a.GroupsFor("m1")
	if !slices.Equal(groups["🔥"], []string{"u1", "u3"}) || !slices.Equal(groups["👍"], []string{"u2"}) {
		t.Errorf("groups = %v", groups)
	}
	summary := a.Summary("m1")
	if len(summary) != 2 || summary[0].Emoji != "🔥" || summary[0].Count != 2 || summary[1].Emoji != "👍" {
		t.Errorf("summary = %+v, want 🔥x2 then 👍x1", summary)
	}
	if a.GroupsFor("m9") != nil {
		t.Error("reactions of messages outside the refresh set must not be held")
	}
}

// TestStaleRefreshDiscarded holds the first fetch until a second refresh
// has committed; the first result must then be thrown away.
func TestStaleRefreshDiscarded(t *testing.T) {
	store := newFakeStore(nil)
	release := make(chan struct{})
	started := make(chan struct{})
	store.reactionsHook = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}
	a := NewReactionAggregator(store, &fakeFeed{}, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.Refresh(ctx, []string{"m1"})
	}()
	<-started

	store.mu.Lock()
	store.reactions = append(store.reactions, Reaction{ID: "new", MessageID: "m1", UserID: "u1", Emoji: "🎉"})
	store.mu.Unlock()
	if err := a.Refresh(ctx, []string{"m1"}); err != nil {
		t.Fatal(err)
	}

	close(release)
	wg.Wait()

	if got := a.GroupsFor("m1")["🎉"]; !slices.Equal(got, []string{"u1"}) {
		t.Errorf("groups = %v, newer refresh was overwritten", a.GroupsFor("m1"))
	}
}

func TestReactionChangeTriggersRefresh(t *testing.T) {
	feed := &fakeFeed{}
	store := newFakeStore(feed)
	a := NewReactionAggregator(store, feed, func() []string { return []string{"m1"} }, nil)
	defer a.Close()

	refreshed := make(chan struct{}, 16)
	a.OnRefresh(func() { refreshed <- struct{}{} })
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := store.InsertReaction(context.Background(), Reaction{MessageID: "m1", UserID: "u2", Emoji: "❤️"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "refresh after insert", func() bool {
		return slices.Equal(a.GroupsFor("m1")["❤️"], []string{"u2"})
	})
	<-refreshed
}

func TestRequestRefreshCoalesces(t *testing.T) {
	a := NewReactionAggregator(newFakeStore(nil), &fakeFeed{}, nil, nil)
	for i := 0; i < 10; i++ {
		a.RequestRefresh()
	}
	if n := len(a.kick); n != 1 {
		t.Errorf("queued refreshes = %d, want 1", n)
	}
}

func TestAggregatorCloseStopsRefresh(t *testing.T) {
	feed := &fakeFeed{}
	store := newFakeStore(feed)
	a := NewReactionAggregator(store, feed, func() []string { return []string{"m1"} }, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.Close()

	store.reactions = []Reaction{{ID: "x", MessageID: "m1", UserID: "u1", Emoji: "👏"}}
	if err := a.Refresh(context.Background(), []string{"m1"}); err != nil {
		t.Fatal(err)
	}
	if g := a.GroupsFor("m1"); g != nil {
		t.Errorf("groups after Close = %v, want none", g)
	}
}

func TestAggregatorReportsDroppedFeed(t *testing.T) {
	feed := &fakeFeed{}
	a := NewReactionAggregator(newFakeStore(feed), feed, func() []string { return nil }, nil)
	defer a.Close()

	got := make(chan error, 1)
	a.OnError(func(err error) { got <- err })
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	feed.drop(TableReactions)

	if err := <-got; !errors.Is(err, ErrSubscriptionDropped) {
		t.Errorf("err = %v, want ErrSubscriptionDropped", err)
	}
}
