package chat

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

func newTestStream(t *testing.T, store *fakeStore, feed *fakeFeed) *MessageStream {
	t.Helper()
	s := NewMessageStream("c1", store, feed, nil)
	t.Cleanup(s.Close)
	return s
}

// TestLiveMessageAppendedAtTail loads [A@10:00, B@10:05] then receives
// C@10:03 live. C goes to the tail; the list is not re-sorted.
func TestLiveMessageAppendedAtTail(t *testing.T) {
	feed := &fakeFeed{}
	store := newFakeStore(feed)
	store.messages = []Message{
		{ID: "B", ChatID: "c1", CreatedAt: at("10:05")},
		{ID: "A", ChatID: "c1", CreatedAt: at("10:00")},
	}
	s := newTestStream(t, store, feed)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(loaded); !slices.Equal(got, []string{"A", "B"}) {
		t.Fatalf("loaded = %v, want [A B]", got)
	}

	feed.pushMessage(Message{ID: "C", ChatID: "c1", CreatedAt: at("10:03")})
	waitFor(t, "C appended", func() bool { return len(s.Messages()) == 3 })

	if got := ids(s.Messages()); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("messages = %v, want [A B C]", got)
	}
}

func TestInitialOrderNonDecreasing(t *testing.T) {
	store := newFakeStore(nil)
	store.messages = []Message{
		{ID: "3", ChatID: "c1", CreatedAt: at("12:00")},
		{ID: "1", ChatID: "c1", CreatedAt: at("09:00")},
		{ID: "2a", ChatID: "c1", CreatedAt: at("10:00")},
		{ID: "2b", ChatID: "c1", CreatedAt: at("10:00")},
	}
	s := NewMessageStream("c1", store, &fakeFeed{}, nil)
	msgs, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(msgs); !slices.Equal(got, []string{"1", "2a", "2b", "3"}) {
		t.Errorf("order = %v, want [1 2a 2b 3] (stable on ties)", got)
	}
}

func TestDuplicateLiveMessagesAppearOnce(t *testing.T) {
	feed := &fakeFeed{}
	store := newFakeStore(feed)
	store.messages = []Message{{ID: "A", ChatID: "c1", CreatedAt: at("10:00")}}
	s := newTestStream(t, store, feed)
	ctx := context.Background()

	var mu sync.Mutex
	var appended []string
	s.OnAppend(func(m Message) {
		mu.Lock()
		appended = append(appended, m.ID)
		mu.Unlock()
	})
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	feed.pushMessage(Message{ID: "A", ChatID: "c1"})
	feed.pushMessage(Message{ID: "B", ChatID: "c1"})
	feed.pushMessage(Message{ID: "B", ChatID: "c1"})
	feed.pushMessage(Message{ID: "other", ChatID: "c2"})
	feed.pushMessage(Message{ID: "C", ChatID: "c1"})
	waitFor(t, "C appended", func() bool { return len(s.Messages()) == 3 })

	if got := ids(s.Messages()); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("messages = %v, want [A B C]", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(appended, []string{"B", "C"}) {
		t.Errorf("append callbacks = %v, want [B C]", appended)
	}
}

// TestEventsDuringLoadAreMerged delivers a message after subscribing but
// before the history arrives. It must follow the history, and a copy that
// is also in the history must not be doubled.
func TestEventsDuringLoadAreMerged(t *testing.T) {
	feed := &fakeFeed{}
	store := newFakeStore(feed)
	store.messages = []Message{
		{ID: "A", ChatID: "c1", CreatedAt: at("10:00")},
		{ID: "B", ChatID: "c1", CreatedAt: at("10:01")},
	}
	s := newTestStream(t, store, feed)
	ctx := context.Background()

	var mu sync.Mutex
	var appended []string
	s.OnAppend(func(m Message) {
		mu.Lock()
		appended = append(appended, m.ID)
		mu.Unlock()
	})
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	feed.pushMessage(Message{ID: "B", ChatID: "c1", CreatedAt: at("10:01")})
	feed.pushMessage(Message{ID: "X", ChatID: "c1", CreatedAt: at("10:02")})
	waitFor(t, "early events buffered", func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.pending) == 2
	})

	msgs, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(msgs); !slices.Equal(got, []string{"A", "B", "X"}) {
		t.Errorf("messages = %v, want [A B X]", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(appended, []string{"X"}) {
		t.Errorf("append callbacks = %v, want [X]", appended)
	}
}

func TestLoadFailureKeepsLiveFeed(t *testing.T) {
	feed := &fakeFeed{}
	store := newFakeStore(feed)
	boom := errors.New("timeout")
	store.messagesErr = boom
	s := newTestStream(t, store, feed)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	msgs, err := s.Load(ctx)
	if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrLoadFailed wrapping cause", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages = %v, want empty", ids(msgs))
	}

	feed.pushMessage(Message{ID: "live", ChatID: "c1"})
	waitFor(t, "live message", func() bool { return len(s.Messages()) == 1 })
}

func TestCloseIsBarrier(t *testing.T) {
	feed := &fakeFeed{}
	store := newFakeStore(feed)
	s := NewMessageStream("c1", store, feed, nil)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	s.OnAppend(func(Message) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	s.Close()
	s.Close()

	feed.pushMessage(Message{ID: "late", ChatID: "c1"})
	s.receive(Message{ID: "late2", ChatID: "c1"})

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("callbacks after Close = %d, want 0", calls)
	}
	if n := len(s.Messages()); n != 0 {
		t.Errorf("messages after Close = %d, want 0", n)
	}
}

func TestDroppedFeedReported(t *testing.T) {
	feed := &fakeFeed{}
	s := newTestStream(t, newFakeStore(feed), feed)

	got := make(chan error, 1)
	s.OnDropped(func(err error) { got <- err })
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	feed.drop(TableMessages)

	err := <-got
	if !errors.Is(err, ErrSubscriptionDropped) {
		t.Errorf("err = %v, want ErrSubscriptionDropped", err)
	}
}

func TestStartSubscribeFailure(t *testing.T) {
	boom := errors.New("no route")
	s := NewMessageStream("c1", newFakeStore(nil), &fakeFeed{err: boom}, nil)
	if err := s.Start(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want cause", err)
	}
	s.Close()
}
