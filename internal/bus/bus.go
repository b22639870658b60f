package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
//
// Delivery never blocks the publisher. A subscriber that falls behind by more
// than its buffer is marked dropped and receives nothing further; the
// consumer learns about it through Subscription.Dropped and must resubscribe.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*Subscription
	next int
}

// Subscription is a live registration on the bus.
type Subscription struct {
	namespace string
	ch        chan Event
	dropped   chan struct{}
	dropOnce  sync.Once
	closeOnce sync.Once
	cancel    func()
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*Subscription),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix of event.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.namespace) || sub.isDropped() {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			sub.markDropped()
		}
	}
}

// Subscribe registers interest in events whose kind starts with namespace.
// bufSize controls the channel buffer.
func (b *Bus) Subscribe(namespace string, bufSize int) *Subscription {
	sub := &Subscription{
		namespace: namespace,
		ch:        make(chan Event, bufSize),
		dropped:   make(chan struct{}),
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	sub.cancel = func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
	return sub
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Events returns the delivery channel. It is never closed by the bus.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped is closed once the subscription overflowed.
func (s *Subscription) Dropped() <-chan struct{} {
	return s.dropped
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *Subscription) markDropped() {
	s.dropOnce.Do(func() { close(s.dropped) })
}

func (s *Subscription) isDropped() bool {
	select {
	case <-s.dropped:
		return true
	default:
		return false
	}
}
