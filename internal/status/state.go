package status

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iboybrian/atitlan-vibes/internal/bus"
)

// ErrInvalidTransition is returned when a transition is not in the table.
var ErrInvalidTransition = errors.New("invalid transition")

// State represents a chat room lifecycle state.
type State string

const (
	Unauthenticated State = "UNAUTHENTICATED"
	Initializing    State = "INITIALIZING"
	Ready           State = "READY"
	Unavailable     State = "UNAVAILABLE"
	Left            State = "LEFT"
)

// EventStateChanged is published on every successful transition.
const EventStateChanged = "chat.state_changed"

// validTransitions defines allowed state transitions. Initializing is only
// reachable from a resting state, which makes a second concurrent open fail.
var validTransitions = map[State][]State{
	Unauthenticated: {Initializing},
	Initializing:    {Ready, Unavailable, Left},
	Ready:           {Left},
	Unavailable:     {Left},
	Left:            {Initializing, Unauthenticated},
}

// Machine tracks and enforces chat room state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Unauthenticated state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Unauthenticated,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      EventStateChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
