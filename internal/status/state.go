package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/tabsync/internal/bus"
)

// State is the lifecycle state of the realtime connection.
type State string

const (
	Disconnected  State = "DISCONNECTED"
	Connecting    State = "CONNECTING"
	Authenticated State = "AUTHENTICATED"
	Closing       State = "CLOSING"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected:  {Connecting},
	Connecting:    {Authenticated, Closing, Disconnected},
	Authenticated: {Closing, Disconnected},
	Closing:       {Disconnected},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is currently in state s.
func (m *Machine) Is(s State) bool {
	return m.Current() == s
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:    bus.KindConnStateChanged,
			Payload: StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for state change events.
type StatusChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}
