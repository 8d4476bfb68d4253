package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/evently/courier/internal/bus"
)

// State represents the push-channel connection state.
type State string

const (
	// Idle is the initial state before any dial attempt.
	Idle State = "IDLE"
	// Connecting means a dial is in flight, bounded by the handshake timeout.
	Connecting State = "CONNECTING"
	// Open means the channel handshake completed and frames may flow.
	Open State = "OPEN"
	// Closed is terminal for one connection attempt: dial failure, handshake
	// timeout, read error, or deliberate shutdown.
	Closed State = "CLOSED"
)

// validTransitions defines allowed state transitions. Connecting may go
// straight to Closed on error or timeout; Closed may re-enter Connecting
// if a new attempt is started.
var validTransitions = map[State][]State{
	Idle:       {Connecting, Closed},
	Connecting: {Open, Closed},
	Open:       {Closed},
	Closed:     {Connecting},
}

// kindFor maps states to the bus events announced on entry.
var kindFor = map[State]string{
	Connecting: bus.KindChannelConnecting,
	Open:       bus.KindChannelOpen,
	Closed:     bus.KindChannelClosed,
}

// Machine tracks and enforces push-channel state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Idle, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Connected reports whether the channel is usable for broadcasts.
func (m *Machine) Connected() bool {
	return m.Current() == Open
}

// Transition attempts to move to a new state. Returns an error if the
// transition is invalid; the state is left unchanged in that case.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	if !slices.Contains(validTransitions[m.current], to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	if m.bus != nil {
		if kind, ok := kindFor[to]; ok {
			m.bus.Publish(bus.Event{
				Kind:      kind,
				Timestamp: time.Now(),
				Payload:   Change{From: from, To: to},
			})
		}
	}
	return nil
}

// Change is the payload carried by channel state events.
type Change struct {
	From State
	To   State
}
