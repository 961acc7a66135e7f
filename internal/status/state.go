// Package status tracks the state of the daemon's push link to the backend.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vibein/vibechat/internal/bus"
)

// State is a push link state.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Online       State = "ONLINE"
	Reconnecting State = "RECONNECTING"
	Error        State = "ERROR"
)

var validTransitions = map[State][]State{
	Booting:      {AuthRequired, Connecting, Error},
	AuthRequired: {Connecting, Error},
	Connecting:   {Online, Reconnecting, AuthRequired, Error},
	Online:       {Reconnecting, AuthRequired, Error},
	Reconnecting: {Connecting, Error},
	Error:        {Booting, Connecting},
}

// Machine tracks and enforces link state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	detail  string
	bus     *bus.Bus
}

// NewMachine creates a machine in the Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, since: time.Now(), bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Snapshot returns the current state, when it was entered and the detail
// given with the transition.
func (m *Machine) Snapshot() (State, time.Time, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.since, m.detail
}

// CanTransition reports whether to is reachable from the current state.
func (m *Machine) CanTransition(to State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(validTransitions[m.current], to)
}

// Transition moves to a new state. It returns an error if the transition
// is not allowed.
func (m *Machine) Transition(to State) error {
	return m.TransitionWithDetail(to, "")
}

// TransitionWithDetail is Transition with a human readable reason attached
// to the change event.
func (m *Machine) TransitionWithDetail(to State, detail string) error {
	m.mu.Lock()
	if !slices.Contains(validTransitions[m.current], to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	m.detail = detail
	m.mu.Unlock()

	m.bus.Publish(bus.Event{
		Kind:    bus.KindLinkStatus,
		Payload: Change{From: from, To: to, Detail: detail},
	})
	return nil
}

// Change is the payload of link.status_changed events.
type Change struct {
	From   State
	To     State
	Detail string
}
