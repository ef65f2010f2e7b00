package deploy

import (
	"sync"
)

// Machine holds the state of one deployment session behind a serialized
// dispatch. It is safe for concurrent use; actions are applied one at a
// time, preserving the ordering guarantees of Transition.
type Machine struct {
	mu        sync.Mutex
	state     State
	listeners []func(State)
}

// NewMachine returns a machine in the starting state.
func NewMachine() *Machine {
	return &Machine{state: NewState()}
}

// Subscribe registers fn to be called with a snapshot of the state after
// every dispatch. Listeners must not call Dispatch.
func (m *Machine) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Dispatch applies an action and returns a snapshot of the resulting
// state.
func (m *Machine) Dispatch(a Action) State {
	m.mu.Lock()
	m.state = Transition(m.state, a)
	snap := m.state.clone()
	listeners := m.listeners
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}
