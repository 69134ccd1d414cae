package hsm

import (
	"github.com/milk9111/hsm/ecs"
	"github.com/milk9111/hsm/ecs/component"
)

// NextState is one queued phase decision. End marks the end of a machine's
// run: popping it terminates the machine instead of moving to a state.
type NextState struct {
	State ecs.Entity
	Phase Phase
	End   bool
}

func NextEntry(state ecs.Entity, phase Phase) NextState {
	return NextState{State: state, Phase: phase}
}

func EndEntry() NextState {
	return NextState{End: true}
}

// Machine is the per-machine record: the bounded history of visited states
// and the queue of pending phase decisions. The newest history entry is the
// machine's current state.
type Machine struct {
	history *History
	pending []NextState
	initial ecs.Entity
}

var MachineComponent = component.NewComponent[*Machine]()

func NewMachine(initial ecs.Entity, historyLen int) *Machine {
	m := &Machine{
		history: NewHistory(historyLen),
		initial: initial,
	}
	m.history.Push(initial, PhaseEnter)
	return m
}

func (m *Machine) History() *History {
	return m.history
}

func (m *Machine) Initial() ecs.Entity {
	return m.initial
}

// CurrentState is the state of the newest history entry.
func (m *Machine) CurrentState() (ecs.Entity, bool) {
	e, ok := m.history.Current()
	if !ok {
		return 0, false
	}
	return e.State, true
}

func (m *Machine) PushHistory(state ecs.Entity, phase Phase) {
	m.history.Push(state, phase)
}

// PushNext appends a decision to the back of the pending queue.
func (m *Machine) PushNext(n NextState) {
	m.pending = append(m.pending, n)
}

func (m *Machine) PushNextList(ns []NextState) {
	m.pending = append(m.pending, ns...)
}

// PopNext pops the front of the pending queue.
func (m *Machine) PopNext() (NextState, bool) {
	if len(m.pending) == 0 {
		return NextState{}, false
	}
	n := m.pending[0]
	m.pending = m.pending[1:]
	return n, true
}

func (m *Machine) PeekNext() (NextState, bool) {
	if len(m.pending) == 0 {
		return NextState{}, false
	}
	return m.pending[0], true
}

func (m *Machine) PendingLen() int {
	return len(m.pending)
}

// Reset drops history and pending decisions and re-seeds the history with
// the initial state, as if the machine had just been created.
func (m *Machine) Reset() {
	m.history.Clear()
	m.pending = m.pending[:0]
	m.history.Push(m.initial, PhaseEnter)
}

// Terminated marks a machine that ran to completion. The runtime will not
// touch it again until the host clears the marker.
type Terminated struct{}

var TerminatedComponent = component.NewComponent[Terminated]()

// Stationary pauses a machine in place: its action keeps flowing through
// anchor buffers but no callbacks run and no transitions are checked.
type Stationary struct{}

var StationaryComponent = component.NewComponent[Stationary]()

// Subject redirects a machine's callback context at another entity, for
// machines that drive an entity other than themselves.
type Subject struct {
	Target ecs.Entity
}

var SubjectComponent = component.NewComponent[Subject]()
