package hsm

import (
	"log/slog"

	"github.com/milk9111/hsm/ecs"
	"github.com/milk9111/hsm/internal/logging"
)

// DefaultSchedule is the schedule the Runtime's own Update drives.
const DefaultSchedule = "update"

type actionEntry struct {
	key    string
	fn     ActionFunc
	buffer *ActionBuffer
	anchor bool
}

// Runtime owns the registries and drives machines through their phases.
// Phase changes cascade through a deferred command queue so that guard
// evaluation always reads a consistent snapshot and a whole exit chain
// completes within one tick.
type Runtime struct {
	log *slog.Logger

	conditions *Conditions
	enterHooks *Hooks
	exitHooks  *Hooks

	actions   map[string]*actionEntry
	schedules map[string][]string

	checkable map[ecs.Entity]struct{}
	deferred  []func(w *ecs.World)

	onAttach []func(machine, parent, child ecs.Entity)
	onDetach []func(machine, parent, child ecs.Entity)
}

func NewRuntime(log *slog.Logger) *Runtime {
	if log == nil {
		log = logging.NewNop()
	}
	return &Runtime{
		log:        log,
		conditions: NewConditions(),
		enterHooks: NewHooks(),
		exitHooks:  NewHooks(),
		actions:    map[string]*actionEntry{},
		schedules:  map[string][]string{},
		checkable:  map[ecs.Entity]struct{}{},
	}
}

func (r *Runtime) Conditions() *Conditions { return r.conditions }
func (r *Runtime) EnterHooks() *Hooks      { return r.enterHooks }
func (r *Runtime) ExitHooks() *Hooks       { return r.exitHooks }

// ActionKey builds the buffer key a State's OnUpdate field refers to.
func ActionKey(schedule, name string) string {
	return schedule + ":" + name
}

// RegisterAction adds an action to a schedule. Actions run in registration
// order within their schedule. Re-registering a key replaces the callback
// but keeps the buffer.
func (r *Runtime) RegisterAction(schedule, name string, fn ActionFunc) string {
	key := ActionKey(schedule, name)
	if e, ok := r.actions[key]; ok {
		e.fn = fn
		e.anchor = false
		return key
	}
	r.actions[key] = &actionEntry{key: key, fn: fn, buffer: NewActionBuffer()}
	r.schedules[schedule] = append(r.schedules[schedule], key)
	return key
}

// RegisterAnchor adds a pass-through buffer for a schedule. Anchors have
// no callback: they reflow their contexts every pass so a machine can be
// staged in a schedule without running anything there.
func (r *Runtime) RegisterAnchor(schedule string) string {
	key := schedule
	if _, ok := r.actions[key]; ok {
		return key
	}
	r.actions[key] = &actionEntry{key: key, buffer: NewActionBuffer(), anchor: true}
	r.schedules[schedule] = append(r.schedules[schedule], key)
	return key
}

// Buffer returns the action buffer for a key.
func (r *Runtime) Buffer(key string) (*ActionBuffer, bool) {
	e, ok := r.actions[key]
	if !ok {
		return nil, false
	}
	return e.buffer, true
}

// RunSchedule runs every action registered under schedule, in order. An
// action only runs when its buffer is non-empty; every buffer swaps after
// its slot regardless.
func (r *Runtime) RunSchedule(w *ecs.World, schedule string) {
	for _, key := range r.schedules[schedule] {
		e := r.actions[key]
		if !e.buffer.Empty() {
			if e.anchor {
				e.buffer.Reflow()
			} else {
				out := e.fn(w, e.buffer.Curr())
				if len(out) > 0 {
					e.buffer.Adds(out)
				}
				e.buffer.UpdateInterceptor()
			}
		}
		e.buffer.Update()
	}
}

// Event types the runtime pushes to the world event queue. Attach and
// detach events carry a TreeEvent, termination events carry the machine
// entity.
const (
	EventStateAttached     = "hsm:state_attached"
	EventStateDetached     = "hsm:state_detached"
	EventMachineTerminated = "hsm:machine_terminated"
)

// TreeEvent is the payload of attach and detach events.
type TreeEvent struct {
	Machine ecs.Entity
	Parent  ecs.Entity
	Child   ecs.Entity
}

// OnAttach registers an observer for state attachment.
func (r *Runtime) OnAttach(fn func(machine, parent, child ecs.Entity)) {
	r.onAttach = append(r.onAttach, fn)
}

// OnDetach registers an observer for state detachment.
func (r *Runtime) OnDetach(fn func(machine, parent, child ecs.Entity)) {
	r.onDetach = append(r.onDetach, fn)
}

// AttachState links child under parent in the machine's tree and notifies
// attach observers.
func (r *Runtime) AttachState(w *ecs.World, machine, parent, child ecs.Entity, traversal TraversalStrategy) bool {
	tree, ok := ecs.Get(w, machine, TreeComponent)
	if !ok {
		r.log.Warn("attach on machine without a state tree", "machine", machine)
		return false
	}
	if !tree.Add(parent, child, traversal) {
		return false
	}
	for _, fn := range r.onAttach {
		fn(machine, parent, child)
	}
	w.Events().Push(ecs.Event{Type: EventStateAttached, Data: TreeEvent{Machine: machine, Parent: parent, Child: child}})
	return true
}

// DetachState removes child from under parent and returns the extracted
// subtree, notifying detach observers.
func (r *Runtime) DetachState(w *ecs.World, machine, parent, child ecs.Entity) *StateTree {
	tree, ok := ecs.Get(w, machine, TreeComponent)
	if !ok {
		r.log.Warn("detach on machine without a state tree", "machine", machine)
		return nil
	}
	sub := tree.Remove(parent, child)
	if sub == nil {
		return nil
	}
	for _, fn := range r.onDetach {
		fn(machine, parent, child)
	}
	w.Events().Push(ecs.Event{Type: EventStateDetached, Data: TreeEvent{Machine: machine, Parent: parent, Child: child}})
	return sub
}

// SpawnMachine creates a machine entity around an already-built tree and
// starts it in Enter on its root.
func (r *Runtime) SpawnMachine(w *ecs.World, tree *StateTree, historyLen int) ecs.Entity {
	m := w.CreateEntity()
	ecs.Add(w, m, MachineComponent, NewMachine(tree.Root(), historyLen))
	ecs.Add(w, m, TreeComponent, tree)
	r.queuePhase(m, PhaseEnter)
	return m
}

// Start begins or restarts phase processing for an existing machine.
func (r *Runtime) Start(w *ecs.World, m ecs.Entity) {
	r.queuePhase(m, PhaseEnter)
}

func (r *Runtime) subjectOf(w *ecs.World, m ecs.Entity) ecs.Entity {
	if s, ok := ecs.Get(w, m, SubjectComponent); ok {
		return s.Target
	}
	return m
}

func (r *Runtime) contextFor(w *ecs.World, m, state ecs.Entity) Context {
	return Context{Subject: r.subjectOf(w, m), Machine: m, State: state}
}

func (r *Runtime) queuePhase(m ecs.Entity, phase Phase) {
	r.deferred = append(r.deferred, func(w *ecs.World) {
		r.applyPhase(w, m, phase)
	})
}

// flush drains the deferred queue, including commands queued while
// draining, so a whole exit cascade resolves in one call.
func (r *Runtime) flush(w *ecs.World) {
	for len(r.deferred) > 0 {
		cmd := r.deferred[0]
		r.deferred = r.deferred[1:]
		cmd(w)
	}
}

func (r *Runtime) applyPhase(w *ecs.World, m ecs.Entity, phase Phase) {
	if !w.IsAlive(m) {
		return
	}
	ecs.Add(w, m, PhaseComponent, phase)
	mach, ok := ecs.Get(w, m, MachineComponent)
	if !ok {
		r.log.Warn("phase set on entity without a machine record", "entity", m, "phase", phase)
		return
	}
	if ecs.Has(w, m, StationaryComponent) {
		return
	}

	switch phase {
	case PhaseEnter:
		if n, ok := mach.PeekNext(); ok && !n.End {
			mach.PopNext()
			mach.PushHistory(n.State, PhaseEnter)
		}
		cur, ok := mach.CurrentState()
		if !ok {
			r.log.Warn("machine entered with empty history", "machine", m)
			return
		}
		st := r.stateOf(w, cur)
		if st != nil && st.OnEnter != "" {
			if err := r.enterHooks.Run(w, st.OnEnter, r.contextFor(w, m, cur)); err != nil {
				r.log.Warn("enter hook failed", "machine", m, "state", stateName(st, cur), "err", err)
			}
		}
		r.queuePhase(m, PhaseUpdate)

	case PhaseUpdate:
		cur, ok := mach.CurrentState()
		if !ok {
			r.log.Warn("machine updated with empty history", "machine", m)
			return
		}
		st := r.stateOf(w, cur)
		if st != nil && st.OnUpdate != "" {
			if buf, ok := r.Buffer(st.OnUpdate); ok {
				buf.Add(r.contextFor(w, m, cur))
			} else {
				r.log.Warn("state names an unregistered action", "state", stateName(st, cur), "key", st.OnUpdate)
			}
		}
		r.checkable[m] = struct{}{}

	case PhaseExit:
		cur, ok := mach.CurrentState()
		if !ok {
			r.log.Warn("machine exited with empty history", "machine", m)
			return
		}
		st := r.stateOf(w, cur)
		ctx := r.contextFor(w, m, cur)
		if st != nil && st.OnUpdate != "" {
			if buf, ok := r.Buffer(st.OnUpdate); ok {
				buf.RemoveInterceptor(ctx)
				buf.AddFilter(ctx)
			}
		}
		if st != nil && st.OnExit != "" {
			if err := r.exitHooks.Run(w, st.OnExit, ctx); err != nil {
				r.log.Warn("exit hook failed", "machine", m, "state", stateName(st, cur), "err", err)
			}
		}
		n, ok := mach.PopNext()
		switch {
		case !ok:
			r.queuePhase(m, PhaseUpdate)
		case n.End:
			r.terminate(w, m)
		default:
			mach.PushHistory(n.State, n.Phase)
			r.queuePhase(m, n.Phase)
		}
	}
}

func (r *Runtime) terminate(w *ecs.World, m ecs.Entity) {
	ecs.Add(w, m, TerminatedComponent, Terminated{})
	ecs.Add(w, m, StationaryComponent, Stationary{})
	delete(r.checkable, m)
	w.Events().Push(ecs.Event{Type: EventMachineTerminated, Data: m})
	r.log.Debug("machine terminated", "machine", m)
}

// ClearTerminated resets a terminated machine to its initial state and
// restarts it in Enter. No-op for machines that are not terminated.
func (r *Runtime) ClearTerminated(w *ecs.World, m ecs.Entity) {
	if !ecs.Has(w, m, TerminatedComponent) {
		return
	}
	mach, ok := ecs.Get(w, m, MachineComponent)
	if !ok {
		return
	}
	ecs.Remove(w, m, TerminatedComponent)
	ecs.Remove(w, m, StationaryComponent)
	mach.Reset()
	r.queuePhase(m, PhaseEnter)
	r.flush(w)
}

// SetStationary pauses a machine. Its staged action context keeps flowing
// through anchor buffers but callbacks and transition checks stop.
func (r *Runtime) SetStationary(w *ecs.World, m ecs.Entity) {
	if !ecs.Has(w, m, MachineComponent) {
		r.log.Warn("stationary set on entity without a machine record", "entity", m)
		return
	}
	ecs.Add(w, m, StationaryComponent, Stationary{})
	delete(r.checkable, m)
}

// ClearStationary resumes a paused machine in Update.
func (r *Runtime) ClearStationary(w *ecs.World, m ecs.Entity) {
	if !ecs.Has(w, m, StationaryComponent) {
		return
	}
	if ecs.Has(w, m, TerminatedComponent) {
		return
	}
	ecs.Remove(w, m, StationaryComponent)
	r.queuePhase(m, PhaseUpdate)
	r.flush(w)
}

func (r *Runtime) stateOf(w *ecs.World, e ecs.Entity) *State {
	st, ok := ecs.Get(w, e, StateComponent)
	if !ok {
		r.log.Warn("state entity without a state component", "entity", e)
		return nil
	}
	return st
}

func stateName(st *State, e ecs.Entity) string {
	if st != nil && st.Name != "" {
		return st.Name
	}
	return e.String()
}

// Update drives one tick: the default action schedule, both transition
// passes, then the deferred phase cascade. Satisfies ecs.System so the
// runtime slots into a world's scheduler.
func (r *Runtime) Update(w *ecs.World) {
	r.RunSchedule(w, DefaultSchedule)
	r.runEnterPass(w)
	r.runExitPass(w)
	r.flush(w)
}
