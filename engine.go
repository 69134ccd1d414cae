package hsm

import (
	"github.com/milk9111/hsm/condition"
	"github.com/milk9111/hsm/ecs"
)

type enterCandidate struct {
	child    ecs.Entity
	resolved *condition.Resolved[Context]
}

// Checkable reports whether a machine is currently flagged for transition
// checks.
func (r *Runtime) Checkable(m ecs.Entity) bool {
	_, ok := r.checkable[m]
	return ok
}

func (r *Runtime) checkableSnapshot() []ecs.Entity {
	out := make([]ecs.Entity, 0, len(r.checkable))
	for m := range r.checkable {
		out = append(out, m)
	}
	return out
}

// runEnterPass evaluates the enter guards of each checkable machine's
// child states, in traversal order, first match wins. Machines whose
// current state has children but no guarded children are unflagged without
// a transition; leaf states fall through to the exit pass.
func (r *Runtime) runEnterPass(w *ecs.World) {
	for _, m := range r.checkableSnapshot() {
		mach, tree, cur, ok := r.checkTarget(w, m)
		if !ok {
			continue
		}
		children := tree.TraversalIter(w, cur).Collect()
		if len(children) == 0 {
			continue
		}
		candidates := r.collectCandidates(w, children)
		if len(candidates) == 0 {
			delete(r.checkable, m)
			continue
		}
		for _, cand := range candidates {
			matched, err := cand.resolved.Eval(r.contextFor(w, m, cand.child))
			if err != nil {
				r.log.Warn("enter guard failed", "machine", m, "state", cand.child, "err", err)
				continue
			}
			if !matched {
				continue
			}
			delete(r.checkable, m)
			r.enterChild(w, m, mach, cur, cand.child)
			break
		}
	}
}

func (r *Runtime) collectCandidates(w *ecs.World, children []ecs.Entity) []enterCandidate {
	var out []enterCandidate
	for _, child := range children {
		st := r.stateOf(w, child)
		if st == nil || st.EnterWhen == nil {
			continue
		}
		resolved, err := r.conditions.Resolve(w, st.EnterWhen)
		if err != nil {
			r.log.Warn("enter guard did not resolve", "state", stateName(st, child), "err", err)
			continue
		}
		out = append(out, enterCandidate{child: child, resolved: resolved})
	}
	return out
}

func (r *Runtime) enterChild(w *ecs.World, m ecs.Entity, mach *Machine, cur, child ecs.Entity) {
	st := r.stateOf(w, cur)
	strategy := StrategyNested
	if st != nil {
		strategy = st.Strategy
	}
	switch strategy {
	case StrategyParallel:
		mach.PushNext(NextEntry(child, PhaseEnter))
		r.queuePhase(m, PhaseExit)
	default:
		mach.PushHistory(child, PhaseEnter)
		r.queuePhase(m, PhaseEnter)
	}
}

// runExitPass evaluates the exit guard of each still-checkable machine's
// current state. A match pushes the current state to history with Exit,
// queues the resolved exit walk and flips the machine into Exit.
func (r *Runtime) runExitPass(w *ecs.World) {
	for _, m := range r.checkableSnapshot() {
		mach, tree, cur, ok := r.checkTarget(w, m)
		if !ok {
			continue
		}
		parent, hasParent := tree.Parent(cur)
		if !hasParent {
			continue
		}
		st := r.stateOf(w, cur)
		if st == nil {
			continue
		}
		if st.ExitWhen == nil {
			delete(r.checkable, m)
			continue
		}
		resolved, err := r.conditions.Resolve(w, st.ExitWhen)
		if err != nil {
			r.log.Warn("exit guard did not resolve", "state", stateName(st, cur), "err", err)
			continue
		}
		matched, err := resolved.Eval(r.contextFor(w, m, parent))
		if err != nil {
			r.log.Warn("exit guard failed", "machine", m, "state", stateName(st, cur), "err", err)
			continue
		}
		if !matched {
			continue
		}
		delete(r.checkable, m)
		mach.PushHistory(cur, PhaseExit)
		mach.PushNextList(r.resolveExit(w, tree, cur))
		r.queuePhase(m, PhaseExit)
	}
}

func (r *Runtime) checkTarget(w *ecs.World, m ecs.Entity) (*Machine, *StateTree, ecs.Entity, bool) {
	if !w.IsAlive(m) || ecs.Has(w, m, StationaryComponent) || ecs.Has(w, m, TerminatedComponent) {
		delete(r.checkable, m)
		return nil, nil, 0, false
	}
	mach, ok := ecs.Get(w, m, MachineComponent)
	if !ok {
		r.log.Warn("checkable entity without a machine record", "entity", m)
		delete(r.checkable, m)
		return nil, nil, 0, false
	}
	tree, ok := ecs.Get(w, m, TreeComponent)
	if !ok {
		r.log.Warn("machine without a state tree", "machine", m)
		return nil, nil, 0, false
	}
	cur, ok := mach.CurrentState()
	if !ok {
		r.log.Warn("machine with empty history", "machine", m)
		return nil, nil, 0, false
	}
	return mach, tree, cur, true
}

// resolveExit walks upward from the exiting state's parent and builds the
// decision list: Resurrection resumes the ancestor in Update, Rebirth
// re-enters it, Death exits it and continues. A Death walk that reaches
// the root ends the machine's run without exiting the root. When a Death
// ancestor's strategy differs from the walk's origin, the walk restarts
// from that ancestor under its own strategy.
func (r *Runtime) resolveExit(w *ecs.World, tree *StateTree, from ecs.Entity) []NextState {
	walkStrategy := StrategyNested
	if st := r.stateOf(w, from); st != nil {
		walkStrategy = st.Strategy
	}
	var out []NextState
	s, ok := tree.Parent(from)
	for {
		if !ok {
			return append(out, EndEntry())
		}
		st := r.stateOf(w, s)
		if st == nil {
			return append(out, EndEntry())
		}
		switch st.Behavior {
		case BehaviorResurrection:
			return append(out, NextEntry(s, PhaseUpdate))
		case BehaviorRebirth:
			return append(out, NextEntry(s, PhaseEnter))
		default:
			parent, hasParent := tree.Parent(s)
			if !hasParent {
				return append(out, EndEntry())
			}
			out = append(out, NextEntry(s, PhaseExit))
			if st.Strategy != walkStrategy {
				return append(out, r.resolveExit(w, tree, s)...)
			}
			s, ok = parent, true
		}
	}
}
