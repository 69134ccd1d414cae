package prefabs

import (
	"fmt"

	"github.com/milk9111/hsm"
	"github.com/milk9111/hsm/condition"
	"github.com/milk9111/hsm/ecs"
	"github.com/milk9111/hsm/script"
)

// Built is a machine instantiated from a spec.
type Built struct {
	Machine ecs.Entity
	Tree    *hsm.StateTree
	States  map[string]ecs.Entity
}

// ScriptCallback is the callback value that binds a state's script
// lifecycle instead of a registry name.
const ScriptCallback = "script"

// Build instantiates a machine spec: one entity per state, the state
// tree, and the machine entity queued to enter its root. Guard names that
// are not already registered are bound to the state's script when it has
// one; script-backed callbacks register under "<machine>/<state>" keys.
func Build(w *ecs.World, rt *hsm.Runtime, scripts *script.Runtime, spec MachineSpec) (*Built, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	schedule := spec.Schedule
	if schedule == "" {
		schedule = hsm.DefaultSchedule
	}

	built := &Built{States: make(map[string]ecs.Entity, len(spec.States))}
	var tree *hsm.StateTree

	for _, ss := range spec.States {
		scriptPath := ss.Script
		if scriptPath == "" {
			scriptPath = spec.Script
		}

		st := &hsm.State{Name: ss.Name, Priority: ss.Priority}
		var err error
		if st.Strategy, err = hsm.ParseStrategy(ss.Strategy); err != nil {
			return nil, fmt.Errorf("machine %q state %q: %w", spec.Name, ss.Name, err)
		}
		if st.Behavior, err = hsm.ParseBehavior(ss.Behavior); err != nil {
			return nil, fmt.Errorf("machine %q state %q: %w", spec.Name, ss.Name, err)
		}
		traversal, err := hsm.ParseTraversal(ss.Traversal)
		if err != nil {
			return nil, fmt.Errorf("machine %q state %q: %w", spec.Name, ss.Name, err)
		}

		if st.EnterWhen, err = parseGuard(rt, scripts, scriptPath, ss.EnterWhen); err != nil {
			return nil, fmt.Errorf("machine %q state %q enter_when: %w", spec.Name, ss.Name, err)
		}
		if st.ExitWhen, err = parseGuard(rt, scripts, scriptPath, ss.ExitWhen); err != nil {
			return nil, fmt.Errorf("machine %q state %q exit_when: %w", spec.Name, ss.Name, err)
		}

		key := spec.Name + "/" + ss.Name
		if st.OnEnter, err = bindHook(rt.EnterHooks(), scripts, scriptPath, ss.OnEnter, key+":enter", (*script.Runtime).EnterHook); err != nil {
			return nil, fmt.Errorf("machine %q state %q on_enter: %w", spec.Name, ss.Name, err)
		}
		if st.OnExit, err = bindHook(rt.ExitHooks(), scripts, scriptPath, ss.OnExit, key+":exit", (*script.Runtime).ExitHook); err != nil {
			return nil, fmt.Errorf("machine %q state %q on_exit: %w", spec.Name, ss.Name, err)
		}
		switch {
		case ss.OnUpdate == ScriptCallback:
			if scripts == nil || scriptPath == "" {
				return nil, fmt.Errorf("machine %q state %q on_update: no script to bind", spec.Name, ss.Name)
			}
			st.OnUpdate = rt.RegisterAction(schedule, key, scripts.Action(scriptPath))
		case ss.OnUpdate != "":
			st.OnUpdate = hsm.ActionKey(schedule, ss.OnUpdate)
		}

		e := w.CreateEntity()
		ecs.Add(w, e, hsm.StateComponent, st)
		built.States[ss.Name] = e

		if ss.Name == spec.Root {
			tree = hsm.NewStateTree(e, traversal)
			continue
		}
		parent := built.States[ss.Parent]
		if !tree.Add(parent, e, traversal) {
			return nil, fmt.Errorf("machine %q: cannot link %q under %q", spec.Name, ss.Name, ss.Parent)
		}
	}

	built.Tree = tree
	built.Machine = rt.SpawnMachine(w, tree, spec.HistoryLen)
	return built, nil
}

// parseGuard parses a guard expression and binds any predicate names the
// runtime does not know yet to the state's script.
func parseGuard(rt *hsm.Runtime, scripts *script.Runtime, scriptPath, expr string) (*condition.Condition, error) {
	if expr == "" {
		return nil, nil
	}
	cond, err := condition.Parse(expr)
	if err != nil {
		return nil, err
	}
	for _, name := range cond.Names() {
		if _, ok := rt.Conditions().Get(name); ok {
			continue
		}
		if scripts == nil || scriptPath == "" {
			return nil, fmt.Errorf("predicate %q is not registered and there is no script to bind it to", name)
		}
		rt.Conditions().Insert(name, scripts.Guard(scriptPath, name))
	}
	return cond, nil
}

func bindHook(hooks *hsm.Hooks, scripts *script.Runtime, scriptPath, value, key string, of func(*script.Runtime, string) hsm.HookFunc) (string, error) {
	switch {
	case value == "":
		return "", nil
	case value == ScriptCallback:
		if scripts == nil || scriptPath == "" {
			return "", fmt.Errorf("no script to bind")
		}
		hooks.Insert(key, of(scripts, scriptPath))
		return key, nil
	default:
		return value, nil
	}
}
