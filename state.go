package hsm

import (
	"fmt"

	"github.com/milk9111/hsm/condition"
	"github.com/milk9111/hsm/ecs/component"
)

// TransitionStrategy controls how a machine hands control to a winning
// child state.
type TransitionStrategy uint8

const (
	// StrategyNested pushes the child onto the history without exiting the
	// parent. The parent resumes when the child's exit walk reaches it.
	StrategyNested TransitionStrategy = iota
	// StrategyParallel exits the parent before the child enters.
	StrategyParallel
)

func (s TransitionStrategy) String() string {
	switch s {
	case StrategyNested:
		return "Nested"
	case StrategyParallel:
		return "Parallel"
	default:
		return "Unknown"
	}
}

func ParseStrategy(s string) (TransitionStrategy, error) {
	switch s {
	case "", "nested", "Nested":
		return StrategyNested, nil
	case "parallel", "Parallel":
		return StrategyParallel, nil
	default:
		return 0, fmt.Errorf("unknown transition strategy %q", s)
	}
}

// ExitBehavior controls what happens to a state when a descendant's exit
// walk passes through it.
type ExitBehavior uint8

const (
	// BehaviorRebirth re-enters the state from scratch.
	BehaviorRebirth ExitBehavior = iota
	// BehaviorResurrection resumes the state in Update without re-entering.
	BehaviorResurrection
	// BehaviorDeath exits the state and lets the walk continue upward.
	BehaviorDeath
)

func (b ExitBehavior) String() string {
	switch b {
	case BehaviorRebirth:
		return "Rebirth"
	case BehaviorResurrection:
		return "Resurrection"
	case BehaviorDeath:
		return "Death"
	default:
		return "Unknown"
	}
}

func ParseBehavior(s string) (ExitBehavior, error) {
	switch s {
	case "", "rebirth", "Rebirth":
		return BehaviorRebirth, nil
	case "resurrection", "Resurrection":
		return BehaviorResurrection, nil
	case "death", "Death":
		return BehaviorDeath, nil
	default:
		return 0, fmt.Errorf("unknown exit behavior %q", s)
	}
}

// State describes one node of a machine's state tree: its guards, its
// callbacks and how transitions through it behave. Guard conditions are
// stored unresolved and bound to predicates at evaluation time. Callback
// fields name entries in the runtime's registries; empty means none.
type State struct {
	Name     string
	Strategy TransitionStrategy
	Behavior ExitBehavior
	Priority uint32

	// EnterWhen guards entry into this state from its parent. States
	// without one are never transition candidates.
	EnterWhen *condition.Condition
	// ExitWhen guards exit from this state back toward its parent.
	ExitWhen *condition.Condition

	OnEnter  string
	OnUpdate string
	OnExit   string
}

var StateComponent = component.NewComponent[*State]()
