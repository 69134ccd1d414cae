package hsm

import (
	"sort"

	"github.com/milk9111/hsm/ecs"
)

// TraversalStrategy orders a node's children before the runtime evaluates
// their enter guards. The first ordered child whose guard passes wins, so
// the strategy decides transition priority among siblings.
type TraversalStrategy interface {
	Order(w *ecs.World, children []ecs.Entity) []ecs.Entity
	Name() string
}

// Sequential keeps the sibling order the states were added in.
type Sequential struct{}

func (Sequential) Order(_ *ecs.World, children []ecs.Entity) []ecs.Entity {
	return children
}

func (Sequential) Name() string { return "sequential" }

// Reverse walks siblings newest first.
type Reverse struct{}

func (Reverse) Order(_ *ecs.World, children []ecs.Entity) []ecs.Entity {
	out := make([]ecs.Entity, len(children))
	for i, c := range children {
		out[len(children)-1-i] = c
	}
	return out
}

func (Reverse) Name() string { return "reverse" }

// Priority orders siblings by their State priority, highest first. Ties
// keep the original sibling order. States without a State component sort
// last.
type Priority struct{}

func (Priority) Order(w *ecs.World, children []ecs.Entity) []ecs.Entity {
	out := make([]ecs.Entity, len(children))
	copy(out, children)
	sort.SliceStable(out, func(i, j int) bool {
		return statePriority(w, out[i]) > statePriority(w, out[j])
	})
	return out
}

func (Priority) Name() string { return "priority" }

func statePriority(w *ecs.World, e ecs.Entity) uint32 {
	st, ok := ecs.Get(w, e, StateComponent)
	if !ok || st == nil {
		return 0
	}
	return st.Priority
}

func ParseTraversal(s string) (TraversalStrategy, error) {
	switch s {
	case "", "sequential":
		return Sequential{}, nil
	case "reverse":
		return Reverse{}, nil
	case "priority":
		return Priority{}, nil
	default:
		return nil, &UnknownTraversalError{Name: s}
	}
}

type UnknownTraversalError struct {
	Name string
}

func (e *UnknownTraversalError) Error() string {
	return "unknown traversal strategy " + e.Name
}
