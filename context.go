package hsm

import (
	"fmt"

	"github.com/milk9111/hsm/ecs"
)

// Context identifies who a callback is running for: the subject entity the
// machine drives, the machine entity itself and the state the callback
// belongs to.
type Context struct {
	Subject ecs.Entity
	Machine ecs.Entity
	State   ecs.Entity
}

func (c Context) String() string {
	return fmt.Sprintf("Context(subject=%s machine=%s state=%s)", c.Subject, c.Machine, c.State)
}

// GuardFunc is a named predicate a guard condition resolves to.
type GuardFunc func(w *ecs.World, ctx Context) (bool, error)

// HookFunc runs once when a state is entered or exited.
type HookFunc func(w *ecs.World, ctx Context) error

// ActionFunc runs every schedule pass over the contexts currently staged
// in its buffer. The returned contexts are re-staged for the next pass; a
// nil return lets the action drain.
type ActionFunc func(w *ecs.World, ctxs []Context) []Context
