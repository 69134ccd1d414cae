package hsm

import (
	"fmt"

	"github.com/milk9111/hsm/condition"
	"github.com/milk9111/hsm/ecs"
)

// Conditions maps guard names to predicates. Guard conditions reference
// predicates by name and are bound here at evaluation time.
type Conditions struct {
	funcs map[string]GuardFunc
}

func NewConditions() *Conditions {
	return &Conditions{funcs: map[string]GuardFunc{}}
}

func (c *Conditions) Insert(name string, fn GuardFunc) {
	c.funcs[name] = fn
}

func (c *Conditions) Remove(name string) {
	delete(c.funcs, name)
}

func (c *Conditions) Get(name string) (GuardFunc, bool) {
	fn, ok := c.funcs[name]
	return fn, ok
}

func (c *Conditions) Len() int {
	return len(c.funcs)
}

// Resolve binds every leaf of cond to a registered predicate, closing over
// w. Fails if any leaf names an unregistered predicate.
func (c *Conditions) Resolve(w *ecs.World, cond *condition.Condition) (*condition.Resolved[Context], error) {
	return condition.Resolve(cond, func(name string) (condition.Pred[Context], bool) {
		fn, ok := c.funcs[name]
		if !ok {
			return nil, false
		}
		return func(ctx Context) (bool, error) {
			return fn(w, ctx)
		}, true
	})
}

// Hooks maps hook names to enter or exit callbacks.
type Hooks struct {
	funcs map[string]HookFunc
}

func NewHooks() *Hooks {
	return &Hooks{funcs: map[string]HookFunc{}}
}

func (h *Hooks) Insert(name string, fn HookFunc) {
	h.funcs[name] = fn
}

func (h *Hooks) Remove(name string) {
	delete(h.funcs, name)
}

func (h *Hooks) Get(name string) (HookFunc, bool) {
	fn, ok := h.funcs[name]
	return fn, ok
}

func (h *Hooks) Run(w *ecs.World, name string, ctx Context) error {
	fn, ok := h.funcs[name]
	if !ok {
		return fmt.Errorf("no hook registered as %q", name)
	}
	return fn(w, ctx)
}
