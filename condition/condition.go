// Package condition implements a boolean expression tree over named atomic
// conditions. Trees are built programmatically or parsed from the textual
// form `And(a, Not(b), Or(c, d))`, then resolved against a name lookup into
// an evaluable form with short-circuit semantics.
package condition

import (
	"fmt"
	"strings"
)

// Kind discriminates the node variants of a Condition tree.
type Kind uint8

const (
	KindID Kind = iota
	KindAnd
	KindOr
	KindNot
)

// Condition is a node in a combinator tree. And/Or nodes always have at
// least two children; violating that at construction panics.
type Condition struct {
	kind     Kind
	name     string
	children []*Condition
}

// ID returns an atomic condition referencing a named callback.
func ID(name string) *Condition {
	return &Condition{kind: KindID, name: name}
}

// And combines two or more conditions. Fewer than two panics.
func And(conditions ...*Condition) *Condition {
	if len(conditions) < 2 {
		panic("condition: And must have at least 2 conditions")
	}
	return &Condition{kind: KindAnd, children: conditions}
}

// Or combines two or more conditions. Fewer than two panics.
func Or(conditions ...*Condition) *Condition {
	if len(conditions) < 2 {
		panic("condition: Or must have at least 2 conditions")
	}
	return &Condition{kind: KindOr, children: conditions}
}

// Not negates a condition. Not(Not(c)) collapses to c.
func Not(c *Condition) *Condition {
	if c.kind == KindNot {
		return c.children[0]
	}
	return &Condition{kind: KindNot, children: []*Condition{c}}
}

// Kind returns the node variant.
func (c *Condition) Kind() Kind {
	return c.kind
}

// Name returns the callback name of an ID node, or "".
func (c *Condition) Name() string {
	return c.name
}

// Children returns the child nodes.
func (c *Condition) Children() []*Condition {
	return c.children
}

// AddAnd chains a condition with And, merging adjacent And nodes so
// a.AddAnd(b).AddAnd(c.AddAnd(d)) yields a single 4-ary And.
func (c *Condition) AddAnd(other *Condition) *Condition {
	if c.kind == KindAnd && other.kind == KindAnd {
		return &Condition{kind: KindAnd, children: append(append([]*Condition{}, c.children...), other.children...)}
	}
	return &Condition{kind: KindAnd, children: []*Condition{c, other}}
}

// AddOr chains a condition with Or, merging adjacent Or nodes.
func (c *Condition) AddOr(other *Condition) *Condition {
	if c.kind == KindOr && other.kind == KindOr {
		return &Condition{kind: KindOr, children: append(append([]*Condition{}, c.children...), other.children...)}
	}
	return &Condition{kind: KindOr, children: []*Condition{c, other}}
}

// AddNot negates the condition, collapsing double negation.
func (c *Condition) AddNot() *Condition {
	return Not(c)
}

// Equal reports structural equality of two trees.
func (c *Condition) Equal(other *Condition) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.kind != other.kind || c.name != other.name || len(c.children) != len(other.children) {
		return false
	}
	for i := range c.children {
		if !c.children[i].Equal(other.children[i]) {
			return false
		}
	}
	return true
}

// String renders the canonical textual form, which Parse round-trips.
func (c *Condition) String() string {
	switch c.kind {
	case KindAnd:
		return "And(" + joinChildren(c.children) + ")"
	case KindOr:
		return "Or(" + joinChildren(c.children) + ")"
	case KindNot:
		return "Not(" + c.children[0].String() + ")"
	default:
		return c.name
	}
}

func joinChildren(children []*Condition) string {
	parts := make([]string, len(children))
	for i, ch := range children {
		parts[i] = ch.String()
	}
	return strings.Join(parts, ", ")
}

// Names returns every distinct callback name referenced by the tree,
// in first-appearance order.
func (c *Condition) Names() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(n *Condition)
	walk = func(n *Condition) {
		if n == nil {
			return
		}
		if n.kind == KindID {
			if !seen[n.name] {
				seen[n.name] = true
				out = append(out, n.name)
			}
			return
		}
		for _, ch := range n.children {
			walk(ch)
		}
	}
	walk(c)
	return out
}

// Pred is an atomic guard callback bound to a leaf during Resolve.
type Pred[In any] func(In) (bool, error)

// Resolved is a combinator tree whose leaves are bound callbacks.
type Resolved[In any] struct {
	kind     Kind
	pred     Pred[In]
	children []*Resolved[In]
}

// Resolve binds every leaf through the lookup. A name the lookup cannot
// supply fails resolution and returns the missing name.
func Resolve[In any](c *Condition, lookup func(name string) (Pred[In], bool)) (*Resolved[In], error) {
	if c == nil {
		return nil, fmt.Errorf("condition: resolve nil condition")
	}
	if c.kind == KindID {
		pred, ok := lookup(c.name)
		if !ok {
			return nil, fmt.Errorf("condition: unknown condition %q", c.name)
		}
		return &Resolved[In]{kind: KindID, pred: pred}, nil
	}
	children := make([]*Resolved[In], len(c.children))
	for i, ch := range c.children {
		resolved, err := Resolve(ch, lookup)
		if err != nil {
			return nil, err
		}
		children[i] = resolved
	}
	return &Resolved[In]{kind: c.kind, children: children}, nil
}

// Eval evaluates the bound tree. And stops at the first false, Or stops at
// the first true, and both propagate a callback error immediately without
// evaluating remaining siblings.
func (r *Resolved[In]) Eval(in In) (bool, error) {
	switch r.kind {
	case KindAnd:
		for _, ch := range r.children {
			ok, err := ch.Eval(in)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case KindOr:
		for _, ch := range r.children {
			ok, err := ch.Eval(in)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case KindNot:
		ok, err := r.children[0].Eval(in)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return r.pred(in)
	}
}
