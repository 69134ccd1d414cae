package hsm

import (
	"github.com/milk9111/hsm/ecs"
	"github.com/milk9111/hsm/ecs/component"
)

type treeNode struct {
	parent    ecs.Entity
	hasParent bool
	children  []ecs.Entity
	traversal TraversalStrategy
}

// StateTree is the parent/child structure of a machine's states. Each node
// carries the traversal strategy used to order its children when the
// runtime looks for transition candidates.
type StateTree struct {
	root  ecs.Entity
	nodes map[ecs.Entity]*treeNode
}

var TreeComponent = component.NewComponent[*StateTree]()

func NewStateTree(root ecs.Entity, traversal TraversalStrategy) *StateTree {
	if traversal == nil {
		traversal = Sequential{}
	}
	return &StateTree{
		root: root,
		nodes: map[ecs.Entity]*treeNode{
			root: {traversal: traversal},
		},
	}
}

func (t *StateTree) Root() ecs.Entity {
	return t.root
}

func (t *StateTree) Len() int {
	return len(t.nodes)
}

func (t *StateTree) Contains(state ecs.Entity) bool {
	_, ok := t.nodes[state]
	return ok
}

// HasLink reports whether from is the parent of to.
func (t *StateTree) HasLink(from, to ecs.Entity) bool {
	n, ok := t.nodes[to]
	return ok && n.hasParent && n.parent == from
}

// Add links child under parent. A child that is already linked elsewhere is
// moved; re-adding under the same parent moves it to the end of the
// sibling order. Adding is refused when the reversed link already exists,
// or when the parent is not in the tree. A nil traversal keeps the child's
// current strategy, defaulting to Sequential.
func (t *StateTree) Add(parent, child ecs.Entity, traversal TraversalStrategy) bool {
	if parent == child {
		return false
	}
	pn, ok := t.nodes[parent]
	if !ok {
		return false
	}
	if t.HasLink(child, parent) {
		return false
	}
	cn, ok := t.nodes[child]
	if !ok {
		cn = &treeNode{}
		t.nodes[child] = cn
	} else if cn.hasParent {
		t.unlink(cn.parent, child)
	}
	if traversal != nil {
		cn.traversal = traversal
	} else if cn.traversal == nil {
		cn.traversal = Sequential{}
	}
	cn.parent = parent
	cn.hasParent = true
	pn.children = append(pn.children, child)
	return true
}

func (t *StateTree) unlink(parent, child ecs.Entity) {
	pn, ok := t.nodes[parent]
	if !ok {
		return
	}
	for i, c := range pn.children {
		if c == child {
			pn.children = append(pn.children[:i], pn.children[i+1:]...)
			return
		}
	}
}

// Remove detaches child from parent and extracts the child's whole subtree
// into a new StateTree rooted at the child. Returns nil when the link does
// not exist.
func (t *StateTree) Remove(parent, child ecs.Entity) *StateTree {
	if !t.HasLink(parent, child) {
		return nil
	}
	t.unlink(parent, child)
	cn := t.nodes[child]
	cn.parent = 0
	cn.hasParent = false

	out := &StateTree{root: child, nodes: map[ecs.Entity]*treeNode{}}
	var move func(s ecs.Entity)
	move = func(s ecs.Entity) {
		n := t.nodes[s]
		delete(t.nodes, s)
		out.nodes[s] = n
		for _, c := range n.children {
			move(c)
		}
	}
	move(child)
	return out
}

// Parent returns the parent of state, false at the root or for unknown
// states.
func (t *StateTree) Parent(state ecs.Entity) (ecs.Entity, bool) {
	n, ok := t.nodes[state]
	if !ok || !n.hasParent {
		return 0, false
	}
	return n.parent, true
}

// Children returns state's children in sibling order.
func (t *StateTree) Children(state ecs.Entity) []ecs.Entity {
	n, ok := t.nodes[state]
	if !ok || len(n.children) == 0 {
		return nil
	}
	out := make([]ecs.Entity, len(n.children))
	copy(out, n.children)
	return out
}

// Path walks upward from state to the root, excluding state itself.
func (t *StateTree) Path(state ecs.Entity) []ecs.Entity {
	var out []ecs.Entity
	for {
		p, ok := t.Parent(state)
		if !ok {
			return out
		}
		out = append(out, p)
		state = p
	}
}

// Traversal returns the strategy used to order state's children.
func (t *StateTree) Traversal(state ecs.Entity) TraversalStrategy {
	n, ok := t.nodes[state]
	if !ok || n.traversal == nil {
		return Sequential{}
	}
	return n.traversal
}

// TraversalIter orders state's children by its traversal strategy and
// returns an iterator consumable from both ends.
func (t *StateTree) TraversalIter(w *ecs.World, state ecs.Entity) *TraversalIter {
	ordered := t.Traversal(state).Order(w, t.Children(state))
	return &TraversalIter{states: ordered}
}

// TraversalIter yields states from either end of an ordered set.
type TraversalIter struct {
	states []ecs.Entity
}

func (it *TraversalIter) Next() (ecs.Entity, bool) {
	if len(it.states) == 0 {
		return 0, false
	}
	s := it.states[0]
	it.states = it.states[1:]
	return s, true
}

func (it *TraversalIter) NextBack() (ecs.Entity, bool) {
	if len(it.states) == 0 {
		return 0, false
	}
	s := it.states[len(it.states)-1]
	it.states = it.states[:len(it.states)-1]
	return s, true
}

func (it *TraversalIter) Len() int {
	return len(it.states)
}

// Collect drains the iterator front to back.
func (it *TraversalIter) Collect() []ecs.Entity {
	out := it.states
	it.states = nil
	return out
}
