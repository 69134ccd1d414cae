package ecs

import "github.com/milk9111/hsm/ecs/component"

// System updates a world once per tick.
type System interface {
	Update(w *World)
}

// World owns entities, component storage, and the tick event queue.
type World struct {
	entities  entityStore
	stores    map[component.ComponentID]*SparseSet
	scheduler Scheduler
	events    EventQueue
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{stores: map[component.ComponentID]*SparseSet{}}
}

// CreateEntity allocates a new entity.
func (w *World) CreateEntity() Entity {
	return w.entities.create()
}

// DestroyEntity removes all of an entity's components and retires its id.
func (w *World) DestroyEntity(e Entity) bool {
	if w == nil || !w.entities.isAlive(e) {
		return false
	}
	for _, s := range w.stores {
		s.Remove(int(e.id()))
	}
	return w.entities.destroy(e)
}

// IsAlive reports whether an entity handle is valid.
func (w *World) IsAlive(e Entity) bool {
	if w == nil {
		return false
	}
	return w.entities.isAlive(e)
}

func (w *World) storage(id component.ComponentID) *SparseSet {
	if w.stores == nil {
		w.stores = map[component.ComponentID]*SparseSet{}
	}
	s, ok := w.stores[id]
	if !ok {
		s = &SparseSet{}
		w.stores[id] = s
	}
	return s
}

// AddComponent attaches a component value to an entity.
func (w *World) AddComponent(e Entity, id component.ComponentID, v any) error {
	if w == nil || !w.entities.isAlive(e) {
		return component.ErrEntityNotAlive
	}
	if id == 0 {
		return component.ErrInvalidComponentKind
	}
	if v == nil {
		return component.ErrNilComponent
	}
	w.storage(id).Set(int(e.id()), v)
	return nil
}

// GetComponent returns the component value for an entity, if present.
func (w *World) GetComponent(e Entity, id component.ComponentID) (any, bool) {
	if w == nil || !w.entities.isAlive(e) {
		return nil, false
	}
	s, ok := w.stores[id]
	if !ok {
		return nil, false
	}
	v := s.Get(int(e.id()))
	if v == nil {
		return nil, false
	}
	return v, true
}

// RemoveComponent detaches a component from an entity.
func (w *World) RemoveComponent(e Entity, id component.ComponentID) bool {
	if w == nil || !w.entities.isAlive(e) {
		return false
	}
	s, ok := w.stores[id]
	if !ok {
		return false
	}
	return s.Remove(int(e.id()))
}

// HasComponent reports whether an entity carries a component kind.
func (w *World) HasComponent(e Entity, id component.ComponentID) bool {
	if w == nil || !w.entities.isAlive(e) {
		return false
	}
	s, ok := w.stores[id]
	return ok && s.Has(int(e.id()))
}

func (w *World) entityFor(id int) Entity {
	return makeEntity(entityID(id), w.entities.gen[id-1])
}

// Query returns every alive entity carrying all of the given component kinds.
func (w *World) Query(ids ...component.ComponentID) []Entity {
	if w == nil || len(ids) == 0 {
		return nil
	}
	base, ok := w.stores[ids[0]]
	if !ok {
		return nil
	}
	out := make([]Entity, 0, base.Len())
outer:
	for _, id := range base.Entities() {
		for _, cid := range ids[1:] {
			s, ok := w.stores[cid]
			if !ok || !s.Has(id) {
				continue outer
			}
		}
		out = append(out, w.entityFor(id))
	}
	return out
}

// First returns one entity carrying the component kind, if any exists.
func (w *World) First(id component.ComponentID) (Entity, bool) {
	if w == nil {
		return 0, false
	}
	s, ok := w.stores[id]
	if !ok || s.Len() == 0 {
		return 0, false
	}
	return w.entityFor(s.Entities()[0]), true
}

// AddSystem appends a system to the update order.
func (w *World) AddSystem(s System) {
	w.scheduler.Add(s)
}

// Update runs all systems once. Events pushed during the tick stay
// drainable until the next Update begins.
func (w *World) Update() {
	if w == nil {
		return
	}
	w.events.flush()
	w.scheduler.Update(w)
}

// Events returns the world event queue.
func (w *World) Events() *EventQueue {
	if w == nil {
		return nil
	}
	return &w.events
}
