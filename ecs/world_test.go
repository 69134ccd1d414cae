package ecs

import (
	"testing"

	"github.com/milk9111/hsm/ecs/component"
)

func TestEntityLifecycle(t *testing.T) {
	cases := []struct {
		name         string
		create       int
		destroyIndex int // -1 = none
	}{
		{"single", 1, 0},
		{"three_create_destroy_middle", 3, 1},
		{"none_destroy", 2, -1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := NewWorld()
			ents := make([]Entity, 0, c.create)
			for i := 0; i < c.create; i++ {
				ents = append(ents, w.CreateEntity())
			}
			for _, e := range ents {
				if !w.IsAlive(e) {
					t.Fatalf("entity %v should be alive after create", e)
				}
			}
			if c.destroyIndex >= 0 {
				if !w.DestroyEntity(ents[c.destroyIndex]) {
					t.Fatalf("DestroyEntity should return true for alive entity")
				}
				if w.IsAlive(ents[c.destroyIndex]) {
					t.Fatalf("entity should not be alive after destruction")
				}
			}
		})
	}
}

func TestStaleHandleAfterReuse(t *testing.T) {
	w := NewWorld()
	e := w.CreateEntity()
	if !w.DestroyEntity(e) {
		t.Fatal("destroy failed")
	}
	reused := w.CreateEntity()
	if w.IsAlive(e) {
		t.Fatalf("stale handle %v should be dead", e)
	}
	if !w.IsAlive(reused) {
		t.Fatalf("reused handle %v should be alive", reused)
	}
	if e == reused {
		t.Fatalf("generation should distinguish reused id: %v", e)
	}
}

func intPtr(i int) *int {
	return &i
}

func TestComponentsAddGetRemove(t *testing.T) {
	w := NewWorld()

	h1 := component.NewComponent[*int]()
	h2 := component.NewComponent[string]()

	e1 := w.CreateEntity()
	e2 := w.CreateEntity()

	tests := []struct {
		name     string
		setup    func() error
		check    func(t *testing.T)
		teardown func() bool
	}{
		{
			name:  "add_int_to_e1",
			setup: func() error { return Add(w, e1, h1, intPtr(10)) },
			check: func(t *testing.T) {
				v, ok := Get(w, e1, h1)
				if !ok || *v != 10 {
					t.Fatalf("expected 10, got %v ok=%v", v, ok)
				}
			},
			teardown: func() bool { return Remove(w, e1, h1) },
		},
		{
			name: "add_str_to_both",
			setup: func() error {
				if err := Add(w, e1, h2, "a"); err != nil {
					return err
				}
				return Add(w, e2, h2, "b")
			},
			check: func(t *testing.T) {
				if !Has(w, e1, h2) || !Has(w, e2, h2) {
					t.Fatalf("expected both entities to have string component")
				}
				v, _ := Get(w, e2, h2)
				if v != "b" {
					t.Fatalf("expected b, got %q", v)
				}
			},
			teardown: func() bool { return Remove(w, e1, h2) && Remove(w, e2, h2) },
		},
		{
			name:  "overwrite_keeps_one",
			setup: func() error { return Add(w, e1, h1, intPtr(1)) },
			check: func(t *testing.T) {
				if err := Add(w, e1, h1, intPtr(2)); err != nil {
					t.Fatalf("overwrite failed: %v", err)
				}
				v, ok := Get(w, e1, h1)
				if !ok || *v != 2 {
					t.Fatalf("expected overwritten value 2, got %v", v)
				}
			},
			teardown: func() bool { return Remove(w, e1, h1) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.setup(); err != nil {
				t.Fatalf("setup failed: %v", err)
			}
			tc.check(t)
			if !tc.teardown() {
				t.Fatalf("teardown failed for %s", tc.name)
			}
		})
	}
}

func TestComponentErrors(t *testing.T) {
	w := NewWorld()
	h := component.NewComponent[string]()
	e := w.CreateEntity()
	w.DestroyEntity(e)

	if err := Add(w, e, h, "x"); err != component.ErrEntityNotAlive {
		t.Fatalf("expected ErrEntityNotAlive, got %v", err)
	}
	alive := w.CreateEntity()
	if err := w.AddComponent(alive, h.Kind().ID(), nil); err != component.ErrNilComponent {
		t.Fatalf("expected ErrNilComponent, got %v", err)
	}
}

func TestQueryIntersection(t *testing.T) {
	w := NewWorld()
	e1 := w.CreateEntity()
	e2 := w.CreateEntity()
	e3 := w.CreateEntity()

	ha := component.NewComponent[int]()
	hb := component.NewComponent[int]()

	if err := Add(w, e1, ha, 1); err != nil {
		t.Fatal(err)
	}
	if err := Add(w, e2, ha, 2); err != nil {
		t.Fatal(err)
	}
	if err := Add(w, e2, hb, 3); err != nil {
		t.Fatal(err)
	}
	if err := Add(w, e3, hb, 4); err != nil {
		t.Fatal(err)
	}

	res := w.Query(ha.Kind().ID(), hb.Kind().ID())
	if len(res) != 1 || res[0] != e2 {
		t.Fatalf("expected only e2, got %v", res)
	}

	if got := w.Query(component.NewComponent[bool]().Kind().ID()); got != nil {
		t.Fatalf("expected nil for missing store, got %v", got)
	}
}

func TestQueryIgnoresDestroyed(t *testing.T) {
	w := NewWorld()
	h := component.NewComponent[int]()
	e := w.CreateEntity()
	if err := Add(w, e, h, 1); err != nil {
		t.Fatal(err)
	}
	if !w.DestroyEntity(e) {
		t.Fatal("destroy failed")
	}
	if res := w.Query(h.Kind().ID()); len(res) != 0 {
		t.Fatalf("expected empty after destroy, got %v", res)
	}
}

func TestFirst(t *testing.T) {
	w := NewWorld()
	h := component.NewComponent[int]()
	if _, ok := w.First(h.Kind().ID()); ok {
		t.Fatal("expected no entity before add")
	}
	e := w.CreateEntity()
	if err := Add(w, e, h, 7); err != nil {
		t.Fatal(err)
	}
	got, ok := w.First(h.Kind().ID())
	if !ok || got != e {
		t.Fatalf("expected %v, got %v ok=%v", e, got, ok)
	}
}

type countingSystem struct {
	runs int
}

func (c *countingSystem) Update(_ *World) { c.runs++ }

func TestWorldUpdateRunsSystems(t *testing.T) {
	w := NewWorld()
	sys := &countingSystem{}
	w.AddSystem(sys)
	w.Update()
	w.Update()
	if sys.runs != 2 {
		t.Fatalf("expected 2 runs, got %d", sys.runs)
	}
}
