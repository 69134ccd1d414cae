package hsm

import (
	"testing"

	"github.com/milk9111/hsm/ecs"
)

func setAction(h *harness, state ecs.Entity, key string) {
	st, ok := ecs.Get(h.w, state, StateComponent)
	if !ok {
		h.t.Fatal("state has no component")
	}
	st.OnUpdate = key
}

func TestActionRunsOverStagedContexts(t *testing.T) {
	h := newHarness(t)
	root := h.state("root", StrategyNested, BehaviorDeath, "", "")

	runs := 0
	key := h.rt.RegisterAction(DefaultSchedule, "pulse", func(_ *ecs.World, ctxs []Context) []Context {
		runs += len(ctxs)
		return ctxs
	})
	setAction(h, root, key)

	m := h.spawn(NewStateTree(root, nil))
	h.tick() // enter, stage context
	h.tick() // staged context swaps in
	h.tick() // first run
	h.tick() // keeps running while re-staged
	if runs != 2 {
		t.Fatalf("expected 2 runs, got %d", runs)
	}

	buf, ok := h.rt.Buffer(key)
	if !ok {
		t.Fatal("buffer missing")
	}
	want := Context{Subject: m, Machine: m, State: root}
	if got := buf.Curr(); len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected staged context %v", got)
	}
}

func TestActionNilReturnDrains(t *testing.T) {
	h := newHarness(t)
	root := h.state("root", StrategyNested, BehaviorDeath, "", "")

	runs := 0
	key := h.rt.RegisterAction(DefaultSchedule, "once", func(_ *ecs.World, ctxs []Context) []Context {
		runs++
		return nil
	})
	setAction(h, root, key)

	m := h.spawn(NewStateTree(root, nil))
	for i := 0; i < 5; i++ {
		h.tick()
	}
	if runs != 1 {
		t.Fatalf("nil return should stop the action, got %d runs", runs)
	}

	// The dropped context is intercepted and cannot sneak back in.
	buf, _ := h.rt.Buffer(key)
	buf.Add(Context{Subject: m, Machine: m, State: root})
	buf.Update()
	if !buf.Empty() {
		t.Fatalf("dropped context should stay intercepted, got %v", buf.Curr())
	}
}

func TestExitFiltersActionContext(t *testing.T) {
	h := newHarness(t)
	root := h.state("root", StrategyNested, BehaviorRebirth, "", "")
	child := h.state("child", StrategyNested, BehaviorDeath, "go_a", "is_down")

	runs := 0
	key := h.rt.RegisterAction(DefaultSchedule, "work", func(_ *ecs.World, ctxs []Context) []Context {
		runs += len(ctxs)
		return ctxs
	})
	setAction(h, child, key)

	tree := NewStateTree(root, nil)
	tree.Add(root, child, nil)
	h.spawn(tree)

	h.tick()
	h.tick("go_a")   // child enters and stages its context
	h.tick()         // context swaps in
	h.tick()         // action runs
	h.tick("is_down") // exit filters the context out
	h.tick()          // the filter lands at this swap

	buf, _ := h.rt.Buffer(key)
	ranBefore := runs
	h.tick()
	h.tick()
	if !buf.Empty() {
		t.Fatalf("exit should filter the context, got %v", buf.Curr())
	}
	if runs != ranBefore {
		t.Fatalf("action must stop after exit, runs went %d -> %d", ranBefore, runs)
	}
}

func TestAnchorPreservesStationaryContext(t *testing.T) {
	h := newHarness(t)
	root := h.state("root", StrategyNested, BehaviorDeath, "", "")
	key := h.rt.RegisterAnchor(DefaultSchedule)
	setAction(h, root, key)

	m := h.spawn(NewStateTree(root, nil))
	h.tick()
	h.tick()

	h.rt.SetStationary(h.w, m)
	buf, _ := h.rt.Buffer(key)
	for i := 0; i < 4; i++ {
		h.tick()
		if buf.Empty() {
			t.Fatalf("anchor should keep reflowing the context at tick %d", i)
		}
	}
	if h.rt.Checkable(m) {
		t.Fatal("stationary machine must not be transition checked")
	}

	h.rt.ClearStationary(h.w, m)
	if !h.rt.Checkable(m) {
		t.Fatal("resumed machine should be checkable again")
	}
}

func TestStationaryFreezesTransitions(t *testing.T) {
	h := newHarness(t)
	root := h.state("root", StrategyNested, BehaviorDeath, "", "")
	child := h.state("child", StrategyNested, BehaviorDeath, "go_a", "")
	tree := NewStateTree(root, nil)
	tree.Add(root, child, nil)
	m := h.spawn(tree)

	h.tick()
	h.rt.SetStationary(h.w, m)
	h.tick("go_a")
	h.tick("go_a")
	if h.current(m) != "root" {
		t.Fatalf("stationary machine moved to %s", h.current(m))
	}

	h.rt.ClearStationary(h.w, m)
	h.tick("go_a")
	if h.current(m) != "child" {
		t.Fatalf("resumed machine should transition, got %s", h.current(m))
	}
}

func TestSubjectRedirectsCallbackContext(t *testing.T) {
	h := newHarness(t)
	target := h.w.CreateEntity()

	var seen Context
	h.rt.EnterHooks().Insert("capture", func(_ *ecs.World, ctx Context) error {
		seen = ctx
		return nil
	})
	root := h.state("root", StrategyNested, BehaviorDeath, "", "")
	st, _ := ecs.Get(h.w, root, StateComponent)
	st.OnEnter = "capture"

	m := h.spawn(NewStateTree(root, nil))
	if err := ecs.Add(h.w, m, SubjectComponent, Subject{Target: target}); err != nil {
		t.Fatal(err)
	}
	h.tick()

	if seen.Subject != target {
		t.Fatalf("expected subject %v, got %v", target, seen.Subject)
	}
	if seen.Machine != m || seen.State != root {
		t.Fatalf("unexpected context %v", seen)
	}
}

func TestRunScheduleOrdering(t *testing.T) {
	h := newHarness(t)
	var order []string
	k1 := h.rt.RegisterAction("custom", "first", func(_ *ecs.World, ctxs []Context) []Context {
		order = append(order, "first")
		return ctxs
	})
	k2 := h.rt.RegisterAction("custom", "second", func(_ *ecs.World, ctxs []Context) []Context {
		order = append(order, "second")
		return ctxs
	})

	b1, _ := h.rt.Buffer(k1)
	b2, _ := h.rt.Buffer(k2)
	b1.Add(ctxFor(1))
	b2.Add(ctxFor(2))
	b1.Update()
	b2.Update()

	h.rt.RunSchedule(h.w, "custom")
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("actions should run in registration order, got %v", order)
	}
}

func TestRunScheduleSkipsEmptyBuffers(t *testing.T) {
	h := newHarness(t)
	ran := false
	h.rt.RegisterAction("custom", "noop", func(_ *ecs.World, ctxs []Context) []Context {
		ran = true
		return ctxs
	})
	h.rt.RunSchedule(h.w, "custom")
	if ran {
		t.Fatal("action must not run with an empty buffer")
	}
}

func TestLifecycleOpsOnBareEntityAreSafe(t *testing.T) {
	h := newHarness(t)
	e := h.w.CreateEntity()
	h.rt.SetStationary(h.w, e)
	h.rt.ClearStationary(h.w, e)
	h.rt.ClearTerminated(h.w, e)
	if h.rt.Checkable(e) {
		t.Fatal("bare entity should never become checkable")
	}
}

func TestAttachDetachObservers(t *testing.T) {
	h := newHarness(t)
	root := h.state("root", StrategyNested, BehaviorDeath, "", "")
	child := h.state("child", StrategyNested, BehaviorDeath, "", "")
	m := h.spawn(NewStateTree(root, nil))

	var attached, detached int
	h.rt.OnAttach(func(machine, parent, c ecs.Entity) { attached++ })
	h.rt.OnDetach(func(machine, parent, c ecs.Entity) { detached++ })

	if !h.rt.AttachState(h.w, m, root, child, nil) {
		t.Fatal("attach failed")
	}
	if attached != 1 {
		t.Fatalf("expected 1 attach notification, got %d", attached)
	}

	if sub := h.rt.DetachState(h.w, m, root, child); sub == nil || sub.Root() != child {
		t.Fatalf("detach should extract the child subtree, got %v", sub)
	}
	if detached != 1 {
		t.Fatalf("expected 1 detach notification, got %d", detached)
	}

	// Refused structural edits notify nobody.
	if h.rt.AttachState(h.w, m, child, root, nil) {
		t.Fatal("attach under a detached node should fail")
	}
	if attached != 1 {
		t.Fatalf("failed attach must not notify, got %d", attached)
	}

	// Successful edits also land on the world event queue; refused ones
	// do not.
	events := h.w.Events().Drain()
	if len(events) != 2 {
		t.Fatalf("expected attach and detach events, got %v", events)
	}
	if events[0].Type != EventStateAttached || events[1].Type != EventStateDetached {
		t.Fatalf("unexpected event types: %v", events)
	}
	want := TreeEvent{Machine: m, Parent: root, Child: child}
	if events[0].Data != want || events[1].Data != want {
		t.Fatalf("unexpected event payloads: %v", events)
	}
}

func TestTerminationPushesWorldEvent(t *testing.T) {
	h := newHarness(t)
	root := h.state("root", StrategyNested, BehaviorDeath, "", "")
	child := h.state("child", StrategyNested, BehaviorDeath, "go_a", "is_down")
	tree := NewStateTree(root, nil)
	tree.Add(root, child, nil)
	m := h.spawn(tree)

	h.tick()
	h.tick("go_a")
	for _, evt := range h.w.Events().Drain() {
		if evt.Type == EventMachineTerminated {
			t.Fatal("no termination event before the machine ends")
		}
	}

	h.tick("is_down")
	events := h.w.Events().Drain()
	if len(events) != 1 || events[0].Type != EventMachineTerminated {
		t.Fatalf("expected one termination event, got %v", events)
	}
	if events[0].Data != m {
		t.Fatalf("expected machine %v in payload, got %v", m, events[0].Data)
	}

	// The queue clears when the next tick begins.
	h.tick()
	if h.w.Events().Drain() != nil {
		t.Fatal("stale events must not survive into the next tick")
	}
}
