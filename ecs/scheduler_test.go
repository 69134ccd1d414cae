package ecs

import "testing"

type orderedSystem struct {
	name string
	log  *[]string
}

func (s *orderedSystem) Update(_ *World) { *s.log = append(*s.log, s.name) }

func TestSchedulerRunsInOrder(t *testing.T) {
	var log []string
	s := NewScheduler(
		&orderedSystem{name: "a", log: &log},
		&orderedSystem{name: "b", log: &log},
	)
	s.Add(nil)
	s.Add(&orderedSystem{name: "c", log: &log})

	s.Update(NewWorld())
	want := []string{"a", "b", "c"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, log)
		}
	}
}

func TestSchedulerSystemsReturnsCopy(t *testing.T) {
	s := NewScheduler(&countingSystem{})
	got := s.Systems()
	if len(got) != 1 {
		t.Fatalf("expected 1 system, got %d", len(got))
	}
	got[0] = nil
	if s.Systems()[0] == nil {
		t.Fatal("mutating the returned slice changed the scheduler")
	}
}

func TestEventQueuePushDrain(t *testing.T) {
	var q EventQueue
	if got := q.Drain(); got != nil {
		t.Fatalf("expected nil drain on empty queue, got %v", got)
	}

	q.Push(Event{Type: "first", Data: 1})
	q.Push(Event{Type: "second", Data: 2})
	got := q.Drain()
	if len(got) != 2 || got[0].Type != "first" || got[1].Type != "second" {
		t.Fatalf("unexpected drain order: %v", got)
	}
	if q.Drain() != nil {
		t.Fatal("drain did not empty the queue")
	}
}

type eventPushingSystem struct{}

func (eventPushingSystem) Update(w *World) {
	w.Events().Push(Event{Type: "ticked"})
}

func TestWorldEventsSurviveUntilNextTick(t *testing.T) {
	w := NewWorld()
	w.AddSystem(eventPushingSystem{})

	w.Update()
	if got := w.Events().Drain(); len(got) != 1 || got[0].Type != "ticked" {
		t.Fatalf("expected the tick's event after Update, got %v", got)
	}

	// An undrained event is dropped when the next tick begins.
	w.Update()
	w.Events().Push(Event{Type: "stale"})
	w.Update()
	got := w.Events().Drain()
	if len(got) != 1 || got[0].Type != "ticked" {
		t.Fatalf("expected only the fresh tick event, got %v", got)
	}
}
