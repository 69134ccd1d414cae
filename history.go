package hsm

import "github.com/milk9111/hsm/ecs"

// HistoryEntry records a state the machine occupied and the phase it was
// occupying it with when the entry was pushed.
type HistoryEntry struct {
	State ecs.Entity
	Phase Phase
}

// History is a bounded ring of the states a machine has passed through.
// The newest entry is the machine's current state. When the ring is full
// the oldest entry is dropped.
type History struct {
	entries []HistoryEntry
	max     int
}

const DefaultHistoryLen = 16

func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistoryLen
	}
	return &History{
		entries: make([]HistoryEntry, 0, max),
		max:     max,
	}
}

func (h *History) Push(state ecs.Entity, phase Phase) {
	if len(h.entries) == h.max {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, HistoryEntry{State: state, Phase: phase})
}

// Current returns the newest entry, false if the history is empty.
func (h *History) Current() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Previous returns the entry pushed before the current one.
func (h *History) Previous() (HistoryEntry, bool) {
	if len(h.entries) < 2 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-2], true
}

// At indexes from the newest entry backwards: At(0) == Current.
func (h *History) At(i int) (HistoryEntry, bool) {
	if i < 0 || i >= len(h.entries) {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1-i], true
}

func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns the entries oldest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Clear() {
	h.entries = h.entries[:0]
}

// ClearExceptCurrent drops everything but the newest entry.
func (h *History) ClearExceptCurrent() {
	if len(h.entries) <= 1 {
		return
	}
	h.entries[0] = h.entries[len(h.entries)-1]
	h.entries = h.entries[:1]
}
