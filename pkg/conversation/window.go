package conversation

import "support-assistant/pkg/models"

// Window is a capacity-bounded queue of the most recent turns. Pushing past
// capacity drops the oldest turns.
type Window struct {
	capacity int
	turns    []models.Turn
}

func NewWindow(capacity int, turns ...models.Turn) *Window {
	if capacity < 1 {
		capacity = 1
	}
	w := &Window{capacity: capacity, turns: make([]models.Turn, 0, capacity)}
	w.Push(turns...)
	return w
}

func (w *Window) Push(turns ...models.Turn) {
	w.turns = append(w.turns, turns...)
	if overflow := len(w.turns) - w.capacity; overflow > 0 {
		w.turns = append(w.turns[:0:0], w.turns[overflow:]...)
	}
}

// Turns returns a copy, oldest first
func (w *Window) Turns() []models.Turn {
	out := make([]models.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

func (w *Window) Len() int {
	return len(w.turns)
}

func (w *Window) Capacity() int {
	return w.capacity
}
