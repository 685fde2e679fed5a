package game

import "time"

// Timestamped is anything stored in a History.
type Timestamped interface {
	Time() time.Duration
}

// History is a bounded ring of timestamped entries. When full, the oldest
// entry is overwritten.
type History[T Timestamped] struct {
	buf   []T
	start int
	n     int
}

// NewHistory returns an empty history holding at most capacity entries.
func NewHistory[T Timestamped](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{buf: make([]T, capacity)}
}

// Add appends e without checking its timestamp.
func (h *History[T]) Add(e T) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = e
		h.n++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

// AddStrict appends e only if it is newer than the latest entry.
func (h *History[T]) AddStrict(e T) bool {
	if last, ok := h.Latest(); ok && e.Time() <= last.Time() {
		return false
	}
	h.Add(e)
	return true
}

// Latest returns the most recent entry.
func (h *History[T]) Latest() (T, bool) {
	var zero T
	if h.n == 0 {
		return zero, false
	}
	return h.at(h.n - 1), true
}

// StatesInRange returns the entries with from < Time() <= to, oldest first.
func (h *History[T]) StatesInRange(from, to time.Duration) []T {
	var out []T
	for i := 0; i < h.n; i++ {
		e := h.at(i)
		if ts := e.Time(); ts > from && ts <= to {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of stored entries.
func (h *History[T]) Len() int {
	return h.n
}

// Clear drops every entry.
func (h *History[T]) Clear() {
	var zero T
	for i := range h.buf {
		h.buf[i] = zero
	}
	h.start, h.n = 0, 0
}

func (h *History[T]) at(i int) T {
	return h.buf[(h.start+i)%len(h.buf)]
}
