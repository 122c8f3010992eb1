package timeseries

// Ring is a fixed-capacity circular buffer. Once full, Append overwrites the
// oldest entry. The zero value is not usable; construct with NewRing.
type Ring[T any] struct {
	buf   []T
	head  int
	count int
}

// NewRing creates a ring buffer with the given capacity. Capacity must be
// positive; callers configure it from bounded history settings.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append inserts v, evicting the oldest entry when the buffer is full.
func (r *Ring[T]) Append(v T) {
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = v
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the configured capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Last returns the most recently appended entry.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	idx := (r.head + r.count - 1) % len(r.buf)
	return r.buf[idx], true
}

// Snapshot returns the entries in insertion order, oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

// Tail returns up to n most recent entries, oldest first.
func (r *Ring[T]) Tail(n int) []T {
	if n <= 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}
	out := make([]T, 0, n)
	start := r.count - n
	for i := start; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
