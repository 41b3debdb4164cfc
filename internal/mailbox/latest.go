// Package mailbox provides a single-slot hand-off where a new value replaces
// any value the consumer has not taken yet.
package mailbox

import "sync"

type Latest[T any] struct {
	mu      sync.Mutex
	value   T
	full    bool
	dropped uint64
}

// Put stores v, overwriting an unconsumed value. It reports whether a value
// was overwritten.
func (l *Latest[T]) Put(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	overwrote := l.full
	if overwrote {
		l.dropped++
	}
	l.value = v
	l.full = true
	return overwrote
}

// TryTake returns the stored value and empties the slot. It never blocks.
func (l *Latest[T]) TryTake() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	if !l.full {
		return zero, false
	}
	v := l.value
	l.value = zero
	l.full = false
	return v, true
}

// Dropped is the number of values overwritten before they were taken.
func (l *Latest[T]) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
