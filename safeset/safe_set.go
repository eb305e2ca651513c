// Package safeset provides a small concurrent set. The async client uses it to
// track which operation kinds are in flight on a session.
package safeset

import "sync"

// SafeSet is a set of comparable elements that is safe for concurrent use.
type SafeSet[T comparable] struct {
	mu sync.RWMutex
	m  map[T]struct{}
}

// NewSafeSet creates and returns a new empty SafeSet.
func NewSafeSet[T comparable]() *SafeSet[T] {
	return &SafeSet[T]{m: make(map[T]struct{})}
}

// TryAdd adds value unless it is already present. The check and the insert
// happen under one lock, so exactly one of several concurrent callers adding
// the same value wins.
//
// Parameters:
//   - value: The element to add
//
// Returns:
//   - true if value was added, false if it was already in the set
func (s *SafeSet[T]) TryAdd(value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[value]; ok {
		return false
	}

	s.m[value] = struct{}{}
	return true
}

// Remove removes value from the set. Removing a missing value is a no-op.
func (s *SafeSet[T]) Remove(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, value)
}

// Contains reports whether value is in the set.
func (s *SafeSet[T]) Contains(value T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[value]
	return ok
}

// Size returns the number of elements in the set.
func (s *SafeSet[T]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Values returns a snapshot of the elements in unspecified order.
//
// Returns:
//   - A new slice holding every element present at the time of the call
func (s *SafeSet[T]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}

	return out
}
