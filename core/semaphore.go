package core

import "sync"

// Semaphore is a counting semaphore used as a sleep/wake signal between a
// TaskQueue and its background workers.
//
// Increments are never lost: a worker that is busy when it is signalled will
// find the count positive on its next WaitAndDecrement and return immediately.
type Semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

// NewSemaphore creates a Semaphore with the given initial count.
func NewSemaphore(initial int) *Semaphore {
	s := &Semaphore{count: max(initial, 0)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// WaitAndDecrement blocks until the count is positive, then decrements it.
func (s *Semaphore) WaitAndDecrement() {
	s.mu.Lock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}

// TryDecrement decrements the count if it is positive and reports whether it did.
func (s *Semaphore) TryDecrement() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}

// Increment raises the count by one and wakes a single waiter.
func (s *Semaphore) Increment() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.cond.Signal()
}

// Count returns the current count.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
