//go:build race

package opt

import (
	"sync"
)

const Race_ = true

// Sema matches the semantics of the !race implementation on top of
// sync.Mutex and sync.Cond, so the race detector observes the
// acquire/release edges that a raw runtime semaphore would hide.
// Release before Acquire is valid: the count is retained and a later
// Acquire returns immediately.
type Sema struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count uint32
}

func (s *Sema) Acquire() {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}

func (s *Sema) Release() {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	s.count++
	// Each Release satisfies at most one Acquire, so Signal is exact.
	s.cond.Signal()
	s.mu.Unlock()
}
