package qlock

import (
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/qlock/internal/opt"
)

// Sequencer issues monotonically increasing tickets and admits their
// holders strictly in issue order. It is the admission queue behind
// [RWMutex]; it is exported because a strict FIFO turnstile is useful on
// its own (pipelines, ordered commit points, test harnesses).
//
// Features:
//   - Enqueue(): takes the next ticket.
//   - Wait(t): blocks until ticket t is admitted.
//   - Advance(): finishes the current turn, admitting the next ticket.
//
// A ticket is admitted once `serving` reaches it; each issued ticket must
// be advanced exactly once, by its holder, at whatever point its turn is
// considered over. Waiters park on a per-waiter semaphore after a brief
// spin; Advance wakes only the waiters whose tickets are reached, so a
// herd of parked waiters never stampedes.
//
// Example:
//
//	var s Sequencer
//	t := s.Enqueue()
//	s.Wait(t)  // returns immediately while nothing is in flight
//	...        // t's turn
//	s.Advance()
type Sequencer struct {
	_ noCopy

	// Enqueue side: touched by every ticket taker.
	next atomic.Uint64
	_    [(opt.CacheLineSize_ - unsafe.Sizeof(atomic.Uint64{})%opt.CacheLineSize_) % opt.CacheLineSize_]byte

	// Admit side: touched by Wait slow paths and Advance.
	serving atomic.Uint64
	waiters atomic.Int32
	mu      TicketLock
	head    *seqWaiter
	tail    *seqWaiter
}

type seqWaiter struct {
	ticket uint64
	sema   opt.Sema
	// next is protected by Sequencer.mu
	next *seqWaiter
}

// Enqueue issues the caller's ticket. Tickets are dense: the first is 0
// and they increase by 1 per call. The counter is 64-bit, so wraparound is
// not a practical concern.
func (s *Sequencer) Enqueue() uint64 {
	return s.next.Add(1) - 1
}

// Wait blocks until ticket t is admitted. It returns immediately when t's
// turn has already arrived (or passed).
func (s *Sequencer) Wait(t uint64) {
	// 1. Fast path: already admitted.
	if s.serving.Load() >= t {
		return
	}

	// 2. Brief active spin; worth it when the turn ahead is nearly over.
	var spins int
	for trySpin(&spins) {
		if s.serving.Load() >= t {
			return
		}
	}

	// 3. Slow path: enqueue and park.
	s.mu.Lock()
	// The waiter count must rise before the re-check: Advance reads it
	// right after bumping serving, and one of the two loads is then
	// guaranteed to see the other side's store.
	s.waiters.Add(1)
	if s.serving.Load() >= t {
		s.waiters.Add(-1)
		s.mu.Unlock()
		return
	}
	w := &seqWaiter{ticket: t}
	if s.tail == nil {
		s.head = w
		s.tail = w
	} else {
		s.tail.next = w
		s.tail = w
	}
	s.mu.Unlock()

	// 4. Sleep
	w.sema.Acquire()
}

// Advance ends the turn in progress and admits the next ticket, waking
// any parked waiters whose tickets are reached. It returns the new
// serving value. Calling Advance more times than tickets were issued
// corrupts the queue order; each ticket advances exactly once.
func (s *Sequencer) Advance() uint64 {
	now := s.serving.Add(1)

	if s.waiters.Load() == 0 {
		return now
	}

	s.mu.Lock()

	var prev *seqWaiter
	curr := s.head
	for curr != nil {
		if curr.ticket <= now {
			curr.sema.Release()
			s.waiters.Add(-1)

			if prev == nil {
				s.head = curr.next
			} else {
				prev.next = curr.next
			}
			if curr == s.tail {
				s.tail = prev
			}

			curr = curr.next
		} else {
			prev = curr
			curr = curr.next
		}
	}

	s.mu.Unlock()
	return now
}

// Serving returns the ticket whose holder may currently proceed.
func (s *Sequencer) Serving() uint64 {
	return s.serving.Load()
}

// Pending returns the number of issued tickets whose turns have not
// finished yet, including the one being served.
func (s *Sequencer) Pending() uint64 {
	// Load serving first so a concurrent Enqueue+Advance pair cannot make
	// the difference go negative.
	served := s.serving.Load()
	return s.next.Load() - served
}
