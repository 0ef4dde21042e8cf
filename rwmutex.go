package qlock

import (
	"sync"
	"sync/atomic"

	"github.com/llxisdsh/qlock/internal/opt"
)

// RWMutex is a fair, starvation-free reader-writer lock.
//
// Every acquisition, read or write, takes a ticket from one FIFO
// admission queue (a [Sequencer]) and is admitted strictly in ticket
// order. Consecutive readers still share the lock: a reader ends its
// queue turn the moment its hold is registered, so a run of adjacent
// reader tickets piles up concurrently. A writer keeps its turn for its
// whole hold, so everything behind it, reader or writer, waits it out.
//
// This removes both starvation modes of classic RW locks:
//   - Writer starvation: a writer's ticket caps how many readers go
//     before it; readers arriving later queue behind it.
//   - Reader starvation: writers cannot leapfrog readers that ticketed
//     earlier, no matter how many writers pile up.
//
// Behavior:
//   - RLock/RUnlock: shared hold, any number of admitted readers.
//   - Lock/Unlock: exclusive hold, taken once earlier holds drain.
//   - TryRLock/TryLock: queue-bypassing fail-fast variants.
//
// Trade-offs vs sync.RWMutex: every acquisition pays for a queue turn
// even when uncontended (two extra atomic RMWs), and peak mixed-load
// throughput trades against strict ordering. Use it where tail latency
// and fairness matter more than raw throughput.
//
// The zero value is an unlocked RWMutex.
type RWMutex struct {
	_     noCopy
	turns Sequencer
	state atomic.Uint32
	wsem  opt.Sema
}

// State word layout. Readers are counted from bit 3 up; the low bits
// carry the writer handshake.
const (
	rwWriter      = 1 << 0 // a writer holds the lock
	rwPending     = 1 << 1 // the admitted writer is draining earlier holds
	rwQueued      = 1 << 2 // the holding writer owns a queue turn
	rwReaderShift = 3
	rwReader      = 1 << rwReaderShift
	rwWriterMask  = rwWriter | rwPending
)

// RLock acquires a shared read hold, blocking until the caller's queue
// turn arrives.
func (m *RWMutex) RLock() {
	t := m.turns.Enqueue()
	m.turns.Wait(t)

	s := m.state.Add(rwReader)

	// The turn ends as soon as the hold is registered, letting the next
	// ticket in; adjacent readers overlap this way.
	m.turns.Advance()

	if s&rwWriter != 0 {
		// A TryLock writer slipped in before the hold registered. It
		// cannot happen twice: try acquisitions fail while a reader
		// count or the pending bit is visible.
		m.waitWriterGone()
	}
}

// RUnlock releases one read hold. It panics if the lock holds no
// readers.
func (m *RWMutex) RUnlock() {
	s := m.state.Add(^uint32(rwReader - 1))
	if (s+rwReader)>>rwReaderShift == 0 {
		panic("qlock: RUnlock of unlocked RWMutex")
	}
	if s == rwPending {
		// Last hold out while an admitted writer drains: hand over.
		m.wsem.Release()
	}
}

// Lock acquires the lock exclusively, blocking until the caller's queue
// turn arrives and every earlier hold has drained.
func (m *RWMutex) Lock() {
	t := m.turns.Enqueue()
	m.turns.Wait(t)

	if old := m.state.Or(rwPending); old != 0 {
		// Earlier holds are still draining; whichever leaves last posts
		// the semaphore. At most one writer parks here at a time, so
		// posts and parks pair exactly.
		m.wsem.Acquire()
	}
	if !m.state.CompareAndSwap(rwPending, rwWriter|rwQueued) {
		panic("qlock: RWMutex writer handshake corrupted")
	}

	// The queue turn is kept until Unlock; everything ticketed after
	// this writer stays parked.
}

// Unlock releases an exclusive hold. It panics if the lock is not held
// by a writer.
func (m *RWMutex) Unlock() {
	old := m.state.And(^uint32(rwWriter | rwQueued))
	if old&rwWriter == 0 {
		panic("qlock: Unlock of unlocked RWMutex")
	}
	if old&rwQueued != 0 {
		m.turns.Advance()
	} else if old&^uint32(rwWriter) == rwPending {
		// A queued writer started draining while this try-writer held
		// the lock; it parks for whoever leaves last, which is us.
		m.wsem.Release()
	}
}

// TryRLock tries to take a read hold without queueing. It fails while a
// writer holds the lock or an admitted writer is draining; it can
// overtake queued readers, never a writer whose turn has arrived.
func (m *RWMutex) TryRLock() bool {
	for {
		s := m.state.Load()
		if s&rwWriterMask != 0 {
			return false
		}
		if m.state.CompareAndSwap(s, s+rwReader) {
			return true
		}
	}
}

// TryLock tries to take the lock exclusively without queueing. It
// succeeds only when the lock is completely free.
func (m *RWMutex) TryLock() bool {
	return m.state.CompareAndSwap(0, rwWriter)
}

// RLocker returns a sync.Locker whose Lock and Unlock call RLock and
// RUnlock on m.
func (m *RWMutex) RLocker() sync.Locker {
	return (*rlocker)(m)
}

type rlocker RWMutex

func (r *rlocker) Lock()   { (*RWMutex)(r).RLock() }
func (r *rlocker) Unlock() { (*RWMutex)(r).RUnlock() }

// waitWriterGone spins out a barging try-writer. The wait is bounded by
// that writer's hold: with the reader's count registered and its turn
// advanced, no successor can take the writer bit again.
func (m *RWMutex) waitWriterGone() {
	var spins int
	for m.state.Load()&rwWriter != 0 {
		delay(&spins)
	}
}
