package qlock

import (
	"sync/atomic"
)

// TicketLock is a fair, FIFO spin-lock.
//
// Unlike sync.Mutex, which allows barging (newcomers can steal the lock),
// TicketLock admits goroutines in the exact order they called Lock().
//
// Behavior:
//   - Lock(): takes the next ticket, then spins/sleeps until `serving`
//     reaches that ticket.
//   - Unlock(): increments `serving`, admitting the next ticket holder.
//
// Trade-offs:
//   - Pros: strict fairness with no waiter bookkeeping at all; the whole
//     lock is two words. Ideal for protecting tiny critical sections where
//     order matters.
//   - Cons: waiters burn cycles (hybrid spin + adaptive sleep) instead of
//     parking, so it is wrong for long critical sections. [RWMutex] exists
//     for those: it uses a TicketLock only around its waiter-list edits,
//     which touch a few pointers.
//
// The zero value is an unlocked TicketLock.
//
// Size: 8 bytes.
type TicketLock struct {
	_       noCopy
	next    atomic.Uint32
	serving atomic.Uint32
}

// Lock acquires the lock. Blocks until the lock is available.
func (m *TicketLock) Lock() {
	my := m.next.Add(1) - 1
	var spins int
	for {
		if m.serving.Load() == my {
			return
		}
		delay(&spins)
	}
}

// Unlock releases the lock.
func (m *TicketLock) Unlock() {
	m.serving.Add(1)
}
