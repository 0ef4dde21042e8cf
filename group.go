package qlock

import (
	"github.com/llxisdsh/pb"
)

// Group provides fair reader-writer locking on arbitrary keys.
//
// Each key is backed by its own [RWMutex], created on first use and
// dropped when the last holder or waiter lets go, so the group works
// over unbounded key spaces without leaking lock state.
//
// Features:
//   - RLock/RUnlock for shared access per key.
//   - Lock/Unlock for exclusive access per key.
//   - TryLock/TryRLock fail-fast variants.
//   - FIFO fairness within each key, the same guarantee as [RWMutex].
//
// Usage:
//
//	var group Group[string]
//
//	group.RLock("config")
//	read(config)
//	group.RUnlock("config")
//
//	group.Lock("config")
//	write(config)
//	group.Unlock("config")
type Group[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *groupEntry]
}

type groupEntry struct {
	mu RWMutex
	// ref counts holders plus waiters; only touched inside ProcessEntry,
	// which serializes per key.
	ref int32
}

// Lock acquires k's lock exclusively, blocking until the caller's turn
// on that key arrives and earlier holds drain.
func (g *Group[K]) Lock(k K) {
	g.retain(k).mu.Lock()
}

// Unlock releases an exclusive hold on k. It panics if k is not
// writer-held.
func (g *Group[K]) Unlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		panic("qlock: Unlock of unheld Group key")
	}
	e.mu.Unlock()
	g.release(k)
}

// RLock acquires a shared hold on k, blocking until the caller's turn on
// that key arrives.
func (g *Group[K]) RLock(k K) {
	g.retain(k).mu.RLock()
}

// RUnlock releases one shared hold on k. It panics if k holds no
// readers.
func (g *Group[K]) RUnlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		panic("qlock: RUnlock of unheld Group key")
	}
	e.mu.RUnlock()
	g.release(k)
}

// TryLock tries to take k's lock exclusively without queueing. On
// failure no state is retained for k.
func (g *Group[K]) TryLock(k K) bool {
	if g.retain(k).mu.TryLock() {
		return true
	}
	g.release(k)
	return false
}

// TryRLock tries to take a shared hold on k without queueing. On failure
// no state is retained for k.
func (g *Group[K]) TryRLock(k K) bool {
	if g.retain(k).mu.TryRLock() {
		return true
	}
	g.release(k)
	return false
}

// retain pins k's entry, creating it on first use.
func (g *Group[K]) retain(k K) *groupEntry {
	e, _ := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *groupEntry]) (*pb.EntryOf[K, *groupEntry], *groupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			ent := &groupEntry{ref: 1}
			return &pb.EntryOf[K, *groupEntry]{Value: ent}, ent, false
		},
	)
	return e
}

// release unpins k's entry and deletes it once nobody holds or waits.
// It runs after the lock operation itself, so a turn underway for k
// always happens on the entry still in the map.
func (g *Group[K]) release(k K) {
	_, _ = g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *groupEntry]) (*pb.EntryOf[K, *groupEntry], *groupEntry, bool) {
			if l == nil {
				return nil, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, true
			}
			return l, nil, false
		},
	)
}
