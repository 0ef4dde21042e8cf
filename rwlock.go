package qlock

import (
	"unsafe"

	"github.com/llxisdsh/qlock/internal/opt"
)

// RWLock owns a value of type T and arbitrates every access to it
// through guards, backed by the fair FIFO admission of [RWMutex].
//
// The value is reachable only while a guard is live: [RWLock.Read]
// admits any number of concurrent holders of [ReadGuard], [RWLock.Write]
// admits a single [WriteGuard] with no readers alongside. Releasing the
// guard is the only way to end a hold; there is no unlock method to
// mispair.
//
// A goroutine that panics while holding a guard should have paired the
// acquisition with defer Release, which still runs and keeps the lock
// serviceable. Whatever half-finished state the value was left in is the
// holder's problem: RWLock does not poison.
//
// The zero value owns the zero value of T.
//
// Example:
//
//	type counters struct{ hits, misses int }
//	l := NewRWLock(counters{})
//
//	w := l.Write()
//	w.Value().hits++
//	w.Release()
//
//	r := l.Read()
//	total := r.Value().hits + r.Value().misses
//	r.Release()
type RWLock[T any] struct {
	_  noCopy
	mu RWMutex
	// Keep the value off the cache lines the lock words churn on.
	_     [(opt.CacheLineSize_ - unsafe.Sizeof(RWMutex{})%opt.CacheLineSize_) % opt.CacheLineSize_]byte
	value T
}

// NewRWLock returns an RWLock owning value.
func NewRWLock[T any](value T) *RWLock[T] {
	return &RWLock[T]{value: value}
}

// Read takes a shared hold on the value, blocking until the caller's
// queue turn arrives. The returned guard must be released exactly once.
func (l *RWLock[T]) Read() *ReadGuard[T] {
	l.mu.RLock()
	return &ReadGuard[T]{lock: l}
}

// TryRead takes a shared hold only if it is available right now, without
// queueing. The second result reports whether a guard was taken.
func (l *RWLock[T]) TryRead() (*ReadGuard[T], bool) {
	if !l.mu.TryRLock() {
		return nil, false
	}
	return &ReadGuard[T]{lock: l}, true
}

// Write takes an exclusive hold on the value, blocking until the
// caller's queue turn arrives and earlier holds drain. The returned
// guard must be released exactly once.
func (l *RWLock[T]) Write() *WriteGuard[T] {
	l.mu.Lock()
	return &WriteGuard[T]{lock: l}
}

// TryWrite takes an exclusive hold only if the lock is completely free
// right now, without queueing. The second result reports whether a guard
// was taken.
func (l *RWLock[T]) TryWrite() (*WriteGuard[T], bool) {
	if !l.mu.TryLock() {
		return nil, false
	}
	return &WriteGuard[T]{lock: l}, true
}

// ReadGuard is a live shared hold on an [RWLock]'s value.
type ReadGuard[T any] struct {
	_    noCopy
	lock *RWLock[T]
}

// Value returns the guarded value. The referent must not be mutated:
// other readers may hold it concurrently. The pointer must not outlive
// the guard.
func (g *ReadGuard[T]) Value() *T {
	if g.lock == nil {
		panic("qlock: Value on released ReadGuard")
	}
	return &g.lock.value
}

// Release ends the hold. The guard is dead afterwards; a second Release
// panics.
func (g *ReadGuard[T]) Release() {
	l := g.lock
	if l == nil {
		panic("qlock: Release of released ReadGuard")
	}
	g.lock = nil
	l.mu.RUnlock()
}

// WriteGuard is a live exclusive hold on an [RWLock]'s value.
type WriteGuard[T any] struct {
	_    noCopy
	lock *RWLock[T]
}

// Value returns the guarded value for reading and writing. The pointer
// must not outlive the guard.
func (g *WriteGuard[T]) Value() *T {
	if g.lock == nil {
		panic("qlock: Value on released WriteGuard")
	}
	return &g.lock.value
}

// Release ends the hold, publishing every mutation made through Value to
// subsequently admitted guards. The guard is dead afterwards; a second
// Release panics.
func (g *WriteGuard[T]) Release() {
	l := g.lock
	if l == nil {
		panic("qlock: Release of released WriteGuard")
	}
	g.lock = nil
	l.mu.Unlock()
}
