package qlock

import (
	"context"
	"sync"
	"testing"

	"golang.org/x/sync/semaphore"
)

type rwLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

const semRWUnits = 1 << 20

// semRWMutex adapts a weighted semaphore into a reader-writer lock:
// readers take one unit, writers take all of them. Included as a
// baseline with a different fairness profile.
type semRWMutex struct {
	sem *semaphore.Weighted
}

func newSemRWMutex() *semRWMutex {
	return &semRWMutex{sem: semaphore.NewWeighted(semRWUnits)}
}

func (m *semRWMutex) Lock() {
	_ = m.sem.Acquire(context.Background(), semRWUnits)
}

func (m *semRWMutex) Unlock() {
	m.sem.Release(semRWUnits)
}

func (m *semRWMutex) RLock() {
	_ = m.sem.Acquire(context.Background(), 1)
}

func (m *semRWMutex) RUnlock() {
	m.sem.Release(1)
}

func BenchmarkRWMutexRead(b *testing.B) {
	benchmarkRWMutex(b, new(RWMutex), 0)
}

func BenchmarkRWMutexMixed(b *testing.B) {
	benchmarkRWMutex(b, new(RWMutex), 100)
}

func BenchmarkRWMutexWrite(b *testing.B) {
	benchmarkRWMutex(b, new(RWMutex), 4)
}

func BenchmarkSyncRWMutexRead(b *testing.B) {
	benchmarkRWMutex(b, new(sync.RWMutex), 0)
}

func BenchmarkSyncRWMutexMixed(b *testing.B) {
	benchmarkRWMutex(b, new(sync.RWMutex), 100)
}

func BenchmarkSyncRWMutexWrite(b *testing.B) {
	benchmarkRWMutex(b, new(sync.RWMutex), 4)
}

func BenchmarkSemaphoreRWRead(b *testing.B) {
	benchmarkRWMutex(b, newSemRWMutex(), 0)
}

func BenchmarkSemaphoreRWMixed(b *testing.B) {
	benchmarkRWMutex(b, newSemRWMutex(), 100)
}

func BenchmarkSemaphoreRWWrite(b *testing.B) {
	benchmarkRWMutex(b, newSemRWMutex(), 4)
}

// writeEvery selects the write mix: every writeEvery-th operation is a
// write, 0 means reads only.
func benchmarkRWMutex(b *testing.B, l rwLocker, writeEvery int) {
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if writeEvery > 0 && i%writeEvery == 0 {
				l.Lock()
				l.Unlock()
			} else {
				l.RLock()
				l.RUnlock()
			}
			i++
		}
	})
}

func BenchmarkTicketLock(b *testing.B) {
	b.ReportAllocs()
	var l TicketLock
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			l.Unlock()
		}
	})
}

func BenchmarkSyncMutex(b *testing.B) {
	b.ReportAllocs()
	var l sync.Mutex
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			l.Unlock()
		}
	})
}

func BenchmarkSequencerTurns(b *testing.B) {
	b.ReportAllocs()
	var s Sequencer
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s.Wait(s.Enqueue())
			s.Advance()
		}
	})
}
