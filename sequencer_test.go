package qlock

import (
	"sync"
	"testing"
	"time"
)

func TestSequencer_TicketsAreDense(t *testing.T) {
	var s Sequencer
	for want := uint64(0); want < 3; want++ {
		if got := s.Enqueue(); got != want {
			t.Fatalf("ticket = %d, want %d", got, want)
		}
	}
	if got := s.Serving(); got != 0 {
		t.Fatalf("serving = %d, want 0", got)
	}
	if got := s.Pending(); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}
}

func TestSequencer_FirstTicketAdmittedImmediately(t *testing.T) {
	var s Sequencer
	done := make(chan struct{})
	go func() {
		s.Wait(s.Enqueue())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first ticket was not admitted on an idle sequencer")
	}
}

func TestSequencer_WaitBlocksUntilAdvance(t *testing.T) {
	var s Sequencer
	s.Enqueue() // ticket 0, turn in progress
	t1 := s.Enqueue()

	done := make(chan struct{})
	go func() {
		s.Wait(t1)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before the prior turn ended")
	case <-time.After(10 * time.Millisecond):
	}

	s.Advance()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Advance")
	}
	if got := s.Serving(); got != 1 {
		t.Fatalf("serving = %d, want 1", got)
	}
}

func TestSequencer_MultipleWaiters(t *testing.T) {
	var s Sequencer
	for range 4 {
		s.Enqueue() // tickets 0..3
	}

	const waiters = 10
	var wg sync.WaitGroup
	wg.Add(waiters)
	for range waiters {
		go func() {
			defer wg.Done()
			s.Wait(3)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	if got := s.Serving(); got != 0 {
		t.Fatalf("serving = %d before any Advance, want 0", got)
	}

	s.Advance()
	s.Advance()
	time.Sleep(10 * time.Millisecond)
	if got := s.Serving(); got != 2 {
		t.Fatalf("serving = %d, want 2", got)
	}

	s.Advance()
	wg.Wait()
	if got := s.Serving(); got != 3 {
		t.Fatalf("serving = %d, want 3", got)
	}
	if got := s.Pending(); got != 1 {
		t.Fatalf("pending = %d with one turn in progress, want 1", got)
	}
}

func TestSequencer_WaitOnPastTicket(t *testing.T) {
	var s Sequencer
	s.Wait(s.Enqueue())
	s.Advance()

	// Tickets at or below serving admit at once.
	done := make(chan struct{})
	go func() {
		s.Wait(0)
		s.Wait(1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait on a past ticket blocked")
	}
}

func TestSequencer_FIFOUnderContention(t *testing.T) {
	var s Sequencer
	const n = 200

	order := make([]uint64, 0, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			tk := s.Enqueue()
			s.Wait(tk)
			// Serialized by admission: only one turn runs at a time.
			order = append(order, tk)
			s.Advance()
		}()
	}
	wg.Wait()

	if len(order) != n {
		t.Fatalf("admissions = %d, want %d", len(order), n)
	}
	for i, tk := range order {
		if tk != uint64(i) {
			t.Fatalf("admission %d served ticket %d", i, tk)
		}
	}
	if got := s.Pending(); got != 0 {
		t.Fatalf("pending = %d after quiescence, want 0", got)
	}

	// No waiter may outlive its turn.
	s.mu.Lock()
	leaked := s.head != nil || s.tail != nil || s.waiters.Load() != 0
	s.mu.Unlock()
	if leaked {
		t.Fatal("waiter list not empty after quiescence")
	}
}
