package queue

import (
	"sync"
	"testing"
)

func TestPushPopOrderPreserved(t *testing.T) {
	q := New(4)
	for i := byte(0); i < 4; i++ {
		if !q.PushCommand(i, []byte{i}) {
			t.Fatalf("push %d failed unexpectedly", i)
		}
	}
	for i := byte(0); i < 4; i++ {
		e, ok := q.PopCommand()
		if !ok {
			t.Fatalf("pop %d: queue reported empty", i)
		}
		if e.Cmd != i {
			t.Errorf("pop order broken: got cmd %d, want %d", e.Cmd, i)
		}
	}
}

func TestPushFailsWhenFull(t *testing.T) {
	q := New(2)
	if !q.PushCommand(1, nil) || !q.PushCommand(2, nil) {
		t.Fatal("expected first two pushes to succeed")
	}
	if q.PushCommand(3, nil) {
		t.Fatal("expected push to fail once the ring is full")
	}
	if _, ok := q.PopCommand(); !ok {
		t.Fatal("expected a pop to succeed")
	}
	if !q.PushCommand(3, nil) {
		t.Fatal("expected push to succeed again after a pop frees a slot")
	}
}

func TestPopEmptyReturnsFalse(t *testing.T) {
	q := New(1)
	if _, ok := q.PopCommand(); ok {
		t.Fatal("expected PopCommand on empty queue to report false")
	}
	if _, ok := q.PopResponse(); ok {
		t.Fatal("expected PopResponse on empty queue to report false")
	}
}

func TestPayloadTooLargeRejected(t *testing.T) {
	q := New(4)
	big := make([]byte, MaxPayload+1)
	if q.PushCommand(1, big) {
		t.Fatal("expected oversized payload to be rejected")
	}
}

func TestCommandAndResponseRingsIndependent(t *testing.T) {
	q := New(2)
	if !q.PushCommand(1, nil) {
		t.Fatal("push command failed")
	}
	if !q.PushResponse(1, 0, []byte{0x42}) {
		t.Fatal("push response failed")
	}
	if q.CommandLen() != 1 || q.ResponseLen() != 1 {
		t.Fatalf("ring lengths: cmd=%d resp=%d, want 1/1", q.CommandLen(), q.ResponseLen())
	}
	if _, ok := q.PopCommand(); !ok {
		t.Fatal("expected command pop")
	}
	if q.ResponseLen() != 1 {
		t.Fatal("popping the command ring must not affect the response ring")
	}
}

// TestSPSCConcurrentProducerConsumer exercises a single producer and a
// single consumer goroutine, as the dispatcher/worker pair does in
// production, and asserts every command is observed exactly once and
// in order.
func TestSPSCConcurrentProducerConsumer(t *testing.T) {
	q := New(8)
	const n = 2000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.PushCommand(byte(i%256), nil) {
				// spin: ring full, matches the worker's drain-then-retry loop
			}
		}
	}()

	received := make([]byte, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			if e, ok := q.PopCommand(); ok {
				received = append(received, e.Cmd)
			}
		}
	}()

	wg.Wait()
	for i, b := range received {
		if b != byte(i%256) {
			t.Fatalf("order violated at index %d: got %d want %d", i, b, i%256)
		}
	}
}
