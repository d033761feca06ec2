package dialer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(4)
	for _, phone := range []string{"+1", "+2", "+3"} {
		if !q.Enqueue(NewQueuedCall(phone, "m")) {
			t.Fatalf("Enqueue(%s) refused with room to spare", phone)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len = %d, want 3", q.Len())
	}

	ctx := context.Background()
	for _, want := range []string{"+1", "+2", "+3"} {
		call, ok := q.Dequeue(ctx, time.Second)
		if !ok || call.Phone != want {
			t.Errorf("Dequeue = (%v, %v), want phone %s", call, ok, want)
		}
	}
}

func TestMemoryQueueOverflow(t *testing.T) {
	q := NewMemoryQueue(1)
	if !q.Enqueue(NewQueuedCall("+1", "m")) {
		t.Fatalf("first Enqueue refused")
	}
	if q.Enqueue(NewQueuedCall("+2", "m")) {
		t.Errorf("Enqueue accepted past capacity")
	}
}

func TestMemoryQueueDequeueTimeout(t *testing.T) {
	q := NewMemoryQueue(1)
	start := time.Now()
	_, ok := q.Dequeue(context.Background(), 30*time.Millisecond)
	if ok {
		t.Errorf("Dequeue on an empty queue returned a call")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Dequeue returned after %v, want ~30ms wait", elapsed)
	}
}

func TestMemoryQueueDequeueCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, ok := q.Dequeue(ctx, time.Minute); ok {
		t.Errorf("Dequeue survived cancellation")
	}
}

func TestQueueWorkerDrains(t *testing.T) {
	q := NewMemoryQueue(8)
	var placed atomic.Int32
	worker := NewQueueWorker(q, time.Millisecond, func(ctx context.Context, phone, message string) error {
		placed.Add(1)
		return nil
	}, zerolog.Nop())

	q.Enqueue(NewQueuedCall("+1", "a"))
	q.Enqueue(NewQueuedCall("+2", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for placed.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("worker placed %d calls, want 2", placed.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestNewQueuedCallIdentity(t *testing.T) {
	a := NewQueuedCall("+1", "m")
	b := NewQueuedCall("+1", "m")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("queue job ids not unique: %q vs %q", a.ID, b.ID)
	}
}
