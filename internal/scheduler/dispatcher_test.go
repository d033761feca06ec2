package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemoryDispatcherFiresDueJob(t *testing.T) {
	fired := make(chan Job, 1)
	d := NewMemoryDispatcher(func(_ context.Context, job Job) {
		fired <- job
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	job := NewJob("+15550001", "fire", time.Now().Add(50*time.Millisecond))
	if err := d.Schedule(ctx, job); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	select {
	case got := <-fired:
		if got.Phone != "+15550001" || got.Message != "fire" {
			t.Errorf("fired job = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job never fired")
	}
}

func TestMemoryDispatcherPastJobFiresImmediately(t *testing.T) {
	fired := make(chan Job, 1)
	d := NewMemoryDispatcher(func(_ context.Context, job Job) {
		fired <- job
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	if err := d.Schedule(ctx, NewJob("+1", "late", time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("overdue job never fired")
	}
}

func TestMemoryDispatcherAtMostOnce(t *testing.T) {
	var mu sync.Mutex
	count := map[string]int{}
	d := NewMemoryDispatcher(func(_ context.Context, job Job) {
		mu.Lock()
		count[job.ID]++
		mu.Unlock()
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	jobs := make([]Job, 5)
	for i := range jobs {
		jobs[i] = NewJob("+1", "m", time.Now().Add(20*time.Millisecond))
		if err := d.Schedule(ctx, jobs[i]); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for _, job := range jobs {
		if count[job.ID] != 1 {
			t.Errorf("job %s fired %d times, want 1", job.ID, count[job.ID])
		}
	}
}

func TestMemoryDispatcherStopsPendingOnShutdown(t *testing.T) {
	fired := make(chan Job, 1)
	d := NewMemoryDispatcher(func(_ context.Context, job Job) {
		fired <- job
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	if err := d.Schedule(ctx, NewJob("+1", "never", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	cancel()
	<-done

	select {
	case job := <-fired:
		t.Errorf("job %s fired after shutdown", job.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewJobStampsIdentity(t *testing.T) {
	a := NewJob("+1", "m", time.Now())
	b := NewJob("+1", "m", time.Now())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("job ids not unique: %q vs %q", a.ID, b.ID)
	}
	if a.When.Location() != time.UTC {
		t.Errorf("delivery instant not normalized to UTC")
	}
}
