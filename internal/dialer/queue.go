package dialer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueuedCall is one pending dial request.
type QueuedCall struct {
	ID      string
	Phone   string
	Message string
}

// CallQueue is a bounded FIFO with at-most-once delivery. The in-memory
// implementation below serves a single-process deployment; a durable broker
// can stand in behind the same interface.
type CallQueue interface {
	// Enqueue returns false when the queue is full; the caller surfaces
	// that as a client error.
	Enqueue(call QueuedCall) bool
	// Dequeue blocks until a call is available, the wait times out
	// (ok=false), or ctx is done.
	Dequeue(ctx context.Context, wait time.Duration) (QueuedCall, bool)
	Len() int
}

type memoryQueue struct {
	ch chan QueuedCall
}

// NewMemoryQueue builds the in-process bounded queue.
func NewMemoryQueue(size int) CallQueue {
	return &memoryQueue{ch: make(chan QueuedCall, size)}
}

func (q *memoryQueue) Enqueue(call QueuedCall) bool {
	select {
	case q.ch <- call:
		return true
	default:
		return false
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context, wait time.Duration) (QueuedCall, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case call := <-q.ch:
		return call, true
	case <-timer.C:
		return QueuedCall{}, false
	case <-ctx.Done():
		return QueuedCall{}, false
	}
}

func (q *memoryQueue) Len() int { return len(q.ch) }

// QueueWorker drains the call queue at the configured pace: one dial per
// firing window while calls are pending, so a burst of enqueued alerts
// cannot flood the PBX.
type QueueWorker struct {
	queue CallQueue
	place func(ctx context.Context, phone, message string) error
	pace  time.Duration
	idle  time.Duration
	log   zerolog.Logger
}

func NewQueueWorker(queue CallQueue, pace time.Duration, place func(ctx context.Context, phone, message string) error, log zerolog.Logger) *QueueWorker {
	return &QueueWorker{
		queue: queue,
		place: place,
		pace:  pace,
		idle:  2 * pace,
		log:   log.With().Str("component", "call-queue").Logger(),
	}
}

// Run loops until ctx is done. It must live on its own goroutine so the
// HTTP server keeps serving while a queued call is being paced out.
func (w *QueueWorker) Run(ctx context.Context) {
	w.log.Info().Dur("pace", w.pace).Msg("call queue worker started")
	for {
		call, ok := w.queue.Dequeue(ctx, w.idle)
		if ctx.Err() != nil {
			w.log.Info().Int("pending", w.queue.Len()).Msg("call queue worker stopping")
			return
		}
		if !ok {
			continue
		}

		if err := w.place(ctx, call.Phone, call.Message); err != nil {
			w.log.Error().Err(err).Str("phone", call.Phone).Str("queue_id", call.ID).
				Msg("queued call failed")
		} else {
			w.log.Info().Str("phone", call.Phone).Str("queue_id", call.ID).
				Msg("queued call placed")
		}

		select {
		case <-time.After(w.pace):
		case <-ctx.Done():
			return
		}
	}
}

// NewQueuedCall stamps a queue job with its correlation id.
func NewQueuedCall(phone, message string) QueuedCall {
	return QueuedCall{ID: uuid.NewString(), Phone: phone, Message: message}
}
