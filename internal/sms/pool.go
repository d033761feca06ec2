package sms

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/metrics"
)

// job is one pending send.
type job struct {
	phone   string
	message string
}

// Pool runs carrier sends on a fixed set of workers so a slow carrier
// cannot stall the HTTP handler.
type Pool struct {
	carrier Carrier
	jobs    chan job
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sent   atomic.Int64
	failed atomic.Int64
}

func NewPool(carrier Carrier, workers, queueSize int, log zerolog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		carrier: carrier,
		jobs:    make(chan job, queueSize),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	log.Info().Int("workers", workers).Str("carrier", carrier.Name()).Msg("sms worker pool started")
	return p
}

// Enqueue queues a send. Returns false when the queue is full.
func (p *Pool) Enqueue(phone, message string) bool {
	select {
	case p.jobs <- job{phone: phone, message: message}:
		return true
	default:
		return false
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			if err := p.carrier.Send(p.ctx, j.phone, j.message); err != nil {
				p.failed.Add(1)
				metrics.SMSSentTotal.WithLabelValues("failed").Inc()
				p.log.Error().Err(err).Str("phone", j.phone).Msg("unable to send the SMS")
				continue
			}
			p.sent.Add(1)
			metrics.SMSSentTotal.WithLabelValues("ok").Inc()
			p.log.Info().Str("phone", j.phone).Msg("SMS sent")
		}
	}
}

// Stop drains nothing: pending queue entries are abandoned, matching the
// at-most-once posture of the rest of the system.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.log.Info().Int64("sent", p.sent.Load()).Int64("failed", p.failed.Load()).
		Msg("sms worker pool stopped")
}
