package scheduler

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Job is one future-dated call.
type Job struct {
	ID      string    `json:"id"`
	Phone   string    `json:"phone"`
	Message string    `json:"message"`
	When    time.Time `json:"when"` // UTC delivery instant
}

// NewJob stamps a job with its id.
func NewJob(phone, message string, when time.Time) Job {
	return Job{ID: uuid.NewString(), Phone: phone, Message: message, When: when.UTC()}
}

// FireFunc delivers one due job.
type FireFunc func(ctx context.Context, job Job)

// DelayedDispatcher hands jobs to their delivery time with at-most-once
// semantics. The in-memory implementation serves development; the Redis
// one survives restarts.
type DelayedDispatcher interface {
	Schedule(ctx context.Context, job Job) error
	// Run blocks, firing due jobs, until ctx is done.
	Run(ctx context.Context) error
}

// ── in-memory ────────────────────────────────────────────────────────

type memoryDispatcher struct {
	fire FireFunc
	log  zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	ctx    context.Context
}

func NewMemoryDispatcher(fire FireFunc, log zerolog.Logger) DelayedDispatcher {
	return &memoryDispatcher{
		fire:   fire,
		log:    log.With().Str("dispatcher", "memory").Logger(),
		timers: make(map[string]*time.Timer),
	}
}

func (d *memoryDispatcher) Schedule(_ context.Context, job Job) error {
	delay := time.Until(job.When)
	if delay < 0 {
		delay = 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timers[job.ID] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, job.ID)
		ctx := d.ctx
		d.mu.Unlock()
		if ctx == nil {
			// Fired before Run was entered; deliver anyway.
			ctx = context.Background()
		}
		if ctx.Err() != nil {
			return
		}
		d.fire(ctx, job)
	})
	d.log.Info().Str("job_id", job.ID).Time("when", job.When).Msg("job scheduled")
	return nil
}

func (d *memoryDispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
	<-ctx.Done()

	d.mu.Lock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
	d.mu.Unlock()
	return nil
}

// ── redis-backed ─────────────────────────────────────────────────────

// redisDispatcher keeps jobs in a sorted set scored by delivery time. The
// poller claims a due member by removing it; only the claimer fires it.
type redisDispatcher struct {
	rdb  *redis.Client
	key  string
	fire FireFunc
	poll time.Duration
	log  zerolog.Logger
}

func NewRedisDispatcher(redisURL, key string, fire FireFunc, log zerolog.Logger) (DelayedDispatcher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &redisDispatcher{
		rdb:  redis.NewClient(opts),
		key:  key,
		fire: fire,
		poll: time.Second,
		log:  log.With().Str("dispatcher", "redis").Logger(),
	}, nil
}

func (d *redisDispatcher) Schedule(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = d.rdb.ZAdd(ctx, d.key, redis.Z{
		Score:  float64(job.When.Unix()),
		Member: payload,
	}).Err()
	if err != nil {
		return err
	}
	d.log.Info().Str("job_id", job.ID).Time("when", job.When).Msg("job scheduled")
	return nil
}

func (d *redisDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		now := strconv.FormatInt(time.Now().Unix(), 10)
		members, err := d.rdb.ZRangeByScore(ctx, d.key, &redis.ZRangeBy{
			Min: "-inf", Max: now, Count: 50,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.Error().Err(err).Msg("polling the delayed queue failed")
			continue
		}

		for _, member := range members {
			removed, err := d.rdb.ZRem(ctx, d.key, member).Result()
			if err != nil {
				d.log.Error().Err(err).Msg("claiming a due job failed")
				continue
			}
			if removed == 0 {
				continue // another poller claimed it
			}
			var job Job
			if err := json.Unmarshal([]byte(member), &job); err != nil {
				d.log.Error().Err(err).Msg("undecodable job dropped")
				continue
			}
			d.fire(ctx, job)
		}
	}
}
