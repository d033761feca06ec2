// Package recaller drives the retry and escalation state machines: re-dial
// unanswered calls while their firing window is open, then escalate
// exhausted on-call alerts to backup contacts from the address book.
package recaller

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/addressbook"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/dialer"
	"github.com/snarg/call-engine/internal/metrics"
)

const dbErrorBackoff = 5 * time.Second

type Recaller struct {
	db          *database.DB
	dialer      *dialer.Client
	addressBook *addressbook.Client

	sleepAndRetry   time.Duration
	sleepBeforeNext time.Duration
	maxBackupCalls  int
	log             zerolog.Logger
}

type Options struct {
	DB          *database.DB
	Dialer      *dialer.Client
	AddressBook *addressbook.Client

	SleepAndRetry       time.Duration // pause between paced retry dials
	SleepBeforeQuerying time.Duration // pause between full sweeps
	MaxBackupCalls      int
	Log                 zerolog.Logger
}

func New(opts Options) *Recaller {
	return &Recaller{
		db:              opts.DB,
		dialer:          opts.Dialer,
		addressBook:     opts.AddressBook,
		sleepAndRetry:   opts.SleepAndRetry,
		sleepBeforeNext: opts.SleepBeforeQuerying,
		maxBackupCalls:  opts.MaxBackupCalls,
		log:             opts.Log,
	}
}

// Run loops sweeps until ctx is done. Database errors back off briefly and
// the loop keeps going; per-row errors are logged and skipped.
func (r *Recaller) Run(ctx context.Context) {
	r.log.Info().
		Dur("sleep_and_retry", r.sleepAndRetry).
		Dur("sleep_before_querying", r.sleepBeforeNext).
		Msg("recaller started")

	for {
		if err := r.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error().Err(err).Msg("sweep failed, backing off")
			if !sleepCtx(ctx, dbErrorBackoff) {
				return
			}
			continue
		}
		if !sleepCtx(ctx, r.sleepBeforeNext) {
			return
		}
	}
}

// Sweep runs one retry pass followed by one backup-escalation pass.
func (r *Recaller) Sweep(ctx context.Context) error {
	if err := r.retrySweep(ctx); err != nil {
		return err
	}
	return r.backupSweep(ctx)
}

// retrySweep re-dials open cycles that still have attempts left, pacing the
// PBX with sleepAndRetry between requests.
func (r *Recaller) retrySweep(ctx context.Context) error {
	candidates, err := r.db.SelectRecalls(ctx, r.sleepAndRetry)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		r.log.Info().Str("phone", c.Phone).Str("message", c.Message).
			Int("retry_period_seconds", c.SecondsToForget).
			Msg("retrying unanswered call")

		if err := r.dialer.PlaceCall(ctx, c.Phone, c.Message, false); err != nil {
			r.log.Error().Err(err).Str("phone", c.Phone).Msg("retry dial failed")
		} else {
			metrics.RecallsTotal.Inc()
		}

		if !sleepCtx(ctx, r.sleepAndRetry) {
			return ctx.Err()
		}
	}
	return nil
}

// backupSweep escalates on-call cycles whose primary window expired without
// an acknowledgement. The roster's head is the primary who was already
// tried; backups are indexed with the wrap-around formula, so a roster of
// one falls back to re-dialing the primary.
func (r *Recaller) backupSweep(ctx context.Context) error {
	candidates, err := r.db.SelectBackupCalls(ctx, r.maxBackupCalls)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	contacts, err := r.addressBook.OnCallContacts(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("unable to fetch the on-call roster, skipping backup sweep")
		return nil
	}
	if len(contacts) == 0 {
		r.log.Warn().Int("pending", len(candidates)).
			Msg("backup escalation pending but nobody is on call")
		return nil
	}

	for _, c := range candidates {
		backup := contacts[backupIndex(int(c.BackupCalls), len(contacts))]
		r.log.Info().Str("phone", backup.PhoneNumber).
			Str("contact", backup.Name+" "+backup.Surname).
			Str("message", c.Message).
			Int("backup_attempt", int(c.BackupCalls)+1).
			Msg("escalating to backup callee")

		if err := r.dialer.PlaceCall(ctx, backup.PhoneNumber, c.Message, true); err != nil {
			r.log.Error().Err(err).Str("phone", backup.PhoneNumber).Msg("backup dial failed")
			continue
		}
		metrics.BackupCallsTotal.Inc()

		if err := r.db.IncrementBackupCalls(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// backupIndex picks the roster slot for the next backup attempt.
func backupIndex(backupCalls, rosterLen int) int {
	return (backupCalls + 1) % rosterLen
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
