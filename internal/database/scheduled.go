package database

import (
	"context"
	"time"
)

// InsertScheduledCall records a future-dated call for UI visibility. The
// delayed dispatcher is the component that actually fires it.
func (db *DB) InsertScheduledCall(ctx context.Context, phone, message, callChkSum string, scheduledAt time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO scheduled_calls (phone, message, call_chk_sum, inserted_at, scheduled_at)
		VALUES ($1, $2, $3, timezone('utc', now()), $4)
	`, phone, message, callChkSum, scheduledAt)
	return err
}
