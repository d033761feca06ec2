package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// CallRow mirrors one row of the calls table: a single call cycle for a
// (phone, message) pair.
type CallRow struct {
	ID              string
	Phone           string
	Message         string
	AsteriskChan    string
	MsgChkSum       string
	CallChkSum      string
	UniqueChkSum    string
	TimesToDial     int16
	DialedTimes     int16
	SecondsToForget int
	FirstDial       time.Time
	LastDial        time.Time
	HeardAt         time.Time
	AcknowledgeAt   time.Time
	CycleDone       bool
	OnCall          bool
	BackupCallee    bool
	BackupCalls     int16
}

// CycleExists reports whether any row (in any state) carries this call checksum.
func (db *DB) CycleExists(ctx context.Context, callChkSum string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM calls WHERE call_chk_sum = $1)`,
		callChkSum,
	).Scan(&exists)
	return exists, err
}

// ActiveCycle returns the id and dial counter of the one open cycle for the
// checksum: cycle_done = false and first_dial still inside the retry window.
// found=false means a fresh cycle must be started.
func (db *DB) ActiveCycle(ctx context.Context, callChkSum string) (id string, dialedTimes int16, found bool, err error) {
	err = db.Pool.QueryRow(ctx, `
		SELECT id, dialed_times FROM calls
		WHERE call_chk_sum = $1
		  AND cycle_done = FALSE
		  AND first_dial > timezone('utc', now()) - make_interval(secs => seconds_to_forget)
		ORDER BY first_dial DESC
		LIMIT 1
	`, callChkSum).Scan(&id, &dialedTimes)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return id, dialedTimes, true, nil
}

// InsertCall opens a new cycle with dialed_times = 1.
func (db *DB) InsertCall(ctx context.Context, c *CallRow) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO calls (
			phone, message, asterisk_chan,
			msg_chk_sum, call_chk_sum, unique_chk_sum,
			first_dial, dialed_times, seconds_to_forget, times_to_dial,
			oncall, backup_callee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9, $10, $11)
	`,
		c.Phone, c.Message, c.AsteriskChan,
		c.MsgChkSum, c.CallChkSum, c.UniqueChkSum,
		c.FirstDial, c.SecondsToForget, c.TimesToDial,
		c.OnCall, c.BackupCallee,
	)
	return err
}

// TouchCycle records another dial attempt on an open cycle: refreshes
// last_dial, binds the latest PBX channel, and bumps the counter clamped to
// times_to_dial. Closed cycles are never touched.
func (db *DB) TouchCycle(ctx context.Context, id, asteriskChan string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE calls SET
			last_dial = timezone('utc', now()),
			dialed_times = LEAST(dialed_times + 1, times_to_dial),
			asterisk_chan = $2
		WHERE id = $1 AND cycle_done = FALSE
	`, id, asteriskChan)
	return err
}

// MessageByChan returns the message payload and its checksum for the cycle
// currently bound to the channel. Unknown channels return empty strings.
func (db *DB) MessageByChan(ctx context.Context, asteriskChan string) (message, msgChkSum string, err error) {
	err = db.Pool.QueryRow(ctx,
		`SELECT message, msg_chk_sum FROM calls WHERE asterisk_chan = $1`,
		asteriskChan,
	).Scan(&message, &msgChkSum)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil
	}
	return message, msgChkSum, err
}

// Acknowledge stamps acknowledge_at on the row bound to the channel. The
// cycle is closed only when the ack lands inside the firing window
// (first_dial + seconds_to_forget); a late ack keeps the timestamp but
// leaves the cycle open. Returns whether the ack was within the window and
// the row's msg_chk_sum for the on-call cascade.
func (db *DB) Acknowledge(ctx context.Context, asteriskChan string) (within bool, msgChkSum string, err error) {
	err = db.Pool.QueryRow(ctx, `
		UPDATE calls SET
			acknowledge_at = timezone('utc', now()),
			cycle_done = CASE
				WHEN timezone('utc', now()) <= first_dial + make_interval(secs => seconds_to_forget) THEN TRUE
				ELSE cycle_done
			END
		WHERE asterisk_chan = $1
		RETURNING msg_chk_sum,
			timezone('utc', now()) <= first_dial + make_interval(secs => seconds_to_forget)
	`, asteriskChan).Scan(&msgChkSum, &within)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", ErrUnknownChannel
	}
	return within, msgChkSum, err
}

// ErrUnknownChannel is returned when no cycle is bound to the channel.
var ErrUnknownChannel = errors.New("no call found for asterisk channel")

// CloseOnCallPeers marks every open on-call cycle carrying the message
// checksum as done, stopping further backup escalation for the alert.
func (db *DB) CloseOnCallPeers(ctx context.Context, msgChkSum string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE calls SET cycle_done = TRUE
		WHERE msg_chk_sum = $1 AND oncall = TRUE AND cycle_done = FALSE
	`, msgChkSum)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkHeard stamps heard_at on the row bound to the channel.
func (db *DB) MarkHeard(ctx context.Context, asteriskChan string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE calls SET heard_at = timezone('utc', now()) WHERE asterisk_chan = $1`,
		asteriskChan,
	)
	return err
}

// RecallCandidate is one unanswered call due for a retry.
type RecallCandidate struct {
	Phone           string
	Message         string
	SecondsToForget int
}

// SelectRecalls returns open cycles that still have dial attempts left and
// whose first dial falls inside [now - seconds_to_forget, now - settle]:
// old enough that the previous attempt had its chance, young enough that
// the retry window has not closed.
func (db *DB) SelectRecalls(ctx context.Context, settle time.Duration) ([]RecallCandidate, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT phone, message, seconds_to_forget FROM calls
		WHERE dialed_times < times_to_dial
		  AND first_dial >= timezone('utc', now()) - make_interval(secs => seconds_to_forget)
		  AND first_dial <= timezone('utc', now()) - make_interval(secs => $1)
		  AND cycle_done = FALSE
		ORDER BY first_dial
	`, settle.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecallCandidate
	for rows.Next() {
		var c RecallCandidate
		if err := rows.Scan(&c.Phone, &c.Message, &c.SecondsToForget); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// BackupCandidate is one exhausted on-call cycle due for backup escalation.
type BackupCandidate struct {
	ID          string
	Phone       string
	Message     string
	BackupCalls int16
}

// SelectBackupCalls returns on-call cycles whose primary retry window has
// expired without an acknowledgement and that still have backup attempts
// left. The unset acknowledge_at sentinel is the minimum timestamp.
func (db *DB) SelectBackupCalls(ctx context.Context, maxBackupCalls int) ([]BackupCandidate, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, phone, message, call_backup_callee_number_calls FROM calls
		WHERE acknowledge_at = '0001-01-01 00:00:00'
		  AND first_dial + make_interval(secs => seconds_to_forget) < timezone('utc', now())
		  AND call_backup_callee_number_calls < $1
		  AND cycle_done = FALSE
		  AND oncall = TRUE
		ORDER BY first_dial
	`, maxBackupCalls)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BackupCandidate
	for rows.Next() {
		var c BackupCandidate
		if err := rows.Scan(&c.ID, &c.Phone, &c.Message, &c.BackupCalls); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IncrementBackupCalls bumps the backup attempt counter for one cycle.
func (db *DB) IncrementBackupCalls(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE calls SET call_backup_callee_number_calls = call_backup_callee_number_calls + 1
		WHERE id = $1
	`, id)
	return err
}

// CallByChan fetches the full row bound to a channel, for diagnostics.
func (db *DB) CallByChan(ctx context.Context, asteriskChan string) (*CallRow, error) {
	var c CallRow
	err := db.Pool.QueryRow(ctx, `
		SELECT id, phone, message, asterisk_chan, msg_chk_sum, call_chk_sum, unique_chk_sum,
		       times_to_dial, dialed_times, seconds_to_forget,
		       first_dial, last_dial, heard_at, acknowledge_at,
		       cycle_done, oncall, backup_callee, call_backup_callee_number_calls
		FROM calls WHERE asterisk_chan = $1
	`, asteriskChan).Scan(
		&c.ID, &c.Phone, &c.Message, &c.AsteriskChan, &c.MsgChkSum, &c.CallChkSum, &c.UniqueChkSum,
		&c.TimesToDial, &c.DialedTimes, &c.SecondsToForget,
		&c.FirstDial, &c.LastDial, &c.HeardAt, &c.AcknowledgeAt,
		&c.CycleDone, &c.OnCall, &c.BackupCallee, &c.BackupCalls,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownChannel
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
