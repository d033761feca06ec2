package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply on databases
// created before the current schema.sql. Each must be idempotent.
var migrations = []migration{
	{
		name: "add calls on-call escalation columns",
		sql: `ALTER TABLE calls
			ADD COLUMN IF NOT EXISTS oncall boolean NOT NULL DEFAULT false,
			ADD COLUMN IF NOT EXISTS backup_callee boolean NOT NULL DEFAULT false,
			ADD COLUMN IF NOT EXISTS call_backup_callee_number_calls smallint NOT NULL DEFAULT 0`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'calls' AND column_name = 'oncall')`,
	},
	{
		name:  "add asterisk_ws_events.received_at",
		sql:   `ALTER TABLE asterisk_ws_events ADD COLUMN IF NOT EXISTS received_at timestamp NOT NULL DEFAULT (timezone('utc', now()))`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'asterisk_ws_events' AND column_name = 'received_at')`,
	},
	{
		name:  "add calls first_dial index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_calls_first_dial ON calls (first_dial)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_calls_first_dial')`,
	},
	{
		name:  "add address_book enabled partial index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_address_book_enabled ON address_book (enabled) WHERE enabled`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_address_book_enabled')`,
	},
}

// Migrate applies pending migrations in order. Failures abort the run: the
// sweeps and handlers depend on these columns existing.
func (db *DB) Migrate(ctx context.Context) error {
	var applied, skipped int
	for _, m := range migrations {
		var done bool
		if err := db.Pool.QueryRow(ctx, m.check).Scan(&done); err != nil {
			return fmt.Errorf("migration check %q: %w", m.name, err)
		}
		if done {
			skipped++
			continue
		}
		for _, stmt := range strings.Split(m.sql, ";\n") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.Pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %q: %w", m.name, err)
			}
		}
		db.log.Info().Str("migration", m.name).Msg("migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Int("skipped", skipped).Msg("migrations complete")
	return nil
}
