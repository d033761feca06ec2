package database

import (
	"context"
	"encoding/json"
)

// InsertWsEvent appends one raw PBX WebSocket frame. The log is append-only:
// rows are never updated or deleted.
func (db *DB) InsertWsEvent(ctx context.Context, asteriskChan, eventType string, raw json.RawMessage) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO asterisk_ws_events (asterisk_chan, event_type, json_data)
		VALUES ($1, $2, $3)
	`, asteriskChan, eventType, raw)
	return err
}

// WsEventCount reports the size of the event log, for health reporting.
func (db *DB) WsEventCount(ctx context.Context) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM asterisk_ws_events`).Scan(&n)
	return n, err
}
