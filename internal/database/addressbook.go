package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Contact is one address-book entry. Availability carries the raw JSON list
// of on-call windows; parsing and the selection rule live in
// internal/addressbook.
type Contact struct {
	ID           string
	Name         string
	Surname      string
	Address      string
	ZipCode      string
	City         string
	State        string
	Country      string
	PhoneNumber  string
	Availability json.RawMessage
	CreatedTime  time.Time
	Enabled      bool
	Annotations  string
}

const contactColumns = `id, name, surname, address, zip_code, city, state, country,
	phone_number, on_call_availability, created_time, enabled, annotations`

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID, &c.Name, &c.Surname, &c.Address, &c.ZipCode, &c.City, &c.State, &c.Country,
		&c.PhoneNumber, &c.Availability, &c.CreatedTime, &c.Enabled, &c.Annotations,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertContact adds a contact and returns its id.
func (db *DB) InsertContact(ctx context.Context, c *Contact) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO address_book (
			name, surname, address, zip_code, city, state, country,
			phone_number, on_call_availability, created_time, enabled, annotations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, timezone('utc', now()), $10, $11)
		RETURNING id
	`,
		c.Name, c.Surname, c.Address, c.ZipCode, c.City, c.State, c.Country,
		c.PhoneNumber, c.Availability, c.Enabled, c.Annotations,
	).Scan(&id)
	return id, err
}

// UpdateContact overwrites the mutable fields of a contact. Returns the
// number of rows changed (0 when the id is unknown).
func (db *DB) UpdateContact(ctx context.Context, c *Contact) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE address_book SET
			name = $2, surname = $3, address = $4, zip_code = $5, city = $6,
			state = $7, country = $8, phone_number = $9,
			on_call_availability = $10, enabled = $11, annotations = $12
		WHERE id = $1
	`,
		c.ID, c.Name, c.Surname, c.Address, c.ZipCode, c.City,
		c.State, c.Country, c.PhoneNumber,
		c.Availability, c.Enabled, c.Annotations,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteContacts removes the given ids, returning how many went away.
func (db *DB) DeleteContacts(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := db.Pool.Exec(ctx, `DELETE FROM address_book WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListContacts returns every contact, for CSV export and import dedup.
func (db *DB) ListContacts(ctx context.Context) ([]*Contact, error) {
	return db.queryContacts(ctx, `SELECT `+contactColumns+` FROM address_book ORDER BY created_time`)
}

// EnabledContacts returns only the contacts eligible for on-call selection.
func (db *DB) EnabledContacts(ctx context.Context) ([]*Contact, error) {
	return db.queryContacts(ctx, `SELECT `+contactColumns+` FROM address_book WHERE enabled ORDER BY created_time`)
}

func (db *DB) queryContacts(ctx context.Context, sql string) ([]*Contact, error) {
	rows, err := db.Pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetContact fetches one contact by id.
func (db *DB) GetContact(ctx context.Context, id string) (*Contact, error) {
	c, err := scanContact(db.Pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM address_book WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}
