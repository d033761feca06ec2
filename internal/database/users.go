package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// User is a web-UI account. The UI itself lives outside this repo; the core
// only owns the table.
type User struct {
	ID          string
	GivenName   string
	Email       string
	Password    string
	IsActive    bool
	CreatedOn   time.Time
	LastLogin   *time.Time
	Annotations string
}

// ErrDuplicateUser is returned when the email is already taken. Constraint
// violations are surfaced to the caller and never retried.
var ErrDuplicateUser = errors.New("user with this email already exists")

// InsertUser adds a user account and returns its id.
func (db *DB) InsertUser(ctx context.Context, u *User) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (given_name, email, password, is_active, annotations)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, u.GivenName, u.Email, u.Password, u.IsActive, u.Annotations).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return "", ErrDuplicateUser
	}
	return id, err
}

// UserByEmail fetches a user account, or nil when unknown.
func (db *DB) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := db.Pool.QueryRow(ctx, `
		SELECT id, given_name, email, password, is_active, created_on, last_login, annotations
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.GivenName, &u.Email, &u.Password, &u.IsActive, &u.CreatedOn, &u.LastLogin, &u.Annotations)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLastLogin stamps the login time on a user account.
func (db *DB) TouchLastLogin(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE users SET last_login = timezone('utc', now()) WHERE id = $1`, id)
	return err
}
