package store

import (
	"context"
	"database/sql"
	"time"
)

// UpsertUser inserts or updates a user. Empty fields keep their stored value.
func (db *DB) UpsertUser(ctx context.Context, u *User) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, updated_at)
		VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?)
		ON CONFLICT(id) DO UPDATE SET
			name = COALESCE(excluded.name, users.name),
			email = COALESCE(excluded.email, users.email),
			updated_at = excluded.updated_at`,
		u.ID, u.Name, u.Email, now)
	return err
}

// UsersByID returns the users among ids that exist. Missing ids are simply
// absent from the result.
func (db *DB) UsersByID(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(email, '')
		FROM users
		WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns a user by id, or nil if it does not exist.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := db.QueryRowContext(ctx, `SELECT id, COALESCE(name, ''), COALESCE(email, '') FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
