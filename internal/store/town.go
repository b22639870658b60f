package store

import (
	"context"
	"database/sql"
	"time"
)

// UpsertTown inserts or updates a town.
func (db *DB) UpsertTown(ctx context.Context, t *Town) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO towns (id, name, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE towns.description END,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, t.Description, now)
	return err
}

// GetTown returns a town by id, or nil if it does not exist.
func (db *DB) GetTown(ctx context.Context, id string) (*Town, error) {
	var t Town
	err := db.QueryRowContext(ctx, `SELECT id, name, description FROM towns WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTowns returns all towns sorted by name.
func (db *DB) ListTowns(ctx context.Context) ([]Town, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, description FROM towns ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var towns []Town
	for rows.Next() {
		var t Town
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, err
		}
		towns = append(towns, t)
	}
	return towns, rows.Err()
}
