package store

import (
	"context"
	"database/sql"
)

// UpsertChat inserts the chat for (TownID, Type) or returns the row that
// already holds that scope. The stored name and id of an existing row are
// never overwritten.
func (db *DB) UpsertChat(ctx context.Context, c *Chat) (*Chat, error) {
	var out Chat
	err := db.QueryRowContext(ctx, `
		INSERT INTO chats (id, town_id, type, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(town_id, type) DO UPDATE SET
			name = chats.name
		RETURNING id, town_id, type, name, created_at`,
		c.ID, c.TownID, c.Type, c.Name, c.CreatedAt).
		Scan(&out.ID, &out.TownID, &out.Type, &out.Name, &out.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &out, nil
}

// GetChatByScope returns the chat for (townID, typ), or nil if none exists.
func (db *DB) GetChatByScope(ctx context.Context, townID, typ string) (*Chat, error) {
	return db.scanChat(db.QueryRowContext(ctx, `
		SELECT id, town_id, type, name, created_at
		FROM chats WHERE town_id = ? AND type = ?`, townID, typ))
}

// GetChat returns a chat by id, or nil if none exists.
func (db *DB) GetChat(ctx context.Context, id string) (*Chat, error) {
	return db.scanChat(db.QueryRowContext(ctx, `
		SELECT id, town_id, type, name, created_at
		FROM chats WHERE id = ?`, id))
}

// ChatCount returns the total number of chats.
func (db *DB) ChatCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

func (db *DB) scanChat(row *sql.Row) (*Chat, error) {
	var c Chat
	err := row.Scan(&c.ID, &c.TownID, &c.Type, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
