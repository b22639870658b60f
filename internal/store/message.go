package store

import (
	"context"
	"database/sql"
)

// InsertMessage stores a new message and returns it with its sequence number.
func (db *DB) InsertMessage(ctx context.Context, m *Message) (*Message, error) {
	out := *m
	err := db.QueryRowContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, text, reply_to_message_id, created_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)
		RETURNING seq`,
		m.ID, m.ChatID, m.SenderID, m.Text, m.ReplyToID, m.CreatedAt).Scan(&out.Seq)
	if err != nil {
		return nil, classify(err)
	}
	return &out, nil
}

// ListMessages returns every message of a chat ascending by created_at, ties
// broken by insertion order.
func (db *DB) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT seq, id, chat_id, sender_id, text, COALESCE(reply_to_message_id, ''), created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC, seq ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.ReplyToID, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a message by id, or nil if it does not exist.
func (db *DB) GetMessage(ctx context.Context, id string) (*Message, error) {
	var m Message
	err := db.QueryRowContext(ctx, `
		SELECT seq, id, chat_id, sender_id, text, COALESCE(reply_to_message_id, ''), created_at
		FROM messages WHERE id = ?`, id).
		Scan(&m.Seq, &m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.ReplyToID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
