package store

import (
	"context"
	"database/sql"
)

// InsertReaction stores a reaction. A second insert of the same
// (message, user, emoji) tuple fails with ErrConflict.
func (db *DB) InsertReaction(ctx context.Context, r *Reaction) (*Reaction, error) {
	out := *r
	err := db.QueryRowContext(ctx, `
		INSERT INTO message_reactions (id, message_id, user_id, emoji, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING seq`,
		r.ID, r.MessageID, r.UserID, r.Emoji, r.CreatedAt).Scan(&out.Seq)
	if err != nil {
		return nil, classify(err)
	}
	return &out, nil
}

// DeleteReaction removes a reaction by id and returns the deleted row, or nil
// if no row matched.
func (db *DB) DeleteReaction(ctx context.Context, id string) (*Reaction, error) {
	var r Reaction
	err := db.QueryRowContext(ctx, `
		DELETE FROM message_reactions WHERE id = ?
		RETURNING seq, id, message_id, user_id, emoji, created_at`, id).
		Scan(&r.Seq, &r.ID, &r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReactions returns the reactions of the given messages in insertion order.
func (db *DB) ListReactions(ctx context.Context, messageIDs []string) ([]Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, `
		SELECT seq, id, message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id IN (`+placeholders(len(messageIDs))+`)
		ORDER BY seq ASC`, stringArgs(messageIDs)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Reaction
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.Seq, &r.ID, &r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
