package board

import (
	"strconv"

	"github.com/iboybrian/atitlan-vibes/internal/store"
)

// Columns returns the column values of a change row, keyed by column name.
func Columns(row any) map[string]string {
	switch r := row.(type) {
	case *store.Chat:
		return map[string]string{"id": r.ID, "town_id": r.TownID, "type": r.Type, "name": r.Name}
	case *store.Message:
		return map[string]string{
			"id": r.ID, "chat_id": r.ChatID, "sender_id": r.SenderID, "text": r.Text,
			"reply_to_message_id": r.ReplyToID, "created_at": strconv.FormatInt(r.CreatedAt, 10),
		}
	case *store.Reaction:
		return map[string]string{"id": r.ID, "message_id": r.MessageID, "user_id": r.UserID, "emoji": r.Emoji}
	case *store.User:
		return map[string]string{"id": r.ID, "name": r.Name, "email": r.Email}
	case *store.Town:
		return map[string]string{"id": r.ID, "name": r.Name, "description": r.Description}
	}
	return nil
}

// Matches reports whether c passes an equality filter on its columns and,
// when ops is non-empty, has one of the listed operations.
func Matches(c Change, filter map[string]string, ops []string) bool {
	if len(ops) > 0 {
		found := false
		for _, op := range ops {
			if op == c.Op {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter) == 0 {
		return true
	}
	cols := Columns(c.Row)
	for k, v := range filter {
		if cols[k] != v {
			return false
		}
	}
	return true
}
