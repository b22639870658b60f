package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/chat"
	"github.com/iboybrian/atitlan-vibes/internal/invite"
)

type messageOut struct {
	ID        string         `json:"id"`
	Sender    string         `json:"sender"`
	SenderID  string         `json:"sender_id"`
	Text      string         `json:"text"`
	ReplyTo   string         `json:"reply_to_message_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Reactions map[string]int `json:"reactions,omitempty"`
}

func toOut(ctl *chat.Controller, m chat.Message) messageOut {
	out := messageOut{
		ID:        m.ID,
		Sender:    ctl.DisplayName(m.SenderID),
		SenderID:  m.SenderID,
		Text:      m.Text,
		ReplyTo:   m.ReplyToID,
		CreatedAt: m.CreatedAt,
	}
	for _, g := range ctl.Reactions(m.ID) {
		if out.Reactions == nil {
			out.Reactions = make(map[string]int)
		}
		out.Reactions[g.Emoji] = g.Count
	}
	return out
}

func printMessage(ctl *chat.Controller, m chat.Message) {
	line := fmt.Sprintf("%s  %-16s %s", m.CreatedAt.Local().Format("15:04"), ctl.DisplayName(m.SenderID), m.Text)
	if m.ReplyToID != "" {
		if parent, ok := ctl.Message(m.ReplyToID); ok {
			line += fmt.Sprintf("  (re: %s)", ctl.DisplayName(parent.SenderID))
		}
	}
	for _, g := range ctl.Reactions(m.ID) {
		line += fmt.Sprintf(" [%s %d]", g.Emoji, g.Count)
	}
	fmt.Printf("%s  %s\n", line, m.ID)
}

// openRoom opens a controller on scope. A history load failure is reported
// and the room is still used.
func openRoom(ctx context.Context, e *env, scopeArg string, b *bus.Bus) (*chat.Controller, error) {
	scope, err := chat.ParseScope(scopeArg)
	if err != nil {
		return nil, err
	}
	ctl := chat.NewController(chat.Options{
		Store:    e.client,
		Feed:     e.client,
		Identity: chat.StaticIdentity(e.userID),
		Bus:      b,
		Logger:   e.logger.Named("chat"),
	})
	err = ctl.Open(ctx, scope)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrUnauthenticated):
		return nil, fmt.Errorf("you need to be logged in to access the chat: set user_id in config, ATITLAN_USER_ID or --user")
	case errors.Is(err, chat.ErrLoadFailed):
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	default:
		return nil, err
	}
	return ctl, nil
}

func cmdTownsList(ctx context.Context, e *env) error {
	towns, err := e.client.Towns(ctx)
	if err != nil {
		return err
	}
	if e.jsonOut {
		outputJSON(towns)
		return nil
	}
	if len(towns) == 0 {
		fmt.Println("No towns found.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, t := range towns {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Name, t.Description)
	}
	return tw.Flush()
}

func cmdTownsAdd(ctx context.Context, e *env, id, name, desc string) error {
	if err := e.client.UpsertTown(ctx, chat.Town{ID: id, Name: name, Description: desc}); err != nil {
		return err
	}
	if e.jsonOut {
		outputJSON(map[string]string{"id": id, "name": name, "description": desc})
		return nil
	}
	fmt.Printf("Town %s saved.\n", id)
	return nil
}

func cmdUsersAdd(ctx context.Context, e *env, id, name, email string) error {
	if err := e.client.UpsertUser(ctx, chat.Identity{UserID: id, Name: name, Email: email}); err != nil {
		return err
	}
	if e.jsonOut {
		outputJSON(map[string]string{"id": id, "name": name, "email": email})
		return nil
	}
	fmt.Printf("User %s saved.\n", id)
	return nil
}

func cmdChatOpen(ctx context.Context, e *env, scope string) error {
	ctl, err := openRoom(ctx, e, scope, nil)
	if err != nil {
		return err
	}
	defer func() { _ = ctl.Leave() }()

	room, _ := ctl.Room()
	msgs := ctl.Messages()
	if e.jsonOut {
		out := make([]messageOut, len(msgs))
		for i, m := range msgs {
			out[i] = toOut(ctl, m)
		}
		outputJSON(map[string]any{"room_id": room.ID, "name": room.Name, "scope": room.Scope.Key(), "messages": out})
		return nil
	}
	fmt.Printf("%s (%s)\n\n", room.Name, room.ID)
	if len(msgs) == 0 {
		fmt.Println("No messages yet! Be the first to say something 👋")
		return nil
	}
	for _, m := range msgs {
		printMessage(ctl, m)
	}
	return nil
}

func cmdChatSend(ctx context.Context, e *env, scope, text, replyTo string) error {
	ctl, err := openRoom(ctx, e, scope, nil)
	if err != nil {
		return err
	}
	defer func() { _ = ctl.Leave() }()

	m, err := ctl.Send(ctx, text, replyTo)
	if err != nil {
		return err
	}
	if e.jsonOut {
		outputJSON(toOut(ctl, m))
		return nil
	}
	fmt.Printf("Sent %s\n", m.ID)
	return nil
}

func cmdChatReact(ctx context.Context, e *env, scope, messageID, emoji string) error {
	ctl, err := openRoom(ctx, e, scope, nil)
	if err != nil {
		return err
	}
	defer func() { _ = ctl.Leave() }()

	on, err := ctl.React(ctx, messageID, emoji)
	if err != nil {
		return err
	}
	if e.jsonOut {
		outputJSON(map[string]any{"message_id": messageID, "emoji": emoji, "on": on})
		return nil
	}
	if on {
		fmt.Printf("Reacted %s\n", emoji)
	} else {
		fmt.Printf("Removed %s\n", emoji)
	}
	return nil
}

// cmdChatTail prints the history and then every appended message until
// interrupted or the feed drops.
func cmdChatTail(ctx context.Context, e *env, scope string) error {
	b := bus.New()
	sub := b.Subscribe(chat.EventMessageAppended, 256)
	defer sub.Close()
	errs := b.Subscribe(chat.EventError, 16)
	defer errs.Close()

	ctl, err := openRoom(ctx, e, scope, b)
	if err != nil {
		return err
	}
	defer func() { _ = ctl.Leave() }()

	emit := func(m chat.Message) {
		if e.jsonOut {
			outputJSON(toOut(ctl, m))
		} else {
			printMessage(ctl, m)
		}
	}
	seen := make(map[string]bool)
	for _, m := range ctl.Messages() {
		seen[m.ID] = true
		emit(m)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Dropped():
			return fmt.Errorf("tail fell behind the feed")
		case evt := <-sub.Events():
			if m, ok := evt.Payload.(chat.Message); ok && !seen[m.ID] {
				seen[m.ID] = true
				emit(m)
			}
		case evt := <-errs.Events():
			if err, ok := evt.Payload.(error); ok && errors.Is(err, chat.ErrSubscriptionDropped) {
				return err
			}
		}
	}
}

func cmdInvite(townID string, jsonOut bool) {
	link := invite.Link(townID)
	if jsonOut {
		outputJSON(map[string]string{"town_id": townID, "link": link})
		return
	}
	qr, err := invite.RenderQR(link, "  ")
	if err != nil {
		fail(err)
	}
	fmt.Printf("\n%s\n  %s\n", qr, link)
}
