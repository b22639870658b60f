// Package remote is the client side of the board daemon. Client implements
// the chat core's Store and Feed over gRPC.
package remote

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/iboybrian/atitlan-vibes/internal/api"
	"github.com/iboybrian/atitlan-vibes/internal/chat"
)

// Client talks to the board daemon.
type Client struct {
	conn   *grpc.ClientConn
	board  *api.BoardClient
	health healthpb.HealthClient
	logger *zap.Logger
}

var (
	_ chat.Store = (*Client)(nil)
	_ chat.Feed  = (*Client)(nil)
)

// Dial connects to the daemon's Unix domain socket.
func Dial(socketPath string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	return dial("unix://"+socketPath, logger, opts...)
}

func dial(target string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{
		conn:   conn,
		board:  api.NewBoardClient(conn),
		health: healthpb.NewHealthClient(conn),
		logger: logger,
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping reports whether the board service is serving.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("board service is %s", resp.GetStatus())
	}
	return nil
}

// chatError maps gRPC status codes onto the chat sentinels.
func chatError(op string, err error) error {
	switch grpcstatus.Code(err) {
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w: %w", op, chat.ErrConflict, err)
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %w", op, chat.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toRoom(row map[string]string) chat.Room {
	return chat.Room{
		ID:    row["id"],
		Scope: chat.Scope{TownID: row["town_id"], Type: row["type"]},
		Name:  row["name"],
	}
}

func toMessage(row map[string]string) chat.Message {
	return chat.Message{
		ID:        row["id"],
		ChatID:    row["chat_id"],
		SenderID:  row["sender_id"],
		Text:      row["text"],
		ReplyToID: row["reply_to_message_id"],
		CreatedAt: api.Millis(row["created_at"]),
	}
}

func toReaction(row map[string]string) chat.Reaction {
	return chat.Reaction{
		ID:        row["id"],
		MessageID: row["message_id"],
		UserID:    row["user_id"],
		Emoji:     row["emoji"],
	}
}

func toTown(row map[string]string) chat.Town {
	return chat.Town{ID: row["id"], Name: row["name"], Description: row["description"]}
}

func first(resp api.Response, what string) (map[string]string, error) {
	if len(resp.Rows) == 0 {
		return nil, fmt.Errorf("%w: %s", chat.ErrNotFound, what)
	}
	return resp.Rows[0], nil
}

// UpsertRoom implements chat.RoomStore.
func (c *Client) UpsertRoom(ctx context.Context, scope chat.Scope, name string) (chat.Room, error) {
	resp, err := c.board.Upsert(ctx, api.Request{
		Table:    chat.TableChats,
		Row:      map[string]string{"town_id": scope.TownID, "type": scope.Type, "name": name},
		Conflict: []string{"town_id", "type"},
	})
	if err != nil {
		return chat.Room{}, chatError("upsert room", err)
	}
	row, err := first(resp, "upserted room")
	if err != nil {
		return chat.Room{}, err
	}
	return toRoom(row), nil
}

// RoomByScope implements chat.RoomStore.
func (c *Client) RoomByScope(ctx context.Context, scope chat.Scope) (chat.Room, error) {
	resp, err := c.board.Select(ctx, api.Request{
		Table:  chat.TableChats,
		Filter: map[string][]string{"town_id": {scope.TownID}, "type": {scope.Type}},
	})
	if err != nil {
		return chat.Room{}, chatError("select room", err)
	}
	row, err := first(resp, "room "+scope.Key())
	if err != nil {
		return chat.Room{}, err
	}
	return toRoom(row), nil
}

// Messages implements chat.MessageStore.
func (c *Client) Messages(ctx context.Context, chatID string) ([]chat.Message, error) {
	resp, err := c.board.Select(ctx, api.Request{
		Table:  chat.TableMessages,
		Filter: map[string][]string{"chat_id": {chatID}},
		Order:  "created_at",
	})
	if err != nil {
		return nil, chatError("select messages", err)
	}
	out := make([]chat.Message, len(resp.Rows))
	for i, row := range resp.Rows {
		out[i] = toMessage(row)
	}
	return out, nil
}

// InsertMessage implements chat.MessageStore.
func (c *Client) InsertMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	row := map[string]string{"chat_id": m.ChatID, "sender_id": m.SenderID, "text": m.Text}
	if m.ReplyToID != "" {
		row["reply_to_message_id"] = m.ReplyToID
	}
	resp, err := c.board.Insert(ctx, api.Request{Table: chat.TableMessages, Row: row})
	if err != nil {
		return chat.Message{}, chatError("insert message", err)
	}
	out, err := first(resp, "inserted message")
	if err != nil {
		return chat.Message{}, err
	}
	return toMessage(out), nil
}

// Reactions implements chat.ReactionStore.
func (c *Client) Reactions(ctx context.Context, messageIDs []string) ([]chat.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	resp, err := c.board.Select(ctx, api.Request{
		Table:  chat.TableReactions,
		Filter: map[string][]string{"message_id": messageIDs},
	})
	if err != nil {
		return nil, chatError("select reactions", err)
	}
	out := make([]chat.Reaction, len(resp.Rows))
	for i, row := range resp.Rows {
		out[i] = toReaction(row)
	}
	return out, nil
}

// InsertReaction implements chat.ReactionStore.
func (c *Client) InsertReaction(ctx context.Context, r chat.Reaction) (chat.Reaction, error) {
	resp, err := c.board.Insert(ctx, api.Request{
		Table: chat.TableReactions,
		Row:   map[string]string{"message_id": r.MessageID, "user_id": r.UserID, "emoji": r.Emoji},
	})
	if err != nil {
		return chat.Reaction{}, chatError("insert reaction", err)
	}
	row, err := first(resp, "inserted reaction")
	if err != nil {
		return chat.Reaction{}, err
	}
	return toReaction(row), nil
}

// DeleteReaction implements chat.ReactionStore.
func (c *Client) DeleteReaction(ctx context.Context, id string) error {
	_, err := c.board.Delete(ctx, api.Request{
		Table:  chat.TableReactions,
		Filter: map[string][]string{"id": {id}},
	})
	if err != nil {
		return chatError("delete reaction", err)
	}
	return nil
}

// Identities implements chat.IdentityStore.
func (c *Client) Identities(ctx context.Context, userIDs []string) ([]chat.Identity, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	resp, err := c.board.Select(ctx, api.Request{
		Table:  chat.TableUsers,
		Filter: map[string][]string{"id": userIDs},
	})
	if err != nil {
		return nil, chatError("select users", err)
	}
	out := make([]chat.Identity, len(resp.Rows))
	for i, row := range resp.Rows {
		out[i] = chat.Identity{UserID: row["id"], Name: row["name"], Email: row["email"]}
	}
	return out, nil
}

// Town implements chat.TownStore.
func (c *Client) Town(ctx context.Context, id string) (chat.Town, error) {
	resp, err := c.board.Select(ctx, api.Request{
		Table:  chat.TableTowns,
		Filter: map[string][]string{"id": {id}},
	})
	if err != nil {
		return chat.Town{}, chatError("select town", err)
	}
	row, err := first(resp, "town "+id)
	if err != nil {
		return chat.Town{}, err
	}
	return toTown(row), nil
}

// Towns lists every town.
func (c *Client) Towns(ctx context.Context) ([]chat.Town, error) {
	resp, err := c.board.Select(ctx, api.Request{Table: chat.TableTowns})
	if err != nil {
		return nil, chatError("select towns", err)
	}
	out := make([]chat.Town, len(resp.Rows))
	for i, row := range resp.Rows {
		out[i] = toTown(row)
	}
	return out, nil
}

// UpsertTown creates or renames a town.
func (c *Client) UpsertTown(ctx context.Context, t chat.Town) error {
	_, err := c.board.Upsert(ctx, api.Request{
		Table: chat.TableTowns,
		Row:   map[string]string{"id": t.ID, "name": t.Name, "description": t.Description},
	})
	if err != nil {
		return chatError("upsert town", err)
	}
	return nil
}

// UpsertUser creates or updates an identity record.
func (c *Client) UpsertUser(ctx context.Context, id chat.Identity) error {
	_, err := c.board.Upsert(ctx, api.Request{
		Table: chat.TableUsers,
		Row:   map[string]string{"id": id.UserID, "name": id.Name, "email": id.Email},
	})
	if err != nil {
		return chatError("upsert user", err)
	}
	return nil
}
