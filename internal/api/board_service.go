package api

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/iboybrian/atitlan-vibes/internal/board"
	"github.com/iboybrian/atitlan-vibes/internal/store"
)

var errNoRows = errors.New("no matching row")

// BoardService implements the Board gRPC service on top of the engine.
type BoardService struct {
	engine  *board.Engine
	logger  *zap.Logger
	bufSize int

	closing   chan struct{}
	closeOnce sync.Once
}

var _ BoardHandler = (*BoardService)(nil)

// NewBoardService creates a new board service. bufSize is the per-stream
// change buffer; a client further behind than that is disconnected.
func NewBoardService(e *board.Engine, logger *zap.Logger, bufSize int) *BoardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufSize <= 0 {
		bufSize = 256
	}
	return &BoardService{engine: e, logger: logger, bufSize: bufSize, closing: make(chan struct{})}
}

// Shutdown ends every open Subscribe stream with Unavailable so a graceful
// server stop does not wait on them.
func (s *BoardService) Shutdown() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// statusError maps engine and store errors onto gRPC codes.
func statusError(op string, err error) error {
	switch {
	case errors.Is(err, board.ErrInvalid):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, store.ErrConflict):
		return grpcstatus.Errorf(codes.AlreadyExists, "%s: %v", op, err)
	case errors.Is(err, store.ErrMissingReference), errors.Is(err, errNoRows):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	}
	return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
}

func reply(rows ...any) (*structpb.Struct, error) {
	var resp Response
	for _, r := range rows {
		resp.Rows = append(resp.Rows, board.Columns(r))
	}
	out, err := resp.Struct()
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func parse(in *structpb.Struct) (Request, error) {
	req, err := ParseRequest(in)
	if err != nil {
		return req, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	return req, nil
}

func (s *BoardService) Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := parse(in)
	if err != nil {
		return nil, err
	}
	row := req.Row
	switch req.Table {
	case board.TableChats:
		if len(req.Conflict) > 0 && !slices.Equal(req.Conflict, []string{"town_id", "type"}) {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "upsert chats: unsupported conflict target %v", req.Conflict)
		}
		c, err := s.engine.UpsertChat(ctx, row["town_id"], row["type"], row["name"])
		if err != nil {
			return nil, statusError("upsert chats", err)
		}
		return reply(c)
	case board.TableTowns:
		t := &store.Town{ID: row["id"], Name: row["name"], Description: row["description"]}
		if err := s.engine.UpsertTown(ctx, t); err != nil {
			return nil, statusError("upsert towns", err)
		}
		return reply(t)
	case board.TableUsers:
		u := &store.User{ID: row["id"], Name: row["name"], Email: row["email"]}
		if err := s.engine.UpsertUser(ctx, u); err != nil {
			return nil, statusError("upsert users", err)
		}
		return reply(u)
	}
	return nil, grpcstatus.Errorf(codes.InvalidArgument, "upsert: unsupported table %q", req.Table)
}

func (s *BoardService) Select(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := parse(in)
	if err != nil {
		return nil, err
	}
	db := s.engine.DB()
	eq := req.Eq()

	switch req.Table {
	case board.TableChats:
		var c *store.Chat
		if id, ok := eq["id"]; ok {
			c, err = db.GetChat(ctx, id)
		} else {
			c, err = db.GetChatByScope(ctx, eq["town_id"], eq["type"])
		}
		if err != nil {
			return nil, statusError("select chats", err)
		}
		if c == nil {
			return reply()
		}
		return reply(c)

	case board.TableMessages:
		chatID, ok := eq["chat_id"]
		if !ok {
			return nil, grpcstatus.Error(codes.InvalidArgument, "select messages: chat_id filter is required")
		}
		msgs, err := db.ListMessages(ctx, chatID)
		if err != nil {
			return nil, statusError("select messages", err)
		}
		rows := make([]any, len(msgs))
		for i := range msgs {
			rows[i] = &msgs[i]
		}
		return reply(rows...)

	case board.TableReactions:
		ids, ok := req.Filter["message_id"]
		if !ok {
			return nil, grpcstatus.Error(codes.InvalidArgument, "select message_reactions: message_id filter is required")
		}
		rs, err := db.ListReactions(ctx, ids)
		if err != nil {
			return nil, statusError("select message_reactions", err)
		}
		rows := make([]any, len(rs))
		for i := range rs {
			rows[i] = &rs[i]
		}
		return reply(rows...)

	case board.TableUsers:
		users, err := db.UsersByID(ctx, req.Filter["id"])
		if err != nil {
			return nil, statusError("select users", err)
		}
		rows := make([]any, len(users))
		for i := range users {
			rows[i] = &users[i]
		}
		return reply(rows...)

	case board.TableTowns:
		if id, ok := eq["id"]; ok {
			t, err := db.GetTown(ctx, id)
			if err != nil {
				return nil, statusError("select towns", err)
			}
			if t == nil {
				return reply()
			}
			return reply(t)
		}
		towns, err := db.ListTowns(ctx)
		if err != nil {
			return nil, statusError("select towns", err)
		}
		rows := make([]any, len(towns))
		for i := range towns {
			rows[i] = &towns[i]
		}
		return reply(rows...)
	}
	return nil, grpcstatus.Errorf(codes.InvalidArgument, "select: unsupported table %q", req.Table)
}

func (s *BoardService) Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := parse(in)
	if err != nil {
		return nil, err
	}
	row := req.Row
	switch req.Table {
	case board.TableMessages:
		m, err := s.engine.InsertMessage(ctx, &store.Message{
			ChatID:    row["chat_id"],
			SenderID:  row["sender_id"],
			Text:      row["text"],
			ReplyToID: row["reply_to_message_id"],
		})
		if err != nil {
			return nil, statusError("insert messages", err)
		}
		return reply(m)
	case board.TableReactions:
		r, err := s.engine.InsertReaction(ctx, &store.Reaction{
			MessageID: row["message_id"],
			UserID:    row["user_id"],
			Emoji:     row["emoji"],
		})
		if err != nil {
			return nil, statusError("insert message_reactions", err)
		}
		return reply(r)
	}
	return nil, grpcstatus.Errorf(codes.InvalidArgument, "insert: unsupported table %q", req.Table)
}

func (s *BoardService) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := parse(in)
	if err != nil {
		return nil, err
	}
	if req.Table != board.TableReactions {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "delete: unsupported table %q", req.Table)
	}
	id := req.Eq()["id"]
	r, err := s.engine.DeleteReaction(ctx, id)
	if err != nil {
		return nil, statusError("delete message_reactions", err)
	}
	if r == nil {
		return nil, statusError("delete message_reactions", fmt.Errorf("%w: id %q", errNoRows, id))
	}
	return reply(r)
}

func (s *BoardService) Subscribe(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	req, err := parse(in)
	if err != nil {
		return err
	}
	switch req.Table {
	case board.TableChats, board.TableMessages, board.TableReactions, board.TableUsers, board.TableTowns:
	default:
		return grpcstatus.Errorf(codes.InvalidArgument, "subscribe: unsupported table %q", req.Table)
	}

	sub := s.engine.Subscribe(req.Table, s.bufSize)
	defer sub.Close()

	ack, err := Event{ID: uuid.NewString(), Table: req.Table, Op: OpSubscribed}.Struct()
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "encode ack: %v", err)
	}
	if err := stream.Send(ack); err != nil {
		return err
	}

	filter := req.Eq()
	logger := s.logger.With(zap.String("table", req.Table))
	logger.Debug("subscriber attached", zap.Any("filter", filter), zap.Strings("ops", req.Ops))
	for {
		select {
		case <-stream.Context().Done():
			logger.Debug("subscriber detached")
			return nil
		case <-s.closing:
			return grpcstatus.Error(codes.Unavailable, "board shutting down")
		case <-sub.Dropped():
			s.engine.Dropped(req.Table)
			return grpcstatus.Errorf(codes.ResourceExhausted, "subscribe %s: subscriber fell behind", req.Table)
		case evt := <-sub.Events():
			c, ok := evt.Payload.(board.Change)
			if !ok || !board.Matches(c, filter, req.Ops) {
				continue
			}
			msg, err := Event{
				ID:         uuid.NewString(),
				Table:      c.Table,
				Op:         c.Op,
				Row:        board.Columns(c.Row),
				OccurredAt: evt.Timestamp,
			}.Struct()
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "encode event: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
