package api

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/iboybrian/atitlan-vibes/internal/board"
	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/store"
)

func testService(t *testing.T) *BoardService {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBoardService(board.NewEngine(db, bus.New(), nil, nil), nil, 16)
}

func call(t *testing.T, fn func(context.Context, *structpb.Struct) (*structpb.Struct, error), req Request) (Response, error) {
	t.Helper()
	in, err := req.Struct()
	require.NoError(t, err)
	out, err := fn(context.Background(), in)
	if err != nil {
		return Response{}, err
	}
	return ParseResponse(out), nil
}

func upsertRoom(t *testing.T, s *BoardService, town string) map[string]string {
	t.Helper()
	resp, err := call(t, s.Upsert, Request{
		Table:    board.TableChats,
		Row:      map[string]string{"town_id": town, "type": "town", "name": town + " Chat"},
		Conflict: []string{"town_id", "type"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	return resp.Rows[0]
}

func TestUpsertChatReturnsExistingRow(t *testing.T) {
	s := testService(t)
	first := upsertRoom(t, s, "SanPedro")
	second := upsertRoom(t, s, "SanPedro")
	assert.Equal(t, first["id"], second["id"])

	resp, err := call(t, s.Select, Request{
		Table:  board.TableChats,
		Filter: map[string][]string{"town_id": {"SanPedro"}, "type": {"town"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, first["id"], resp.Rows[0]["id"])
}

func TestStatusCodes(t *testing.T) {
	s := testService(t)
	room := upsertRoom(t, s, "Panajachel")
	msg, err := call(t, s.Insert, Request{
		Table: board.TableMessages,
		Row:   map[string]string{"chat_id": room["id"], "sender_id": "ana", "text": "hola"},
	})
	require.NoError(t, err)
	msgID := msg.Rows[0]["id"]
	reaction := Request{
		Table: board.TableReactions,
		Row:   map[string]string{"message_id": msgID, "user_id": "ana", "emoji": "🔥"},
	}
	_, err = call(t, s.Insert, reaction)
	require.NoError(t, err)

	tests := []struct {
		name string
		fn   func(context.Context, *structpb.Struct) (*structpb.Struct, error)
		req  Request
		want codes.Code
	}{
		{"unknown chat", s.Insert, Request{Table: board.TableMessages, Row: map[string]string{"chat_id": "nope", "sender_id": "ana", "text": "x"}}, codes.NotFound},
		{"empty text", s.Insert, Request{Table: board.TableMessages, Row: map[string]string{"chat_id": room["id"], "sender_id": "ana", "text": "  "}}, codes.InvalidArgument},
		{"duplicate reaction", s.Insert, reaction, codes.AlreadyExists},
		{"missing reaction", s.Delete, Request{Table: board.TableReactions, Filter: map[string][]string{"id": {"nope"}}}, codes.NotFound},
		{"unsupported table", s.Insert, Request{Table: board.TableTowns}, codes.InvalidArgument},
		{"bad conflict target", s.Upsert, Request{Table: board.TableChats, Row: map[string]string{"town_id": "x"}, Conflict: []string{"id"}}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, tt.fn, tt.req)
			assert.Equal(t, tt.want, grpcstatus.Code(err), "err = %v", err)
		})
	}
}

func TestSelectReactionsByMessageIDs(t *testing.T) {
	s := testService(t)
	room := upsertRoom(t, s, "SanMarcos")
	var ids []string
	for _, text := range []string{"one", "two"} {
		resp, err := call(t, s.Insert, Request{
			Table: board.TableMessages,
			Row:   map[string]string{"chat_id": room["id"], "sender_id": "ana", "text": text},
		})
		require.NoError(t, err)
		ids = append(ids, resp.Rows[0]["id"])
	}
	for _, id := range ids {
		_, err := call(t, s.Insert, Request{
			Table: board.TableReactions,
			Row:   map[string]string{"message_id": id, "user_id": "beto", "emoji": "😂"},
		})
		require.NoError(t, err)
	}

	resp, err := call(t, s.Select, Request{Table: board.TableReactions, Filter: map[string][]string{"message_id": ids}})
	require.NoError(t, err)
	assert.Len(t, resp.Rows, 2)

	_, err = call(t, s.Select, Request{Table: board.TableReactions})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}

func bufClient(t *testing.T, s *BoardService) *BoardClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterBoardServer(srv, s)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewBoardClient(conn)
}

func TestSubscribeAcksThenFilters(t *testing.T) {
	s := testService(t)
	client := bufClient(t, s)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := client.Upsert(ctx, Request{Table: board.TableChats, Row: map[string]string{"town_id": "SanJuan", "type": "town"}})
	require.NoError(t, err)
	b, err := client.Upsert(ctx, Request{Table: board.TableChats, Row: map[string]string{"town_id": "Tzununa", "type": "town"}})
	require.NoError(t, err)
	roomA, roomB := a.Rows[0]["id"], b.Rows[0]["id"]

	stream, err := client.Subscribe(ctx, Request{
		Table:  board.TableMessages,
		Filter: map[string][]string{"chat_id": {roomA}},
		Ops:    []string{board.OpInsert},
	})
	require.NoError(t, err)
	ack, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, OpSubscribed, ParseEvent(ack).Op)

	_, err = client.Insert(ctx, Request{Table: board.TableMessages, Row: map[string]string{"chat_id": roomB, "sender_id": "ana", "text": "elsewhere"}})
	require.NoError(t, err)
	sent, err := client.Insert(ctx, Request{Table: board.TableMessages, Row: map[string]string{"chat_id": roomA, "sender_id": "ana", "text": "here"}})
	require.NoError(t, err)

	msg, err := stream.Recv()
	require.NoError(t, err)
	ev := ParseEvent(msg)
	assert.Equal(t, board.TableMessages, ev.Table)
	assert.Equal(t, board.OpInsert, ev.Op)
	assert.Equal(t, sent.Rows[0]["id"], ev.Row["id"])
	assert.Equal(t, "here", ev.Row["text"])
	assert.False(t, ev.OccurredAt.IsZero())
}
