package remote

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/iboybrian/atitlan-vibes/internal/api"
	"github.com/iboybrian/atitlan-vibes/internal/board"
	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/chat"
	"github.com/iboybrian/atitlan-vibes/internal/store"
)

type testServer struct {
	srv    *grpc.Server
	lis    *bufconn.Listener
	engine *board.Engine
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	engine := board.NewEngine(db, bus.New(), nil, nil)
	srv := grpc.NewServer()
	api.RegisterBoardServer(srv, api.NewBoardService(engine, nil, 64))
	hs := health.NewServer()
	hs.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return &testServer{srv: srv, lis: lis, engine: engine}
}

func (s *testServer) client(t *testing.T) *Client {
	t.Helper()
	c, err := dial("passthrough:///bufnet", nil,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return s.lis.DialContext(ctx) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPing(t *testing.T) {
	c := startServer(t).client(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Ping(ctx))
}

func TestErrorMapping(t *testing.T) {
	c := startServer(t).client(t)
	ctx := context.Background()

	_, err := c.RoomByScope(ctx, chat.Scope{TownID: "Jaibalito", Type: "town"})
	assert.ErrorIs(t, err, chat.ErrNotFound)

	_, err = c.Town(ctx, "Atlantis")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	room, err := c.UpsertRoom(ctx, chat.Scope{TownID: "Jaibalito", Type: "town"}, "Jaibalito Chat")
	require.NoError(t, err)
	again, err := c.RoomByScope(ctx, room.Scope)
	require.NoError(t, err)
	assert.Equal(t, room, again)

	msg, err := c.InsertMessage(ctx, chat.Message{ChatID: room.ID, SenderID: "ana", Text: "kayak anyone?"})
	require.NoError(t, err)
	assert.False(t, msg.CreatedAt.IsZero())

	r := chat.Reaction{MessageID: msg.ID, UserID: "ana", Emoji: "❤️"}
	stored, err := c.InsertReaction(ctx, r)
	require.NoError(t, err)
	_, err = c.InsertReaction(ctx, r)
	assert.ErrorIs(t, err, chat.ErrConflict)

	require.NoError(t, c.DeleteReaction(ctx, stored.ID))
	assert.ErrorIs(t, c.DeleteReaction(ctx, stored.ID), chat.ErrNotFound)

	_, err = c.InsertMessage(ctx, chat.Message{ChatID: "missing", SenderID: "ana", Text: "lost"})
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestAdminRoundTrip(t *testing.T) {
	c := startServer(t).client(t)
	ctx := context.Background()

	towns, err := c.Towns(ctx)
	require.NoError(t, err)
	assert.Len(t, towns, 9)

	require.NoError(t, c.UpsertTown(ctx, chat.Town{ID: "SantaCatarina", Name: "Santa Catarina Palopó"}))
	town, err := c.Town(ctx, "SantaCatarina")
	require.NoError(t, err)
	assert.Equal(t, "Santa Catarina Palopó", town.Name)

	require.NoError(t, c.UpsertUser(ctx, chat.Identity{UserID: "ana", Email: "ana@lago.gt"}))
	ids, err := c.Identities(ctx, []string{"ana", "nobody"})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "ana", ids[0].DisplayName())
}

func TestSubscriptionCloseIsClean(t *testing.T) {
	c := startServer(t).client(t)
	sub, err := c.Subscribe(context.Background(), chat.FeedQuery{Table: chat.TableMessages})
	require.NoError(t, err)
	sub.Close()
	sub.Close()
	_, open := <-sub.Events()
	assert.False(t, open)
	assert.NoError(t, sub.Err())
}

func TestSubscriptionDroppedWhenServerStops(t *testing.T) {
	s := startServer(t)
	c := s.client(t)
	sub, err := c.Subscribe(context.Background(), chat.FeedQuery{Table: chat.TableReactions})
	require.NoError(t, err)
	defer sub.Close()

	s.srv.Stop()
	select {
	case _, open := <-sub.Events():
		assert.False(t, open)
	case <-time.After(3 * time.Second):
		t.Fatal("events channel not closed after server stop")
	}
	assert.True(t, errors.Is(sub.Err(), chat.ErrSubscriptionDropped), "err = %v", sub.Err())
}

func TestControllersShareRoomOverGRPC(t *testing.T) {
	s := startServer(t)
	ana, beto := s.client(t), s.client(t)
	ctx := context.Background()
	require.NoError(t, ana.UpsertUser(ctx, chat.Identity{UserID: "ana", Name: "Ana"}))

	ca := chat.NewController(chat.Options{Store: ana, Feed: ana, Identity: chat.StaticIdentity("ana")})
	cb := chat.NewController(chat.Options{Store: beto, Feed: beto, Identity: chat.StaticIdentity("beto")})
	t.Cleanup(func() {
		_ = ca.Leave()
		_ = cb.Leave()
	})

	scope := chat.Scope{TownID: "SanPedro", Type: chat.DefaultRoomType}
	require.NoError(t, ca.Open(ctx, scope))
	require.NoError(t, cb.Open(ctx, scope))
	ra, _ := ca.Room()
	rb, _ := cb.Room()
	require.Equal(t, ra.ID, rb.ID)
	assert.Equal(t, "San Pedro La Laguna Chat", ra.Name)

	sent, err := ca.Send(ctx, "sunset at the dock?", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(cb.Messages()) == 1 }, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, sent.ID, cb.Messages()[0].ID)
	require.Eventually(t, func() bool { return cb.DisplayName("ana") == "Ana" }, 3*time.Second, 5*time.Millisecond)

	on, err := cb.React(ctx, sent.ID, "🌅")
	require.NoError(t, err)
	assert.True(t, on)
	require.Eventually(t, func() bool {
		g := ca.Reactions(sent.ID)
		return len(g) == 1 && g[0].Count == 1
	}, 3*time.Second, 5*time.Millisecond)

	on, err = cb.React(ctx, sent.ID, "🌅")
	require.NoError(t, err)
	assert.False(t, on)
	require.Eventually(t, func() bool { return len(ca.Reactions(sent.ID)) == 0 }, 3*time.Second, 5*time.Millisecond)
}
