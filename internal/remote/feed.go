package remote

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/iboybrian/atitlan-vibes/internal/api"
	"github.com/iboybrian/atitlan-vibes/internal/chat"
)

// Subscribe implements chat.Feed. It returns once the daemon has
// acknowledged the subscription, so no change committed after Subscribe
// returns can be missed.
func (c *Client) Subscribe(ctx context.Context, q chat.FeedQuery) (chat.Subscription, error) {
	req := api.Request{Table: q.Table}
	if len(q.Filter) > 0 {
		req.Filter = make(map[string][]string, len(q.Filter))
		for k, v := range q.Filter {
			req.Filter[k] = []string{v}
		}
	}
	for _, op := range q.Ops {
		req.Ops = append(req.Ops, string(op))
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := c.board.Subscribe(sctx, req)
	if err != nil {
		cancel()
		return nil, chatError("subscribe "+q.Table, err)
	}

	stop := context.AfterFunc(ctx, cancel)
	ack, err := stream.Recv()
	stop()
	if err != nil {
		cancel()
		return nil, chatError("subscribe "+q.Table, err)
	}
	if ev := api.ParseEvent(ack); ev.Op != api.OpSubscribed {
		cancel()
		return nil, fmt.Errorf("subscribe %s: unexpected first event %q", q.Table, ev.Op)
	}

	s := &subscription{
		table:  q.Table,
		cancel: cancel,
		ch:     make(chan chat.Change, 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run(stream)
	return s, nil
}

type subscription struct {
	table  string
	cancel context.CancelFunc
	ch     chan chat.Change
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *subscription) run(stream grpc.ServerStreamingClient[structpb.Struct]) {
	defer close(s.done)
	defer close(s.ch)
	for {
		msg, err := stream.Recv()
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = fmt.Errorf("%w: %s: %w", chat.ErrSubscriptionDropped, s.table, err)
			}
			s.mu.Unlock()
			return
		}
		change, ok := toChange(api.ParseEvent(msg))
		if !ok {
			continue
		}
		select {
		case s.ch <- change:
		case <-s.stop:
			return
		}
	}
}

func toChange(e api.Event) (chat.Change, bool) {
	c := chat.Change{Table: e.Table, Op: chat.Op(e.Op)}
	switch e.Table {
	case chat.TableMessages:
		m := toMessage(e.Row)
		c.Message = &m
	case chat.TableReactions:
		r := toReaction(e.Row)
		c.Reaction = &r
	default:
		return chat.Change{}, false
	}
	return c, true
}

func (s *subscription) Events() <-chan chat.Change { return s.ch }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() {
		close(s.stop)
		s.cancel()
	})
	<-s.done
}
