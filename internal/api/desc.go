package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "atitlan.board.v1.Board"

const (
	methodUpsert    = "/" + ServiceName + "/Upsert"
	methodSelect    = "/" + ServiceName + "/Select"
	methodInsert    = "/" + ServiceName + "/Insert"
	methodDelete    = "/" + ServiceName + "/Delete"
	methodSubscribe = "/" + ServiceName + "/Subscribe"
)

// BoardHandler is the server API for the Board service.
type BoardHandler interface {
	Upsert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Select(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Insert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterBoardServer registers the Board service on s.
func RegisterBoardServer(s grpc.ServiceRegistrar, srv BoardHandler) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(BoardHandler, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BoardHandler), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BoardHandler), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BoardHandler).Subscribe(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes the Board service. Every message is a
// google.protobuf.Struct; see Request, Response and Event for the layout.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BoardHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Upsert", Handler: unaryHandler(methodUpsert, BoardHandler.Upsert)},
		{MethodName: "Select", Handler: unaryHandler(methodSelect, BoardHandler.Select)},
		{MethodName: "Insert", Handler: unaryHandler(methodInsert, BoardHandler.Insert)},
		{MethodName: "Delete", Handler: unaryHandler(methodDelete, BoardHandler.Delete)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "atitlan/board/v1/board.proto",
}

// BoardClient is the client API for the Board service.
type BoardClient struct {
	cc grpc.ClientConnInterface
}

// NewBoardClient wraps a connection.
func NewBoardClient(cc grpc.ClientConnInterface) *BoardClient {
	return &BoardClient{cc: cc}
}

func (c *BoardClient) unary(ctx context.Context, method string, req Request, opts ...grpc.CallOption) (Response, error) {
	in, err := req.Struct()
	if err != nil {
		return Response{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return Response{}, err
	}
	return ParseResponse(out), nil
}

// Upsert inserts a row or returns the row holding its conflict key.
func (c *BoardClient) Upsert(ctx context.Context, req Request, opts ...grpc.CallOption) (Response, error) {
	return c.unary(ctx, methodUpsert, req, opts...)
}

// Select reads rows matching req.Filter.
func (c *BoardClient) Select(ctx context.Context, req Request, opts ...grpc.CallOption) (Response, error) {
	return c.unary(ctx, methodSelect, req, opts...)
}

// Insert adds a row; the stored row is returned.
func (c *BoardClient) Insert(ctx context.Context, req Request, opts ...grpc.CallOption) (Response, error) {
	return c.unary(ctx, methodInsert, req, opts...)
}

// Delete removes rows matching req.Filter.
func (c *BoardClient) Delete(ctx context.Context, req Request, opts ...grpc.CallOption) (Response, error) {
	return c.unary(ctx, methodDelete, req, opts...)
}

// Subscribe opens a change stream.
func (c *BoardClient) Subscribe(ctx context.Context, req Request, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	in, err := req.Struct()
	if err != nil {
		return nil, err
	}
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodSubscribe, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
