package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName and method are the hand-rolled equivalents of a.proto
// service/method pair; there is no protoc step in this build.
const (
	serviceName = "kadstore.wire"
	method      = "Exchange"
	fullMethod  = "/" + serviceName + "/" + method
)

// ExchangeServer is implemented by anything that answers a single
// JSON-framed wire.Message and returns one back.
type ExchangeServer interface {
	Exchange(ctx context.Context, req *frame) (*frame, error)
}

// serviceDesc is registered against a *grpc.Server in place of a
// protoc-generated _grpc.pb.go file.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: method,
			Handler:    exchangeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kadstore/transport/grpc",
}

func exchangeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(frame)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServer).Exchange(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServer).Exchange(ctx, req.(*frame))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterExchangeServer wires srv into s under the hand-rolled ServiceDesc.
func RegisterExchangeServer(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&serviceDesc, srv)
}
