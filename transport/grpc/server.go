package grpc

import (
	"context"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/artifactmesh/kadstore/wire"
)

// Handler processes one decoded wire.Message and returns the response to
// send back. It is the DHT node's dispatch table, injected so this
// package stays ignorant of FIND_NODE/STORE/etc semantics.
type Handler func(ctx context.Context, msg wire.Message) (wire.Message, error)

// Server adapts a Handler to the hand-rolled Exchange RPC.
type Server struct {
	handler  Handler
	grpcSrv  *grpc.Server
	listener net.Listener
}

// NewServer wraps handler; call Serve to start accepting connections.
func NewServer(handler Handler) *Server {
	s := &Server{handler: handler}
	s.grpcSrv = grpc.NewServer(grpc.ForceServerCodec(encoding.GetCodec(contentSubtype)))
	RegisterExchangeServer(s.grpcSrv, s)
	return s
}

// Exchange implements ExchangeServer by decoding the JSON payload into a
// wire.Message, dispatching to the handler, and re-encoding the result.
func (s *Server) Exchange(ctx context.Context, req *frame) (*frame, error) {
	msg, err := wire.Unmarshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("transport/grpc: malformed payload: %w", err)
	}
	resp, err := s.handler(ctx, msg)
	if err != nil {
		return nil, err
	}
	b, err := wire.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("transport/grpc: encode response: %w", err)
	}
	return &frame{Payload: b}, nil
}

// Serve listens on addr and blocks until the gRPC server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport/grpc: listen %s: %w", addr, err)
	}
	s.listener = lis
	log.Println("[transport/grpc]: listening on", addr)
	return s.grpcSrv.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	if s.grpcSrv != nil {
		s.grpcSrv.GracefulStop()
	}
}
