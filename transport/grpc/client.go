package grpc

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
)

// Client implements blueprint.Transport over the Exchange RPC, caching one
// *grpc.ClientConn per address so repeated Send calls to the same peer
// reuse the connection, keepalive and TCP handshake.
type Client struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewClient returns an empty, ready-to-use Client.
func NewClient() *Client {
	return &Client{conns: make(map[string]*grpc.ClientConn)}
}

// Dial eagerly establishes (and caches) a connection to addr.
func (c *Client) Dial(ctx context.Context, addr string) error {
	_, err := c.connFor(ctx, addr)
	return err
}

// Send marshals payload (an already-encoded wire.Message) into the
// Exchange frame, invokes it, and returns the peer's raw response bytes.
func (c *Client) Send(ctx context.Context, addr string, payload []byte) ([]byte, error) {
	conn, err := c.connFor(ctx, addr)
	if err != nil {
		return nil, err
	}
	req := &frame{Payload: payload}
	resp := new(frame)
	if err := conn.Invoke(ctx, fullMethod, req, resp, grpc.CallContentSubtype(contentSubtype)); err != nil {
		return nil, fmt.Errorf("transport/grpc: exchange with %s: %w", addr, err)
	}
	return resp.Payload, nil
}

// Close tears down every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, addr)
	}
	return firstErr
}

func (c *Client) connFor(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(contentSubtype)),
	)
	if err != nil {
		return nil, fmt.Errorf("transport/grpc: dial %s: %w", addr, err)
	}
	c.conns[addr] = conn
	return conn, nil
}
