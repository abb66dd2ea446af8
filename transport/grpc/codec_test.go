package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/artifactmesh/kadstore/wire"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := jsonCodec{}
	in := &frame{Payload: []byte(`{"hello":"world"}`)}

	b, err := codec.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	out := new(frame)
	if err := codec.Unmarshal(b, out); err != nil {
		t.Fatal(err)
	}
	if string(out.Payload) != string(in.Payload) {
		t.Fatalf("round trip mismatch: got %s", out.Payload)
	}
}

func TestServerExchangeDispatchesToHandler(t *testing.T) {
	var gotDHTType wire.DHTType
	handler := func(ctx context.Context, msg wire.Message) (wire.Message, error) {
		gotDHTType = msg.DHTType
		return wire.NewResponse(msg, wire.Payload{Sender: "self"}), nil
	}
	s := NewServer(handler)

	req := wire.NewRequest(wire.Ping, wire.Payload{Sender: "peer-1", Timestamp: time.Now()})
	b, err := wire.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := s.Exchange(context.Background(), &frame{Payload: b})
	if err != nil {
		t.Fatal(err)
	}
	if gotDHTType != wire.Ping {
		t.Fatalf("expected handler to see PING, got %s", gotDHTType)
	}
	out, err := wire.Unmarshal(resp.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if out.Type != wire.TypeResponse {
		t.Fatalf("expected a response message, got %s", out.Type)
	}
}
