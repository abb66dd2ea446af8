package dht

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/wire"
)

// RPCTimeout is the per-RPC timeout.
const RPCTimeout = 30 * time.Second

type findNodeBody struct {
	Peers []blueprint.PeerRecord `json:"peers"`
}

// sendRPC marshals req, sends it to peer's first known address, and parses
// the response envelope. A peer with no known address is reported
// immediately rather than attempted.
func (n *Node) sendRPC(ctx context.Context, peer blueprint.PeerRecord, req wire.Message) (wire.Message, error) {
	if len(peer.AddressStrings) == 0 {
		return wire.Message{}, fmt.Errorf("dht: peer %s has no known address", peer.ID)
	}
	ctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	b, err := wire.Marshal(req)
	if err != nil {
		return wire.Message{}, err
	}
	respBytes, err := n.transport.Send(ctx, peer.AddressStrings[0], b)
	if err != nil {
		return wire.Message{}, fmt.Errorf("%w: %v", blueprint.ErrPeerUnreachable, err)
	}
	return wire.Unmarshal(respBytes)
}

func (n *Node) rpcFindNode(ctx context.Context, peer blueprint.PeerRecord, target blueprint.Key) ([]blueprint.PeerRecord, error) {
	req := wire.NewRequest(wire.FindNode, wire.Payload{
		ID:        uuid.NewString(),
		Timestamp: n.clock.Now(),
		Sender:    n.self.String(),
		Receiver:  peer.ID.String(),
		Key:       target.String(),
	})
	resp, err := n.sendRPC(ctx, peer, req)
	if err != nil {
		return nil, err
	}
	n.markAlive(peer)

	var body findNodeBody
	if len(resp.Payload.Data) > 0 {
		if err := json.Unmarshal(resp.Payload.Data, &body); err != nil {
			return nil, fmt.Errorf("dht: malformed FIND_NODE response: %w", err)
		}
	}
	return body.Peers, nil
}

func (n *Node) rpcFindValue(ctx context.Context, peer blueprint.PeerRecord, key blueprint.Key) (blueprint.Envelope, []blueprint.PeerRecord, bool, error) {
	req := wire.NewRequest(wire.FindValue, wire.Payload{
		ID:        uuid.NewString(),
		Timestamp: n.clock.Now(),
		Sender:    n.self.String(),
		Receiver:  peer.ID.String(),
		Key:       key.String(),
	})
	resp, err := n.sendRPC(ctx, peer, req)
	if err != nil {
		return blueprint.Envelope{}, nil, false, err
	}
	n.markAlive(peer)

	if len(resp.Payload.Value) > 0 {
		var env blueprint.Envelope
		if err := json.Unmarshal(resp.Payload.Value, &env); err != nil {
			return blueprint.Envelope{}, nil, false, fmt.Errorf("dht: malformed FIND_VALUE response: %w", err)
		}
		return env, nil, true, nil
	}

	var body findNodeBody
	if len(resp.Payload.Data) > 0 {
		if err := json.Unmarshal(resp.Payload.Data, &body); err != nil {
			return blueprint.Envelope{}, nil, false, fmt.Errorf("dht: malformed FIND_VALUE response: %w", err)
		}
	}
	return blueprint.Envelope{}, body.Peers, false, nil
}

func (n *Node) rpcStore(ctx context.Context, peer blueprint.PeerRecord, key blueprint.Key, env blueprint.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req := wire.NewRequest(wire.Store, wire.Payload{
		ID:        uuid.NewString(),
		Timestamp: n.clock.Now(),
		Sender:    n.self.String(),
		Receiver:  peer.ID.String(),
		Key:       key.String(),
		Value:     value,
	})
	_, err = n.sendRPC(ctx, peer, req)
	if err != nil {
		return err
	}
	n.markAlive(peer)
	return nil
}

func (n *Node) rpcPing(ctx context.Context, peer blueprint.PeerRecord) error {
	req := wire.NewRequest(wire.Ping, wire.Payload{
		ID:        uuid.NewString(),
		Timestamp: n.clock.Now(),
		Sender:    n.self.String(),
		Receiver:  peer.ID.String(),
	})
	_, err := n.sendRPC(ctx, peer, req)
	if err == nil {
		n.markAlive(peer)
	}
	return err
}

// markAlive records a successful RPC exchange as a liveness signal.
func (n *Node) markAlive(peer blueprint.PeerRecord) {
	peer.Metadata.LastSeen = n.clock.Now()
	peer.State = blueprint.PeerConnected
	n.table.AddPeer(peer)
}
