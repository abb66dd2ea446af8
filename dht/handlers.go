package dht

import (
	"encoding/json"
	"fmt"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/wire"
)

func (n *Node) handleFindNode(msg wire.Message) (wire.Message, error) {
	target, err := blueprint.KeyFromHex(msg.Payload.Key)
	if err != nil {
		return wire.Message{}, wire.ErrMalformedKey
	}
	peers := n.table.GetClosest(target, K)
	data, err := json.Marshal(findNodeBody{Peers: peers})
	if err != nil {
		return wire.Message{}, fmt.Errorf("dht: encode FIND_NODE reply: %w", err)
	}
	return wire.NewResponse(msg, wire.Payload{
		Sender:    n.self.String(),
		Receiver:  msg.Payload.Sender,
		Timestamp: n.clock.Now(),
		Data:      data,
	}), nil
}

func (n *Node) handleFindValue(msg wire.Message) (wire.Message, error) {
	key, err := blueprint.KeyFromHex(msg.Payload.Key)
	if err != nil {
		return wire.Message{}, wire.ErrMalformedKey
	}
	if env, ok := n.store.get(key); ok {
		b, err := json.Marshal(env)
		if err != nil {
			return wire.Message{}, fmt.Errorf("dht: encode FIND_VALUE reply: %w", err)
		}
		return wire.NewResponse(msg, wire.Payload{
			Sender:    n.self.String(),
			Receiver:  msg.Payload.Sender,
			Timestamp: n.clock.Now(),
			Value:     b,
		}), nil
	}
	return n.handleFindNode(msg)
}

func (n *Node) handleStore(msg wire.Message) (wire.Message, error) {
	key, err := blueprint.KeyFromHex(msg.Payload.Key)
	if err != nil {
		return wire.Message{}, wire.ErrMalformedKey
	}
	var env blueprint.Envelope
	if err := json.Unmarshal(msg.Payload.Value, &env); err != nil {
		return wire.Message{}, fmt.Errorf("dht: malformed STORE payload: %w", err)
	}
	if ok, err := n.verifyEnvelope(env); err != nil || !ok {
		return wire.Message{}, fmt.Errorf("%w: STORE envelope failed verification", blueprint.ErrInvalidMetadata)
	}
	n.store.put(key, env)
	n.emit(blueprint.EventStored, key.String())
	return wire.NewResponse(msg, wire.Payload{
		Sender:    n.self.String(),
		Receiver:  msg.Payload.Sender,
		Timestamp: n.clock.Now(),
	}), nil
}

func (n *Node) handlePing(msg wire.Message) (wire.Message, error) {
	return wire.NewResponse(msg, wire.Payload{
		Sender:    n.self.String(),
		Receiver:  msg.Payload.Sender,
		Timestamp: n.clock.Now(),
	}), nil
}
