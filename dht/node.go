// Package dht implements the DHT node: identity, the
// k-bucket routing table, iterative FIND_NODE/FIND_VALUE/STORE lookups,
// and the republish/liveness background tasks. Grounded on KelvinWu602-immutable-storage's
// grpc dial/serve idiom (ipfs/clusterclient.go, server/app.go) generalised
// from a protobuf ImmutableStorage RPC to the JSON wire protocol.
package dht

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/routing"
	"github.com/artifactmesh/kadstore/wire"
)

// Node is the DHT node: routing table, local value store, transport, and
// the background liveness/republish tasks.
type Node struct {
	self      blueprint.NodeId
	table     *routing.Table
	store     *valueStore
	transport blueprint.Transport
	clock     blueprint.Clock
	bus       blueprint.EventBus
	keystore  blueprint.Keystore // nil disables signing, per Open Question 1

	cfg NodeConfig

	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NodeConfig carries the tunables so a caller's config.Config
// can thread through without this package importing the config package.
type NodeConfig struct {
	RefreshInterval time.Duration
	RepublishEvery  time.Duration
}

// New constructs a Node. transport and clock are required; bus and
// keystore may be nil.
func New(self blueprint.NodeId, transport blueprint.Transport, clock blueprint.Clock, bus blueprint.EventBus, keystore blueprint.Keystore, cfg NodeConfig) *Node {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.RepublishEvery <= 0 {
		cfg.RepublishEvery = time.Hour
	}
	return &Node{
		self:      self,
		table:     routing.New(self, clock),
		store:     newValueStore(),
		transport: transport,
		clock:     clock,
		bus:       bus,
		keystore:  keystore,
		cfg:       cfg,
	}
}

// Table exposes the routing table for bootstrap and diagnostics.
func (n *Node) Table() *routing.Table { return n.table }

// Start launches the liveness and republish background loops.
func (n *Node) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.wg.Add(2)
	go n.liveness(ctx)
	go n.republish(ctx)
	n.emit(blueprint.EventStarted, n.self.String())
	return nil
}

// Stop cancels the background loops and waits for them to exit.
func (n *Node) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
	})
	n.wg.Wait()
	n.emit(blueprint.EventStopped, n.self.String())
	return nil
}

// Put implements the Put: it runs STORE against the k closest peers to
// key and returns how many acknowledged. A signed envelope is produced
// when a Keystore is configured.
func (n *Node) Put(ctx context.Context, key blueprint.Key, value []byte) (int, error) {
	env, err := n.sealEnvelope(value)
	if err != nil {
		return 0, err
	}
	n.store.put(key, env)
	acked := n.storeAt(ctx, key, env)
	n.emit(blueprint.EventStored, key.String())
	return acked, nil
}

// Get implements Get via FIND_VALUE, checking the local store first.
func (n *Node) Get(ctx context.Context, key blueprint.Key) ([]byte, error) {
	if env, ok := n.store.get(key); ok {
		if env.Payload == nil {
			return nil, blueprint.ErrNotFound
		}
		return env.Payload, nil
	}
	env, closest, found := n.findValue(ctx, key)
	if !found {
		return nil, blueprint.ErrNotFound
	}
	if ok, err := n.verifyEnvelope(env); err != nil || !ok {
		return nil, fmt.Errorf("%w: envelope failed verification", blueprint.ErrInvalidMetadata)
	}
	if env.Payload == nil {
		return nil, blueprint.ErrNotFound
	}
	// Cache-on-hit: STORE at the closest peer that did not have it.
	if len(closest) > 0 {
		go n.rpcStore(context.Background(), closest[0], key, env)
	}
	n.emit(blueprint.EventRetrieved, key.String())
	return env.Payload, nil
}

// Delete encodes deletion as a STORE carrying a null value, overriding
// prior writes by timestamp, so convergence is best-effort, not immediate.
func (n *Node) Delete(ctx context.Context, key blueprint.Key) (int, error) {
	env, err := n.sealEnvelope(nil)
	if err != nil {
		return 0, err
	}
	n.store.put(key, env)
	acked := n.storeAt(ctx, key, env)
	n.emit(blueprint.EventDeleted, key.String())
	return acked, nil
}

// FindClosest exposes FIND_NODE directly.
func (n *Node) FindClosest(ctx context.Context, key blueprint.Key, count int) ([]blueprint.PeerRecord, error) {
	peers := n.findNode(ctx, key)
	if count > 0 && count < len(peers) {
		peers = peers[:count]
	}
	return peers, nil
}

// Subscribe forwards to the configured EventBus, if any.
func (n *Node) Subscribe(event blueprint.Event, handler func(payload any)) {
	if n.bus != nil {
		n.bus.Subscribe(event, handler)
	}
}

func (n *Node) emit(event blueprint.Event, payload any) {
	if n.bus != nil {
		n.bus.Emit(event, payload)
	}
}

func (n *Node) sealEnvelope(payload []byte) (blueprint.Envelope, error) {
	env := blueprint.Envelope{Payload: payload, Timestamp: n.clock.Now()}
	if n.keystore == nil {
		return env, nil
	}
	sig, signerID, err := n.keystore.Sign(append(append([]byte{}, payload...), []byte(env.Timestamp.UTC().Format(time.RFC3339Nano))...))
	if err != nil {
		return blueprint.Envelope{}, fmt.Errorf("dht: sign envelope: %w", err)
	}
	env.Signature = sig
	env.SignerID = signerID
	return env, nil
}

func (n *Node) verifyEnvelope(env blueprint.Envelope) (bool, error) {
	if n.keystore == nil || len(env.Signature) == 0 {
		return true, nil // unsigned envelope: degrade to last-writer-wins, unsigned
	}
	data := append(append([]byte{}, env.Payload...), []byte(env.Timestamp.UTC().Format(time.RFC3339Nano))...)
	return n.keystore.Verify(data, env.Signature, env.SignerID)
}

// Dispatch handles one decoded incoming wire.Message by looking up its
// dht_type in the handler mapping. It is wired into transport/grpc.Server
// as the Handler callback. Unknown dht_types are dropped silently.
func (n *Node) Dispatch(ctx context.Context, msg wire.Message) (wire.Message, error) {
	if err := wire.Validate(msg, n.clock.Now()); err != nil {
		if errors.Is(err, wire.ErrReplay) {
			return wire.Message{}, blueprint.ErrReplay
		}
		return wire.Message{}, err
	}
	if sender, err := blueprint.KeyFromHex(msg.Payload.Sender); err == nil {
		n.table.AddPeer(blueprint.PeerRecord{
			ID:             sender,
			AddressStrings: addressOf(msg.Payload.Sender),
			Metadata:       blueprint.PeerMetadata{LastSeen: n.clock.Now()},
			State:          blueprint.PeerConnected,
		})
	}

	switch msg.DHTType {
	case wire.FindNode:
		return n.handleFindNode(msg)
	case wire.FindValue:
		return n.handleFindValue(msg)
	case wire.Store:
		return n.handleStore(msg)
	case wire.Ping:
		return n.handlePing(msg)
	case wire.Delete:
		return n.handleStore(msg) // DELETE and STORE share semantics.
	default:
		log.Println("[dht]: dropping unknown dht_type", msg.DHTType)
		return wire.Message{}, blueprint.ErrUnknownMessageType
	}
}

// addressOf is a placeholder until peer discovery carries a real
// multiaddr; callers that need a reachable address populate it via
// AddPeer directly (e.g. bootstrap).
func addressOf(sender string) []string { return nil }
