// Package server composes the dht, storage, and publisher packages into
// the single blueprint.Node surface, and exposes it over transport/grpc's
// JSON-codec Exchange RPC. Grounded on KelvinWu602-immutable-storage's ApplicationServer:
// that type bound a single ImmutableStorage backend to the protobuf
// service; this type binds the same shape of dependency (one storage
// backend) to the JSON wire protocol's dispatch handler instead.
package server

import (
	"context"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/dht"
	"github.com/artifactmesh/kadstore/publisher"
	"github.com/artifactmesh/kadstore/storage"
	grpctransport "github.com/artifactmesh/kadstore/transport/grpc"
	"github.com/artifactmesh/kadstore/wire"
)

// App is the process-level composition root: the DHT node plus the
// storage manager and content publisher layered on top of it, all
// reachable through a single blueprint.Node.
type App struct {
	node      *dht.Node
	manager   *storage.Manager
	publisher *publisher.Publisher
}

// New wires a dht.Node, a storage.Manager and a publisher.Publisher into
// one App.
func New(node *dht.Node, manager *storage.Manager, pub *publisher.Publisher) *App {
	return &App{node: node, manager: manager, publisher: pub}
}

// Handler returns the transport/grpc.Handler this App dispatches incoming
// wire messages through, delegating DHT semantics to the wrapped Node.
func (a *App) Handler() grpctransport.Handler {
	return a.node.Dispatch
}

// Start/Stop/Put/Get/Delete/FindClosest forward directly to the DHT node.
func (a *App) Start(ctx context.Context) error { return a.node.Start(ctx) }
func (a *App) Stop(ctx context.Context) error  { return a.node.Stop(ctx) }

func (a *App) Put(ctx context.Context, key blueprint.Key, value []byte) (int, error) {
	return a.node.Put(ctx, key, value)
}

func (a *App) Get(ctx context.Context, key blueprint.Key) ([]byte, error) {
	return a.node.Get(ctx, key)
}

func (a *App) Delete(ctx context.Context, key blueprint.Key) (int, error) {
	return a.node.Delete(ctx, key)
}

func (a *App) FindClosest(ctx context.Context, key blueprint.Key, count int) ([]blueprint.PeerRecord, error) {
	return a.node.FindClosest(ctx, key, count)
}

// PublishContent and RetrieveContent are not part of dht.Node's surface
// (per, content-level operations sit above the DHT primitives), so
// App routes them to the publisher instead.
func (a *App) PublishContent(ctx context.Context, data []byte, meta blueprint.ContentMeta) (string, error) {
	return a.publisher.Publish(ctx, data, meta)
}

func (a *App) RetrieveContent(ctx context.Context, id string) ([]byte, blueprint.ArtifactMetadata, error) {
	return a.publisher.Retrieve(ctx, id)
}

func (a *App) Subscribe(event blueprint.Event, handler func(payload any)) {
	a.node.Subscribe(event, handler)
}

var _ blueprint.Node = (*App)(nil)

// wireMessageKinds re-exports wire's known dht_types for callers that
// build requests against this App's Handler directly.
var wireMessageKinds = []wire.DHTType{wire.FindNode, wire.FindValue, wire.Store, wire.Delete, wire.Ping}

// KnownMessageKinds returns the dht_types this App's Handler understands.
func KnownMessageKinds() []wire.DHTType {
	return append([]wire.DHTType{}, wireMessageKinds...)
}
