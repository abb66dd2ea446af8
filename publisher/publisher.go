// Package publisher implements the content publisher: it binds
// artifact-level metadata to a stored chunk set and advertises providers
// through the DHT's content and discovery-index keys. Grounded on
// KelvinWu602-immutable-storage's ApplicationServer.Store flow in
// server/app.go, generalised from a single write to the three-step
// chunk/store/index pipeline.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/artifactmesh/kadstore/blueprint"
)

// Storage is the narrow storage.Manager surface this package depends on.
type Storage interface {
	Store(ctx context.Context, data []byte, opts blueprint.StoreOptions) (blueprint.ArtifactMetadata, error)
	Retrieve(ctx context.Context, id string) ([]byte, error)
	GetMetadata(ctx context.Context, id string) (blueprint.ArtifactMetadata, error)
}

// DHT is the narrow dht.Node surface this package depends on.
type DHT interface {
	Put(ctx context.Context, key blueprint.Key, value []byte) (int, error)
	Get(ctx context.Context, key blueprint.Key) ([]byte, error)
}

// Publisher implements blueprint.Node's PublishContent/RetrieveContent by
// composing a Storage backend with the DHT's content-record and
// discovery-index keyspace.
type Publisher struct {
	self    blueprint.NodeId
	storage Storage
	dht     DHT
	index   *Index
	clock   blueprint.Clock
	bus     blueprint.EventBus
}

// New returns a Publisher. index and bus may be nil to disable discovery-
// index writes and event emission respectively (content records are
// still published under content:<id>).
func New(self blueprint.NodeId, storage Storage, dht DHT, index *Index, clock blueprint.Clock, bus blueprint.EventBus) *Publisher {
	return &Publisher{self: self, storage: storage, dht: dht, index: index, clock: clock, bus: bus}
}

// Publish implements the five-step pipeline.
func (p *Publisher) Publish(ctx context.Context, data []byte, meta blueprint.ContentMeta) (string, error) {
	artifactMeta, err := p.storage.Store(ctx, data, blueprint.StoreOptions{})
	if err != nil {
		return "", fmt.Errorf("publisher: store: %w", err)
	}

	record := blueprint.ContentRecord{
		ArtifactMetadata: artifactMeta,
		Providers: []blueprint.ProviderRef{
			{NodeID: p.self, LastSeen: p.clock.Now()},
		},
		Stats: blueprint.ContentStats{ActiveProviders: 1, TotalSize: artifactMeta.Size},
	}
	b, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("publisher: encode content record: %w", err)
	}
	if _, err := p.dht.Put(ctx, contentKey(artifactMeta.ID), b); err != nil {
		return "", fmt.Errorf("publisher: publish content record: %w", err)
	}
	if c, err := CIDFor(artifactMeta.Checksum); err == nil {
		log.Println("[publisher]: published", artifactMeta.ID, "as", c.String())
	}

	if p.index != nil {
		p.index.Add(ctx, meta, IndexEntry{ID: artifactMeta.ID, Score: scoreOf(meta), Timestamp: p.clock.Now()})
	}
	if p.bus != nil {
		p.bus.Emit(blueprint.EventContentPublished, artifactMeta.ID)
	}
	return artifactMeta.ID, nil
}

// Retrieve implements the RetrieveContent: fetch bytes plus their
// artifact metadata.
func (p *Publisher) Retrieve(ctx context.Context, id string) ([]byte, blueprint.ArtifactMetadata, error) {
	data, err := p.storage.Retrieve(ctx, id)
	if err != nil {
		return nil, blueprint.ArtifactMetadata{}, err
	}
	meta, err := p.storage.GetMetadata(ctx, id)
	if err != nil {
		return nil, blueprint.ArtifactMetadata{}, err
	}
	return data, meta, nil
}

// ContentRecord fetches and decodes the content:<id> DHT value.
func (p *Publisher) ContentRecord(ctx context.Context, id string) (blueprint.ContentRecord, error) {
	b, err := p.dht.Get(ctx, contentKey(id))
	if err != nil {
		return blueprint.ContentRecord{}, fmt.Errorf("%w: %v", blueprint.ErrNotFound, err)
	}
	var record blueprint.ContentRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return blueprint.ContentRecord{}, fmt.Errorf("%w: %v", blueprint.ErrInvalidMetadata, err)
	}
	return record, nil
}

func contentKey(id string) blueprint.Key {
	return blueprint.DeriveKey("content:" + id)
}

func scoreOf(meta blueprint.ContentMeta) float64 {
	if meta.Extra == nil {
		return 1.0
	}
	if _, ok := meta.Extra["score"]; !ok {
		return 1.0
	}
	var score float64
	fmt.Sscanf(meta.Extra["score"], "%f", &score)
	if score == 0 {
		return 1.0
	}
	return score
}
