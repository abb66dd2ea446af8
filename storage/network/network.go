// Package network implements the DHT-backed storage provider: each
// chunk is written with the DHT's Put under key chunk:<checksum>, which
// stores it at the K closest peers; FIND_NODE(chunk_checksum) for n peers
// only checks that at least one peer is known, and the provider issues no
// writes to those n peers itself. Metadata lives at DHT key
// metadata:<id>. A dedicated bulk
// chunk-byte transport is out of scope; this provider models the
// selection and bookkeeping around it, delegating the actual byte
// movement to the same STORE/FIND_VALUE primitives used for metadata.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sha256 "github.com/minio/sha256-simd"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/chunk"
)

// DHT is the narrow subset of dht.Node's surface this provider needs,
// kept as an interface so storage/network never imports package dht
// (dht is the caller's dependency, not this provider's).
type DHT interface {
	Put(ctx context.Context, key blueprint.Key, value []byte) (int, error)
	Get(ctx context.Context, key blueprint.Key) ([]byte, error)
	Delete(ctx context.Context, key blueprint.Key) (int, error)
	FindClosest(ctx context.Context, key blueprint.Key, count int) ([]blueprint.PeerRecord, error)
}

// Provider is the DHT-backed implementation of blueprint.Provider.
type Provider struct {
	dht         DHT
	minReplicas int
	clock       blueprint.Clock

	reads, writes, failures atomic.Int64
}

// New returns a network Provider. minReplicas is the default n used when
// StoreOptions.Replicas is unset (: "n = options.replicas ?? min_replicas ?? 3").
func New(d DHT, minReplicas int, clock blueprint.Clock) *Provider {
	if minReplicas <= 0 {
		minReplicas = 3
	}
	return &Provider{dht: d, minReplicas: minReplicas, clock: clock}
}

func (p *Provider) Name() string { return "network" }

func (p *Provider) Store(ctx context.Context, data []byte, opts blueprint.StoreOptions) (blueprint.ArtifactMetadata, error) {
	size := opts.ChunkSize
	if size <= 0 {
		size = chunk.DefaultSize
	}
	n := opts.Replicas
	if n <= 0 {
		n = p.minReplicas
	}
	now := p.clock.Now()
	chunks := chunk.Split(data, size)

	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(c chunk.Chunk) {
			defer wg.Done()
			p.storeChunk(ctx, c, n)
		}(c)
	}
	wg.Wait()

	meta, err := chunk.BuildMetadata(artifactID(data, now), data, chunks, p.Name(), n, now)
	if err != nil {
		p.failures.Add(1)
		return blueprint.ArtifactMetadata{}, err
	}
	meta.Encryption = opts.Encryption
	meta.Compression = opts.Compression
	b, err := json.Marshal(meta)
	if err != nil {
		p.failures.Add(1)
		return blueprint.ArtifactMetadata{}, err
	}
	if _, err := p.dht.Put(ctx, metadataKey(meta.ID), b); err != nil {
		p.failures.Add(1)
		return blueprint.ArtifactMetadata{}, fmt.Errorf("%w: %v", blueprint.ErrNetworkStore, err)
	}
	p.writes.Add(1)
	return meta, nil
}

func (p *Provider) storeChunk(ctx context.Context, c chunk.Chunk, n int) {
	key := blueprint.DeriveKey(fmt.Sprintf("chunk:%s", c.Descriptor.Checksum))
	peers, err := p.dht.FindClosest(ctx, key, n)
	if err != nil || len(peers) == 0 {
		p.failures.Add(1)
		return
	}
	if _, err := p.dht.Put(ctx, key, c.Bytes); err != nil {
		p.failures.Add(1)
	}
}

func (p *Provider) Retrieve(ctx context.Context, id string) ([]byte, error) {
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		p.failures.Add(1)
		return nil, err
	}
	chunks := make([]chunk.Chunk, len(meta.Chunks))
	for i, desc := range meta.Chunks {
		key := blueprint.DeriveKey(fmt.Sprintf("chunk:%s", desc.Checksum))
		b, err := p.dht.Get(ctx, key)
		if err != nil {
			p.failures.Add(1)
			return nil, fmt.Errorf("%w: chunk %d: %v", blueprint.ErrNetworkRetrieve, desc.Index, err)
		}
		chunks[i] = chunk.Chunk{Descriptor: desc, Bytes: b}
	}
	data, err := chunk.Combine(chunks)
	if err != nil {
		p.failures.Add(1)
		return nil, err
	}
	p.reads.Add(1)
	return data, nil
}

func (p *Provider) Delete(ctx context.Context, id string) (bool, error) {
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		return false, nil
	}
	for _, desc := range meta.Chunks {
		key := blueprint.DeriveKey(fmt.Sprintf("chunk:%s", desc.Checksum))
		p.dht.Delete(ctx, key)
	}
	acked, err := p.dht.Delete(ctx, metadataKey(id))
	if err != nil {
		return false, err
	}
	return acked > 0, nil
}

func (p *Provider) GetMetadata(ctx context.Context, id string) (blueprint.ArtifactMetadata, error) {
	b, err := p.dht.Get(ctx, metadataKey(id))
	if err != nil {
		return blueprint.ArtifactMetadata{}, fmt.Errorf("%w: %v", blueprint.ErrNotFound, err)
	}
	var meta blueprint.ArtifactMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return blueprint.ArtifactMetadata{}, fmt.Errorf("%w: %v", blueprint.ErrInvalidMetadata, err)
	}
	return meta, nil
}

func (p *Provider) UpdateMetadata(ctx context.Context, id string, patch blueprint.MetadataPatch) error {
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		return err
	}
	if patch.Replicas != nil {
		meta.Replicas = *patch.Replicas
	}
	if patch.StorageType != nil {
		meta.StorageType = *patch.StorageType
	}
	meta.Modified = p.clock.Now()
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = p.dht.Put(ctx, metadataKey(id), b)
	return err
}

func (p *Provider) ValidateChecksum(ctx context.Context, id string) (bool, error) {
	data, err := p.Retrieve(ctx, id)
	if err != nil {
		return false, nil
	}
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		return false, err
	}
	return chunk.VerifyMetadata(meta, data) == nil, nil
}

func (p *Provider) GetStats(ctx context.Context) (blueprint.ProviderStats, error) {
	return blueprint.ProviderStats{
		Reads:    p.reads.Load(),
		Writes:   p.writes.Load(),
		Failures: p.failures.Load(),
	}, nil
}

// Cleanup is a no-op: the DHT owns its own value lifecycle (republish,
// eviction); this provider has no local state to reclaim.
func (p *Provider) Cleanup(ctx context.Context) error { return nil }

func metadataKey(id string) blueprint.Key {
	return blueprint.DeriveKey("metadata:" + id)
}

func artifactID(data []byte, now time.Time) string {
	sum := sha256.New()
	sum.Write(data)
	fmt.Fprintf(sum, "%d", now.UnixMilli())
	return fmt.Sprintf("%x", sum.Sum(nil))
}
