// Package p2p implements the peer-assisted storage provider: a local
// chunk cache plus a peer_chunks index (checksum -> holders). Store
// announces the new chunks once, at store time; there is no periodic
// re-announce loop. Retrieval reads the local cache first, then tries
// known holders in ascending order of observed latency, and fails with
// blueprint.ErrNoProviders when none answers (there is no DHT fallback).
package p2p

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/chunk"
)

// Fetcher retrieves a chunk's bytes from a specific peer, or from the
// network fallback if peer is the zero value. Grounded on KelvinWu602-immutable-storage's
// split between cluster (peer) and node (origin) clients in
// ipfs/client_cluster.go / ipfs/client_ipfs.go.
type Fetcher interface {
	FetchChunk(ctx context.Context, peer blueprint.NodeId, checksum string) ([]byte, error)
}

// Announcer broadcasts which checksums this node holds on the
// p2p:announce:<node_id> topic, and is polled for announcements other
// nodes have made.
type Announcer interface {
	Announce(ctx context.Context, self blueprint.NodeId, checksums []string) error
	Holders(checksum string) []blueprint.NodeId
}

// Provider is the peer-assisted implementation of blueprint.Provider. It
// is always layered over a local cache (storage/local) since every chunk
// this node serves must first land somewhere durable.
type Provider struct {
	self      blueprint.NodeId
	local     blueprint.Provider
	fetcher   Fetcher
	announcer Announcer
	clock     blueprint.Clock

	mu     sync.RWMutex
	index  map[string]map[blueprint.NodeId]latency // checksum -> holder -> observed latency
}

type latency struct {
	rtt  time.Duration
	seen time.Time
}

// New returns a peer-assisted Provider backed by local for durable storage.
func New(self blueprint.NodeId, local blueprint.Provider, fetcher Fetcher, announcer Announcer, clock blueprint.Clock) *Provider {
	return &Provider{
		self:      self,
		local:     local,
		fetcher:   fetcher,
		announcer: announcer,
		clock:     clock,
		index:     make(map[string]map[blueprint.NodeId]latency),
	}
}

func (p *Provider) Name() string { return "p2p" }

// Store writes through to the local cache, then announces the new
// checksums so peers can discover this node as a holder.
func (p *Provider) Store(ctx context.Context, data []byte, opts blueprint.StoreOptions) (blueprint.ArtifactMetadata, error) {
	meta, err := p.local.Store(ctx, data, opts)
	if err != nil {
		return blueprint.ArtifactMetadata{}, err
	}
	p.recordLocal(meta)
	if p.announcer != nil {
		checksums := make([]string, len(meta.Chunks))
		for i, c := range meta.Chunks {
			checksums[i] = c.Checksum
		}
		_ = p.announcer.Announce(ctx, p.self, checksums)
	}
	return meta, nil
}

// Retrieve tries the local cache first, then the fastest advertised
// holder per chunk, preferring local data over peers sorted by
// ascending latency.
func (p *Provider) Retrieve(ctx context.Context, id string) ([]byte, error) {
	if data, err := p.local.Retrieve(ctx, id); err == nil {
		return data, nil
	}
	meta, err := p.local.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	chunks := make([]chunk.Chunk, len(meta.Chunks))
	for i, desc := range meta.Chunks {
		b, err := p.fetchChunk(ctx, desc.Checksum)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", blueprint.ErrNetworkRetrieve, desc.Index, err)
		}
		chunks[i] = chunk.Chunk{Descriptor: desc, Bytes: b}
	}
	return chunk.Combine(chunks)
}

func (p *Provider) fetchChunk(ctx context.Context, checksum string) ([]byte, error) {
	for _, holder := range p.rankedHolders(checksum) {
		start := p.clock.Now()
		b, err := p.fetcher.FetchChunk(ctx, holder, checksum)
		if err != nil {
			continue
		}
		p.recordLatency(checksum, holder, p.clock.Now().Sub(start))
		return b, nil
	}
	return nil, blueprint.ErrNoProviders
}

// rankedHolders merges locally-observed latency with freshly announced
// holders, ascending by last-observed RTT; unmeasured holders sort last.
func (p *Provider) rankedHolders(checksum string) []blueprint.NodeId {
	seen := make(map[blueprint.NodeId]time.Duration)
	if p.announcer != nil {
		for _, h := range p.announcer.Holders(checksum) {
			seen[h] = time.Hour // unmeasured default, reordered below if known
		}
	}
	p.mu.RLock()
	for holder, lat := range p.index[checksum] {
		seen[holder] = lat.rtt
	}
	p.mu.RUnlock()

	holders := make([]blueprint.NodeId, 0, len(seen))
	for h := range seen {
		holders = append(holders, h)
	}
	sort.Slice(holders, func(i, j int) bool { return seen[holders[i]] < seen[holders[j]] })
	return holders
}

func (p *Provider) recordLatency(checksum string, holder blueprint.NodeId, rtt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index[checksum] == nil {
		p.index[checksum] = make(map[blueprint.NodeId]latency)
	}
	p.index[checksum][holder] = latency{rtt: rtt, seen: p.clock.Now()}
}

func (p *Provider) recordLocal(meta blueprint.ArtifactMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range meta.Chunks {
		if p.index[c.Checksum] == nil {
			p.index[c.Checksum] = make(map[blueprint.NodeId]latency)
		}
		p.index[c.Checksum][p.self] = latency{rtt: 0, seen: p.clock.Now()}
	}
}

func (p *Provider) Delete(ctx context.Context, id string) (bool, error) {
	return p.local.Delete(ctx, id)
}

func (p *Provider) GetMetadata(ctx context.Context, id string) (blueprint.ArtifactMetadata, error) {
	return p.local.GetMetadata(ctx, id)
}

func (p *Provider) UpdateMetadata(ctx context.Context, id string, patch blueprint.MetadataPatch) error {
	return p.local.UpdateMetadata(ctx, id, patch)
}

func (p *Provider) ValidateChecksum(ctx context.Context, id string) (bool, error) {
	return p.local.ValidateChecksum(ctx, id)
}

func (p *Provider) GetStats(ctx context.Context) (blueprint.ProviderStats, error) {
	return p.local.GetStats(ctx)
}

// Cleanup delegates to the local cache and additionally drops latency
// index entries for remote holders not fetched from within an hour.
func (p *Provider) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	cutoff := p.clock.Now().Add(-time.Hour)
	for checksum, holders := range p.index {
		for holder, lat := range holders {
			if lat.seen.Before(cutoff) && holder != p.self {
				delete(holders, holder)
			}
		}
		if len(holders) == 0 {
			delete(p.index, checksum)
		}
	}
	p.mu.Unlock()
	return p.local.Cleanup(ctx)
}
