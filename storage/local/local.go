// Package local implements the local storage provider: chunks under
// <root>/chunks/<id>/<index>, metadata JSON under <root>/metadata/<id>,
// synchronous single-replica writes with atomic rename on every metadata
// update. Grounded on munonun-Web4's store.go tmp-file-then-rename idiom,
// adapted from a single flat contracts file to a per-artifact metadata tree.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/chunk"
	sha256 "github.com/minio/sha256-simd"
)

// Provider is the local, single-node implementation of blueprint.Provider.
type Provider struct {
	root  string
	clock blueprint.Clock

	reads    atomic.Int64
	writes   atomic.Int64
	failures atomic.Int64
}

// New returns a Provider rooted at root, creating the chunks/ and metadata/
// subdirectories if absent.
func New(root string, clock blueprint.Clock) (*Provider, error) {
	for _, sub := range []string{"chunks", "metadata"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("local: %w", err)
		}
	}
	return &Provider{root: root, clock: clock}, nil
}

func (p *Provider) Name() string { return "local" }

func (p *Provider) chunkDir(id string) string { return filepath.Join(p.root, "chunks", id) }
func (p *Provider) metaPath(id string) string { return filepath.Join(p.root, "metadata", id) }

// Store implements the local provider rule: one replica, synchronous
// writes, id derived as SHA-256(bytes || now_ms).
func (p *Provider) Store(ctx context.Context, data []byte, opts blueprint.StoreOptions) (blueprint.ArtifactMetadata, error) {
	size := opts.ChunkSize
	if size <= 0 {
		size = chunk.DefaultSize
	}
	now := p.clock.Now()
	id := artifactID(data, now)

	chunks := chunk.Split(data, size)
	dir := p.chunkDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.failures.Add(1)
		return blueprint.ArtifactMetadata{}, fmt.Errorf("local: %w", err)
	}
	for _, c := range chunks {
		select {
		case <-ctx.Done():
			p.failures.Add(1)
			return blueprint.ArtifactMetadata{}, ctx.Err()
		default:
		}
		path := filepath.Join(dir, fmt.Sprint(c.Descriptor.Index))
		if err := writeFileAtomic(path, c.Bytes); err != nil {
			p.failures.Add(1)
			return blueprint.ArtifactMetadata{}, fmt.Errorf("local: write chunk %d: %w", c.Descriptor.Index, err)
		}
	}

	meta, err := chunk.BuildMetadata(id, data, chunks, p.Name(), 1, now)
	if err != nil {
		p.failures.Add(1)
		return blueprint.ArtifactMetadata{}, err
	}
	meta.Encryption = opts.Encryption
	meta.Compression = opts.Compression
	if err := p.writeMetadata(meta); err != nil {
		p.failures.Add(1)
		return blueprint.ArtifactMetadata{}, err
	}
	p.writes.Add(1)
	return meta, nil
}

func (p *Provider) Retrieve(ctx context.Context, id string) ([]byte, error) {
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		p.failures.Add(1)
		return nil, err
	}
	chunks := make([]chunk.Chunk, len(meta.Chunks))
	dir := p.chunkDir(id)
	for i, desc := range meta.Chunks {
		b, err := os.ReadFile(filepath.Join(dir, fmt.Sprint(desc.Index)))
		if err != nil {
			p.failures.Add(1)
			return nil, fmt.Errorf("%w: %v", blueprint.ErrNotFound, err)
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
	_, err := os.Stat(p.metaPath(id))
	existed := err == nil
	_ = os.RemoveAll(p.chunkDir(id))
	_ = os.Remove(p.metaPath(id))
	return existed, nil
}

func (p *Provider) GetMetadata(ctx context.Context, id string) (blueprint.ArtifactMetadata, error) {
	b, err := os.ReadFile(p.metaPath(id))
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
	return p.writeMetadata(meta)
}

func (p *Provider) ValidateChecksum(ctx context.Context, id string) (bool, error) {
	data, err := p.Retrieve(ctx, id)
	if err != nil {
		if errors.Is(err, blueprint.ErrNotFound) {
			return false, err
		}
		return false, nil
	}
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		return false, err
	}
	return chunk.VerifyMetadata(meta, data) == nil, nil
}

func (p *Provider) GetStats(ctx context.Context) (blueprint.ProviderStats, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, "metadata"))
	if err != nil {
		return blueprint.ProviderStats{}, fmt.Errorf("local: %w", err)
	}
	var bytesStored int64
	for _, e := range entries {
		meta, err := p.GetMetadata(ctx, e.Name())
		if err != nil {
			continue
		}
		bytesStored += meta.Size
	}
	return blueprint.ProviderStats{
		ArtifactCount: int64(len(entries)),
		BytesStored:   bytesStored,
		Reads:         p.reads.Load(),
		Writes:        p.writes.Load(),
		Failures:      p.failures.Load(),
	}, nil
}

// Cleanup removes orphaned.tmp files left by an interrupted atomic write.
func (p *Provider) Cleanup(ctx context.Context) error {
	return filepath.WalkDir(p.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".tmp" {
			return os.Remove(path)
		}
		return nil
	})
}

func (p *Provider) writeMetadata(meta blueprint.ArtifactMetadata) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %v", blueprint.ErrInvalidMetadata, err)
	}
	return writeFileAtomic(p.metaPath(meta.ID), b)
}

// writeFileAtomic writes to a.tmp sibling then renames, so a crash never
// leaves a half-written chunk or metadata file in place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func artifactID(data []byte, now time.Time) string {
	sum := sha256.New()
	sum.Write(data)
	fmt.Fprintf(sum, "%d", now.UnixMilli())
	return fmt.Sprintf("%x", sum.Sum(nil))
}
