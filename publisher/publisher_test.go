package publisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/benbjohnson/clock"

	"github.com/artifactmesh/kadstore/blueprint"
)

type memStorage struct {
	data map[string][]byte
	meta map[string]blueprint.ArtifactMetadata
	next int
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte), meta: make(map[string]blueprint.ArtifactMetadata)}
}

func (m *memStorage) Store(ctx context.Context, data []byte, opts blueprint.StoreOptions) (blueprint.ArtifactMetadata, error) {
	m.next++
	id := "artifact-" + string(rune('0'+m.next))
	m.data[id] = data
	meta := blueprint.ArtifactMetadata{ID: id, Size: int64(len(data))}
	m.meta[id] = meta
	return meta, nil
}

func (m *memStorage) Retrieve(ctx context.Context, id string) ([]byte, error) {
	b, ok := m.data[id]
	if !ok {
		return nil, blueprint.ErrNotFound
	}
	return b, nil
}

func (m *memStorage) GetMetadata(ctx context.Context, id string) (blueprint.ArtifactMetadata, error) {
	meta, ok := m.meta[id]
	if !ok {
		return blueprint.ArtifactMetadata{}, blueprint.ErrNotFound
	}
	return meta, nil
}

type memDHT struct {
	values map[blueprint.Key][]byte
}

func newMemDHT() *memDHT {
	return &memDHT{values: make(map[blueprint.Key][]byte)}
}

func (d *memDHT) Put(ctx context.Context, key blueprint.Key, value []byte) (int, error) {
	d.values[key] = value
	return 1, nil
}

func (d *memDHT) Get(ctx context.Context, key blueprint.Key) ([]byte, error) {
	b, ok := d.values[key]
	if !ok {
		return nil, blueprint.ErrNotFound
	}
	return b, nil
}

func TestPublishWritesContentRecordAndIndex(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	dht := newMemDHT()
	self := blueprint.DeriveKey("self")
	idx := NewIndex(dht)
	p := New(self, storage, dht, idx, clock.New(), nil)

	id, err := p.Publish(ctx, []byte("artifact bytes"), blueprint.ContentMeta{Type: "binary", Region: "us-east", Tags: []string{"latest"}})
	if err != nil {
		t.Fatal(err)
	}

	record, err := p.ContentRecord(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if record.ID != id || len(record.Providers) != 1 {
		t.Fatalf("unexpected content record: %+v", record)
	}

	entries := idx.Lookup("index:type:binary")
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("expected id in type index, got %+v", entries)
	}
	entries = idx.Lookup("index:region:us-east")
	if len(entries) != 1 {
		t.Fatalf("expected id in region index, got %+v", entries)
	}
	entries = idx.Lookup("index:tag:latest")
	if len(entries) != 1 {
		t.Fatalf("expected id in tag index, got %+v", entries)
	}
}

func TestIndexSortsByScore(t *testing.T) {
	dht := newMemDHT()
	idx := NewIndex(dht)
	ctx := context.Background()

	idx.Add(ctx, blueprint.ContentMeta{Type: "binary"}, IndexEntry{ID: "low", Score: 1})
	idx.Add(ctx, blueprint.ContentMeta{Type: "binary"}, IndexEntry{ID: "high", Score: 10})

	entries := idx.Lookup("index:type:binary")
	if len(entries) != 2 || entries[0].ID != "high" {
		t.Fatalf("expected high-score entry first, got %+v", entries)
	}
}

func TestIndexPersistsThroughDHT(t *testing.T) {
	dht := newMemDHT()
	ctx := context.Background()
	idx1 := NewIndex(dht)
	idx1.Add(ctx, blueprint.ContentMeta{Type: "binary"}, IndexEntry{ID: "a", Score: 1})

	idx2 := NewIndex(dht)
	entries := idx2.Lookup("index:type:binary")
	if len(entries) != 1 || entries[0].ID != "a" {
		t.Fatalf("expected entry to survive via DHT fallback, got %+v", entries)
	}
	var raw []byte
	raw, _ = dht.Get(ctx, blueprint.DeriveKey("index:type:binary"))
	var decoded []IndexEntry
	if err := json.Unmarshal(raw, &decoded); err != nil || len(decoded) != 1 {
		t.Fatalf("expected DHT-backed json array, got %s", raw)
	}
}
