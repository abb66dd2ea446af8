package publisher

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/artifactmesh/kadstore/blueprint"
)

// maxIndexEntries is the cap: each discovery index key stores at
// most this many entries, sorted by (score desc, ts desc) and truncated.
const maxIndexEntries = 1000

// IndexEntry is one row of a discovery index array.
type IndexEntry struct {
	ID        string    `json:"id"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"ts"`
}

// Index maintains the capped/sorted discovery-index arrays
// (index:type:<t>, index:region:<r>, index:tag:<t>) in an
// immutable radix tree in front of the DHT, so a fresh read-modify-write
// does not require a round trip when the local node already holds the
// current array.
type Index struct {
	mu   sync.Mutex
	tree *iradix.Tree
	dht  DHT
}

// NewIndex returns an empty Index backed by dht for keys this node has
// not seen locally yet.
func NewIndex(dht DHT) *Index {
	return &Index{tree: iradix.New(), dht: dht}
}

// Add writes id into every discovery index key implied by meta:
// index:type:<t>, index:region:<r>, and one index:tag:<t> per tag.
func (idx *Index) Add(ctx context.Context, meta blueprint.ContentMeta, entry IndexEntry) {
	keys := indexKeys(meta)
	for _, k := range keys {
		idx.appendEntry(ctx, k, entry)
	}
}

func indexKeys(meta blueprint.ContentMeta) []string {
	var keys []string
	if meta.Type != "" {
		keys = append(keys, "index:type:"+meta.Type)
	}
	if meta.Region != "" {
		keys = append(keys, "index:region:"+meta.Region)
	}
	for _, tag := range meta.Tags {
		keys = append(keys, "index:tag:"+tag)
	}
	return keys
}

func (idx *Index) appendEntry(ctx context.Context, indexKey string, entry IndexEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries := idx.load(ctx, indexKey)
	entries = dedupAppend(entries, entry)
	sortEntries(entries)
	if len(entries) > maxIndexEntries {
		entries = entries[:maxIndexEntries]
	}

	b, err := json.Marshal(entries)
	if err != nil {
		return
	}
	idx.tree, _, _ = idx.tree.Insert([]byte(indexKey), b)
	if idx.dht != nil {
		idx.dht.Put(ctx, blueprint.DeriveKey(indexKey), b)
	}
}

// load returns the current array for indexKey, preferring the local
// radix tree and falling back to the DHT.
func (idx *Index) load(ctx context.Context, indexKey string) []IndexEntry {
	if raw, ok := idx.tree.Get([]byte(indexKey)); ok {
		var entries []IndexEntry
		if err := json.Unmarshal(raw.([]byte), &entries); err == nil {
			return entries
		}
	}
	if idx.dht == nil {
		return nil
	}
	b, err := idx.dht.Get(ctx, blueprint.DeriveKey(indexKey))
	if err != nil {
		return nil
	}
	var entries []IndexEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil
	}
	return entries
}

func dedupAppend(entries []IndexEntry, entry IndexEntry) []IndexEntry {
	for i, e := range entries {
		if e.ID == entry.ID {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}

func sortEntries(entries []IndexEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

// Lookup returns the current entries for a fully-qualified index key
// (e.g. "index:region:us-east"), reading the local tree first and falling
// back to the DHT when the tree has no entry for it.
func (idx *Index) Lookup(indexKey string) []IndexEntry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.load(context.Background(), indexKey)
}
