package routing

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/artifactmesh/kadstore/blueprint"
)

// K is the per-bucket capacity.
const K = 20

// bucket is one of the 256 LRU buckets described in component table.
// It holds only NodeIds in least-to-most-recently-touched order; the full
// PeerRecord lives in the routing table's arena, so a bucket never
// owns anything that needs a second cleanup pass on eviction.
type bucket struct {
	mu         sync.Mutex
	lru        *simplelru.LRU
	updatedAt  time.Time
}

func newBucket() *bucket {
	// The LRU is sized exactly to K and its eviction callback is never
	// expected to fire: callers never Add beyond Len < K without first
	// removing a stale entry themselves (the bucket must not silently
	// evict a live head, which a capacity-triggered LRU eviction would do).
	l, _ := simplelru.NewLRU(K, nil)
	return &bucket{lru: l}
}

// touch promotes id to most-recently-seen if present, returning whether it
// was present.
func (b *bucket) touch(id blueprint.NodeId) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.lru.Contains(id) {
		return false
	}
	b.lru.Add(id, struct{}{})
	b.updatedAt = time.Now()
	return true
}

func (b *bucket) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lru.Len()
}

// oldestToNewest returns the bucket's NodeIds, least-recently-touched first.
func (b *bucket) oldestToNewest() []blueprint.NodeId {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := b.lru.Keys()
	out := make([]blueprint.NodeId, len(keys))
	for i, k := range keys {
		out[i] = k.(blueprint.NodeId)
	}
	return out
}

// insert adds id unconditionally, promoting it if already present.
func (b *bucket) insert(id blueprint.NodeId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lru.Add(id, struct{}{})
	b.updatedAt = time.Now()
}

// remove drops id from the bucket; idempotent.
func (b *bucket) remove(id blueprint.NodeId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lru.Remove(id)
}

func (b *bucket) contains(id blueprint.NodeId) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lru.Contains(id)
}
