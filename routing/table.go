// Package routing implements the 256-bucket Kademlia-style routing table:
// k=20 LRU buckets indexed by the most-significant-bit position of
// the XOR distance to self, a peer arena keyed by NodeId to avoid cyclic
// owning references, and get_closest lookups for the iterative lookup
// layer in package dht.
//
// Algorithmically grounded on adityasissodiya-d7024e/labs/kademlia's
// RoutingTable/bucket (FindClosestContacts' outward bucket scan, the
// full-bucket stale-replacement rule); rewritten against
// blueprint.PeerRecord and backed by hashicorp/golang-lru's simplelru.
package routing

import (
	"sort"
	"sync"
	"time"

	"github.com/artifactmesh/kadstore/blueprint"
)

// Buckets is the number of buckets, one per bit of the key space.
const Buckets = blueprint.KeySize * 8

// DefaultStaleAfter is T_stale from the glossary: the liveness threshold
// used when deciding whether a full bucket's oldest entry may be replaced.
const DefaultStaleAfter = time.Hour

// Table is the k-bucket routing table.
type Table struct {
	self       blueprint.NodeId
	buckets    [Buckets]*bucket
	staleAfter time.Duration
	clock      blueprint.Clock

	arenaMu sync.RWMutex
	arena   map[blueprint.NodeId]*blueprint.PeerRecord
}

// New returns an empty routing table for node identity self.
func New(self blueprint.NodeId, clock blueprint.Clock) *Table {
	t := &Table{
		self:       self,
		staleAfter: DefaultStaleAfter,
		clock:      clock,
		arena:      make(map[blueprint.NodeId]*blueprint.PeerRecord),
	}
	for i := range t.buckets {
		t.buckets[i] = newBucket()
	}
	return t
}

// SetStaleAfter overrides T_stale, primarily for tests.
func (t *Table) SetStaleAfter(d time.Duration) {
	t.staleAfter = d
}

func (t *Table) now() time.Time {
	if t.clock != nil {
		return t.clock.Now()
	}
	return time.Now()
}

// AddPeer implements add_peer(p). It returns whether p ended up in
// the table (false means a full bucket rejected it because none of its
// occupants is stale, i.e. every one was last seen within staleAfter).
func (t *Table) AddPeer(p blueprint.PeerRecord) bool {
	if p.ID == t.self {
		return false
	}
	idx := blueprint.BucketIndex(t.self, p.ID)
	b := t.buckets[idx]

	if b.touch(p.ID) {
		t.touchArena(p)
		return true
	}

	if b.len() < K {
		b.insert(p.ID)
		t.putArena(p)
		return true
	}

	// Full: look for a stale occupant to replace, oldest first.
	now := t.now()
	for _, candidate := range b.oldestToNewest() {
		if t.isStale(candidate, now) {
			b.remove(candidate)
			t.evictArena(candidate)
			b.insert(p.ID)
			t.putArena(p)
			return true
		}
	}
	// No stale occupant: reject, never evict a live head.
	return false
}

// isStale reports whether id's last contact is older than staleAfter. A
// peer found stale here transitions to PeerStale in the arena; the next
// add_peer contention for its bucket is what actually evicts it.
func (t *Table) isStale(id blueprint.NodeId, now time.Time) bool {
	t.arenaMu.Lock()
	defer t.arenaMu.Unlock()
	rec, ok := t.arena[id]
	if !ok {
		return true
	}
	if now.Sub(rec.Metadata.LastSeen) <= t.staleAfter {
		return false
	}
	rec.State = blueprint.PeerStale
	return true
}

func (t *Table) putArena(p blueprint.PeerRecord) {
	cp := p
	if cp.State == "" || cp.State == blueprint.PeerUnknownState {
		cp.State = blueprint.PeerConnecting
	}
	t.arenaMu.Lock()
	t.arena[p.ID] = &cp
	t.arenaMu.Unlock()
}

func (t *Table) touchArena(p blueprint.PeerRecord) {
	t.arenaMu.Lock()
	if existing, ok := t.arena[p.ID]; ok {
		existing.Metadata.LastSeen = p.Metadata.LastSeen
		existing.Metrics = p.Metrics
		existing.State = blueprint.PeerConnected
	} else {
		cp := p
		t.arena[p.ID] = &cp
	}
	t.arenaMu.Unlock()
}

// evictArena marks id PeerEvicted and removes it from the arena. Copies
// already handed out by Peer()/AllPeers() are unaffected and keep the
// state they had when they were taken.
func (t *Table) evictArena(id blueprint.NodeId) {
	t.arenaMu.Lock()
	if rec, ok := t.arena[id]; ok {
		rec.State = blueprint.PeerEvicted
	}
	delete(t.arena, id)
	t.arenaMu.Unlock()
}

// RemovePeer implements remove_peer(id); idempotent.
func (t *Table) RemovePeer(id blueprint.NodeId) {
	idx := blueprint.BucketIndex(t.self, id)
	t.buckets[idx].remove(id)
	t.evictArena(id)
}

// Peer returns the arena entry for id, if known.
func (t *Table) Peer(id blueprint.NodeId) (blueprint.PeerRecord, bool) {
	t.arenaMu.RLock()
	defer t.arenaMu.RUnlock()
	rec, ok := t.arena[id]
	if !ok {
		return blueprint.PeerRecord{}, false
	}
	return *rec, true
}

// GetClosest implements get_closest(key, count): union of buckets
// traversed outward from b(key), sorted ascending by XOR distance, ties
// broken by bucket position then LRU insertion order.
func (t *Table) GetClosest(key blueprint.Key, count int) []blueprint.PeerRecord {
	if count <= 0 {
		return nil
	}
	b0 := blueprint.BucketIndex(t.self, key)

	type candidate struct {
		rec      blueprint.PeerRecord
		distance blueprint.Key
	}
	var candidates []candidate

	collect := func(bi int) {
		for _, id := range t.buckets[bi].oldestToNewest() {
			rec, ok := t.Peer(id)
			if !ok {
				continue
			}
			candidates = append(candidates, candidate{rec: rec, distance: blueprint.XOR(key, id)})
		}
	}

	collect(b0)
	for i := 1; (b0-i >= 0 || b0+i < Buckets) && len(candidates) < count; i++ {
		if b0-i >= 0 {
			collect(b0 - i)
		}
		if b0+i < Buckets {
			collect(b0 + i)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance.Less(candidates[j].distance)
	})

	if count > len(candidates) {
		count = len(candidates)
	}
	out := make([]blueprint.PeerRecord, count)
	for i := 0; i < count; i++ {
		out[i] = candidates[i].rec
	}
	return out
}

// Size returns the total number of live peers across all buckets.
func (t *Table) Size() int {
	total := 0
	for _, b := range t.buckets {
		total += b.len()
	}
	return total
}

// MarkSeen refreshes last_seen for id if present, without changing its
// bucket position ordering beyond the normal touch-promotes-to-front rule.
func (t *Table) MarkSeen(id blueprint.NodeId, metrics blueprint.PeerMetrics) bool {
	rec, ok := t.Peer(id)
	if !ok {
		return false
	}
	rec.Metadata.LastSeen = t.now()
	rec.Metrics = metrics
	rec.State = blueprint.PeerConnected
	return t.AddPeer(rec)
}

// AllPeers returns every peer currently known, in no particular order.
// Used by liveness sweeps and republish.
func (t *Table) AllPeers() []blueprint.PeerRecord {
	t.arenaMu.RLock()
	defer t.arenaMu.RUnlock()
	out := make([]blueprint.PeerRecord, 0, len(t.arena))
	for _, rec := range t.arena {
		out = append(out, *rec)
	}
	return out
}
