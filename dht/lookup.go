package dht

import (
	"context"
	"sort"
	"sync"

	"github.com/artifactmesh/kadstore/blueprint"
	"github.com/artifactmesh/kadstore/routing"
)

// Alpha is the lookup concurrency.
const Alpha = 3

// K is the replication width / result size (equal to the routing
// table's bucket capacity, routing.K).
const K = routing.K

// closestN sorts the known peer set by XOR distance to target and returns
// the first n, breaking ties by the gather order (map iteration order is
// irrelevant here since every caller resorts on distance alone).
func closestN(seen map[blueprint.NodeId]blueprint.PeerRecord, target blueprint.Key, n int) []blueprint.PeerRecord {
	type candidate struct {
		rec      blueprint.PeerRecord
		distance blueprint.Key
	}
	candidates := make([]candidate, 0, len(seen))
	for id, rec := range seen {
		candidates = append(candidates, candidate{rec: rec, distance: blueprint.XOR(target, id)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance.Less(candidates[j].distance)
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]blueprint.PeerRecord, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].rec
	}
	return out
}

func nextBatch(seen map[blueprint.NodeId]blueprint.PeerRecord, queried map[blueprint.NodeId]bool, target blueprint.Key) []blueprint.PeerRecord {
	best := closestN(seen, target, K)
	var batch []blueprint.PeerRecord
	for _, p := range best {
		if queried[p.ID] {
			continue
		}
		batch = append(batch, p)
		if len(batch) == Alpha {
			break
		}
	}
	return batch
}

// findNode implements the FIND_NODE iterative lookup: seed from the
// local table, then repeatedly query up to alpha unqueried of the k best
// peers in parallel until none remain unqueried.
func (n *Node) findNode(ctx context.Context, target blueprint.Key) []blueprint.PeerRecord {
	seen := make(map[blueprint.NodeId]blueprint.PeerRecord)
	queried := make(map[blueprint.NodeId]bool)
	for _, p := range n.table.GetClosest(target, K) {
		seen[p.ID] = p
	}

	for {
		batch := nextBatch(seen, queried, target)
		if len(batch) == 0 {
			break
		}
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, p := range batch {
			queried[p.ID] = true
			wg.Add(1)
			go func(p blueprint.PeerRecord) {
				defer wg.Done()
				peers, err := n.rpcFindNode(ctx, p, target)
				if err != nil {
					return
				}
				mu.Lock()
				for _, np := range peers {
					if np.ID == n.self {
						continue
					}
					if _, ok := seen[np.ID]; !ok {
						seen[np.ID] = np
					}
				}
				mu.Unlock()
			}(p)
		}
		wg.Wait()
		select {
		case <-ctx.Done():
			return closestN(seen, target, K)
		default:
		}
	}
	return closestN(seen, target, K)
}

// findValue implements the FIND_VALUE: as findNode, but short-circuits
// on the first returned value. The returned bool reports whether a value
// was found; closest is the k-closest observed peers, and when a value is
// found it leaves out the peers that returned it (used for cache-on-hit).
func (n *Node) findValue(ctx context.Context, key blueprint.Key) (blueprint.Envelope, []blueprint.PeerRecord, bool) {
	seen := make(map[blueprint.NodeId]blueprint.PeerRecord)
	queried := make(map[blueprint.NodeId]bool)
	for _, p := range n.table.GetClosest(key, K) {
		seen[p.ID] = p
	}

	type result struct {
		peer  blueprint.PeerRecord
		env   blueprint.Envelope
		peers []blueprint.PeerRecord
		has   bool
		err   error
	}

	for {
		batch := nextBatch(seen, queried, key)
		if len(batch) == 0 {
			break
		}
		results := make(chan result, len(batch))
		for _, p := range batch {
			queried[p.ID] = true
			go func(p blueprint.PeerRecord) {
				env, peers, has, err := n.rpcFindValue(ctx, p, key)
				results <- result{peer: p, env: env, peers: peers, has: has, err: err}
			}(p)
		}

		var best blueprint.Envelope
		found := false
		holders := make(map[blueprint.NodeId]bool)
		for i := 0; i < len(batch); i++ {
			r := <-results
			if r.err != nil {
				continue
			}
			if r.has {
				holders[r.peer.ID] = true
				if !found || r.env.Timestamp.After(best.Timestamp) {
					best = r.env
					found = true
				}
				continue
			}
			for _, np := range r.peers {
				if np.ID == n.self {
					continue
				}
				if _, ok := seen[np.ID]; !ok {
					seen[np.ID] = np
				}
			}
		}
		if found {
			for id := range holders {
				delete(seen, id)
			}
			return best, closestN(seen, key, K), true
		}
		select {
		case <-ctx.Done():
			return blueprint.Envelope{}, closestN(seen, key, K), false
		default:
		}
	}
	return blueprint.Envelope{}, closestN(seen, key, K), false
}

// storeAt runs FIND_NODE(key) then issues STORE to each of the k closest
// peers. Returns the number of peers that acknowledged the
// write; a store succeeds if this is >= 1.
func (n *Node) storeAt(ctx context.Context, key blueprint.Key, env blueprint.Envelope) int {
	targets := n.findNode(ctx, key)
	var acked int
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, p := range targets {
		wg.Add(1)
		go func(p blueprint.PeerRecord) {
			defer wg.Done()
			if err := n.rpcStore(ctx, p, key, env); err == nil {
				mu.Lock()
				acked++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return acked
}
