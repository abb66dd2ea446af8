package dht

import (
	"sync"

	"github.com/google/btree"

	"github.com/artifactmesh/kadstore/blueprint"
)

// valueItem is the btree.Item wrapping one key/envelope pair.
type valueItem struct {
	key      blueprint.Key
	envelope blueprint.Envelope
}

func (v valueItem) Less(than btree.Item) bool {
	return v.key.Less(than.(valueItem).key)
}

// valueStore is the local DHT value store named in component table:
// last-writer-wins by Envelope.Timestamp, backed by google/btree so
// republish sweeps can walk owned keys in a stable order.
type valueStore struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

func newValueStore() *valueStore {
	return &valueStore{tree: btree.New(32)}
}

// put applies last-writer-wins: env is stored only if no existing entry
// has a Timestamp at or after env.Timestamp. Returns whether it was stored.
func (s *valueStore) put(key blueprint.Key, env blueprint.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.tree.Get(valueItem{key: key}); existing != nil {
		if !env.Timestamp.After(existing.(valueItem).envelope.Timestamp) {
			return false
		}
	}
	s.tree.ReplaceOrInsert(valueItem{key: key, envelope: env})
	return true
}

func (s *valueStore) get(key blueprint.Key) (blueprint.Envelope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.tree.Get(valueItem{key: key})
	if item == nil {
		return blueprint.Envelope{}, false
	}
	return item.(valueItem).envelope, true
}

// keys returns every key this node currently holds a value for, in
// ascending key order, for the republish sweep.
func (s *valueStore) keys() []blueprint.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blueprint.Key, 0, s.tree.Len())
	s.tree.Ascend(func(i btree.Item) bool {
		out = append(out, i.(valueItem).key)
		return true
	})
	return out
}

func (s *valueStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}
