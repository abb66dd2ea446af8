// Package cache implements a metadata cache with a last-writer-wins
// shared-resource policy. No storage.Manager or provider in this module
// uses it; its get_metadata paths read the providers directly. The
// default backend is an in-process LRU
// (hashicorp/golang-lru); cache/redis.go adapts KelvinWu602-immutable-storage's
// rmock.REDIS into an optional distributed alternative behind the same
// interface.
package cache

import (
	"github.com/hashicorp/golang-lru"

	"github.com/artifactmesh/kadstore/blueprint"
)

// MetadataCache is a read-through metadata cache interface; none of the
// storage providers in this module consults it.
type MetadataCache interface {
	Get(id string) (blueprint.ArtifactMetadata, bool)
	Set(id string, meta blueprint.ArtifactMetadata)
	Invalidate(id string)
}

// LRU is the default, in-process MetadataCache.
type LRU struct {
	cache *lru.Cache
}

// NewLRU returns an LRU cache holding up to size entries.
func NewLRU(size int) (*LRU, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c}, nil
}

func (l *LRU) Get(id string) (blueprint.ArtifactMetadata, bool) {
	v, ok := l.cache.Get(id)
	if !ok {
		return blueprint.ArtifactMetadata{}, false
	}
	return v.(blueprint.ArtifactMetadata), true
}

func (l *LRU) Set(id string, meta blueprint.ArtifactMetadata) {
	l.cache.Add(id, meta)
}

func (l *LRU) Invalidate(id string) {
	l.cache.Remove(id)
}

var _ MetadataCache = (*LRU)(nil)
