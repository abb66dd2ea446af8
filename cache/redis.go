package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artifactmesh/kadstore/blueprint"
)

// RedisCache is a distributed MetadataCache, adapted from rmock.REDIS:
// same go-redis/v9 client and context-timeout-per-call discipline,
// generalised from a raw blueprint.Key/[]byte store to JSON-encoded
// ArtifactMetadata keyed by artifact id.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to a Redis instance at addr.
func NewRedis(addr string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (r *RedisCache) Get(id string) (blueprint.ArtifactMetadata, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	val, err := r.client.Get(ctx, cacheKey(id)).Result()
	if err != nil {
		return blueprint.ArtifactMetadata{}, false
	}
	var meta blueprint.ArtifactMetadata
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return blueprint.ArtifactMetadata{}, false
	}
	return meta, true
}

func (r *RedisCache) Set(id string, meta blueprint.ArtifactMetadata) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := json.Marshal(meta)
	if err != nil {
		return
	}
	r.client.Set(ctx, cacheKey(id), b, r.ttl)
}

func (r *RedisCache) Invalidate(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.client.Del(ctx, cacheKey(id))
}

func cacheKey(id string) string { return "kadstore:metadata:" + id }

var _ MetadataCache = (*RedisCache)(nil)
