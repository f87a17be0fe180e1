package cache

import (
	"context"
	"hash/maphash"
	"sync"

	"github.com/hupe1980/blobdir/internal/resource"
)

const numShards = 16

// ShardedLRUBlobCache spreads blobs across 16 LRU shards by path so
// concurrent readers of different files rarely contend on one lock.
// Each shard holds a sixteenth of the capacity, so no blob larger than
// that is ever cached.
type ShardedLRUBlobCache struct {
	shards [numShards]*LRUBlobCache
	seed   maphash.Seed
}

// NewShardedLRUBlobCache creates a sharded cache of capacity bytes.
func NewShardedLRUBlobCache(capacity int64, rc *resource.Controller) *ShardedLRUBlobCache {
	shardCapacity := capacity / numShards
	if shardCapacity < 1 {
		shardCapacity = 1
	}

	s := &ShardedLRUBlobCache{seed: maphash.MakeSeed()}
	for i := range numShards {
		s.shards[i] = NewLRUBlobCache(shardCapacity, rc)
	}
	return s
}

func (s *ShardedLRUBlobCache) shard(key string) *LRUBlobCache {
	return s.shards[maphash.String(s.seed, key)%numShards]
}

// Get returns a cached blob.
func (s *ShardedLRUBlobCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return s.shard(key).Get(ctx, key)
}

// Set caches a blob.
func (s *ShardedLRUBlobCache) Set(ctx context.Context, key string, b []byte) {
	s.shard(key).Set(ctx, key, b)
}

// Remove drops key if present.
func (s *ShardedLRUBlobCache) Remove(key string) {
	s.shard(key).Remove(key)
}

// Invalidate removes entries matching the predicate from every shard.
func (s *ShardedLRUBlobCache) Invalidate(predicate func(key string) bool) {
	var wg sync.WaitGroup
	wg.Add(numShards)

	for i := range numShards {
		go func(shard *LRUBlobCache) {
			defer wg.Done()
			shard.Invalidate(predicate)
		}(s.shards[i])
	}

	wg.Wait()
}

// Close empties all shards.
func (s *ShardedLRUBlobCache) Close() error {
	for i := range numShards {
		if err := s.shards[i].Close(); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns aggregated hit/miss statistics.
func (s *ShardedLRUBlobCache) Stats() (hits, misses int64) {
	for i := range numShards {
		h, m := s.shards[i].Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the total size across all shards.
func (s *ShardedLRUBlobCache) Size() int64 {
	var total int64
	for i := range numShards {
		total += s.shards[i].Size()
	}
	return total
}

// Len returns the number of cached blobs.
func (s *ShardedLRUBlobCache) Len() int {
	var n int
	for i := range numShards {
		n += s.shards[i].Len()
	}
	return n
}

type shardStats struct {
	Size  int64
	Blobs int
}

// shardStats reports per-shard occupancy.
func (s *ShardedLRUBlobCache) shardStats() []shardStats {
	stats := make([]shardStats, numShards)
	for i := range numShards {
		stats[i] = shardStats{Size: s.shards[i].Size(), Blobs: s.shards[i].Len()}
	}
	return stats
}
