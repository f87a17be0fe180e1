package blobstore

import (
	"context"
	"sync"

	"github.com/hupe1980/blobdir/internal/cache"
	"github.com/hupe1980/blobdir/internal/resource"
	"golang.org/x/sync/singleflight"
)

// CachingStore wraps a BlobStore and keeps recently read blobs in memory.
//
// Concurrent misses on the same path are collapsed into one backend read.
// Put and Delete invalidate the path after the inner store committed, so a
// Get that starts after a mutation returned never observes older content.
type CachingStore struct {
	inner BlobStore
	cache cache.BlobCache
	group singleflight.Group

	// mu orders cache fills against invalidations; gen changes on every mutation.
	mu  sync.Mutex
	gen uint64
}

// shardedCacheThreshold is the capacity from which the cache is split into
// shards. Below it a shard would be too small to hold typical segment files.
const shardedCacheThreshold = 64 << 20

// NewCachingStore creates a CachingStore holding at most capacity bytes.
// If rc is non-nil, cached bytes are charged against its memory budget.
func NewCachingStore(inner BlobStore, capacity int64, rc *resource.Controller) *CachingStore {
	var c cache.BlobCache
	if capacity >= shardedCacheThreshold {
		c = cache.NewShardedLRUBlobCache(capacity, rc)
	} else {
		c = cache.NewLRUBlobCache(capacity, rc)
	}
	return &CachingStore{inner: inner, cache: c}
}

// Get returns cached content or reads it from the inner store.
// The returned slice is shared and must not be modified.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if data, ok := s.cache.Get(ctx, name); ok {
		return data, nil
	}

	// The fill is shared, so it must not die with whichever caller started it.
	fillCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(name, func() (any, error) {
		s.mu.Lock()
		gen := s.gen
		s.mu.Unlock()

		data, err := s.inner.Get(fillCtx, name)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.gen == gen {
			s.cache.Set(fillCtx, name, data)
		}
		s.mu.Unlock()
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Put writes through to the inner store and invalidates the cached copy.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	err := s.inner.Put(ctx, name, data)
	s.invalidate(name)
	return err
}

// Delete removes the blob from the inner store and the cache.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	err := s.inner.Delete(ctx, name)
	s.invalidate(name)
	return err
}

// List is passed through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Exists answers from the cache when possible.
func (s *CachingStore) Exists(ctx context.Context, name string) (bool, error) {
	if _, ok := s.cache.Get(ctx, name); ok {
		return true, nil
	}
	return s.inner.Exists(ctx, name)
}

// Stats returns cache hit and miss counters.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.cache.Stats()
}

// Close drops all cached content. The inner store is not closed.
func (s *CachingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.cache.Close()
}

// Unwrap returns the wrapped store.
func (s *CachingStore) Unwrap() BlobStore {
	return s.inner
}

func (s *CachingStore) invalidate(name string) {
	s.mu.Lock()
	s.gen++
	s.cache.Remove(name)
	s.mu.Unlock()
	// In-flight reads may predate the mutation; later callers must not join them.
	s.group.Forget(name)
}
