package cache

import "context"

// BlobCache is a byte-oriented cache of whole blobs keyed by logical path.
// Returned slices must be treated as read-only.
type BlobCache interface {
	// Get returns a cached blob. ok=false if missing.
	Get(ctx context.Context, key string) (b []byte, ok bool)
	// Set caches a blob. The cache retains b; callers must not modify it afterwards.
	Set(ctx context.Context, key string, b []byte)
	// Remove drops key if present.
	Remove(key string)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key string) bool)
	// Close releases any resources.
	Close() error
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
