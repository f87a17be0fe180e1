package blobdir

import (
	"context"

	"github.com/hupe1980/blobdir/lock"
)

// Storage is the directory contract a segment-based search engine needs
// from its storage backend. Directory implements it.
type Storage interface {
	// OpenRead materializes the current content of path.
	OpenRead(ctx context.Context, path string) (*ReadHandle, error)
	// OpenWrite returns a buffer that replaces path when flushed or closed.
	OpenWrite(ctx context.Context, path string) (*WriteHandle, error)
	// AtomicRead returns the whole content of path.
	AtomicRead(ctx context.Context, path string) ([]byte, error)
	// AtomicWrite replaces the content of path in one step.
	AtomicWrite(ctx context.Context, path string, data []byte) error
	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)
	// List returns the sorted paths starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Watch registers a callback for committed mutations.
	Watch(fn WatchFunc) *WatchHandle
	// Sync makes directory metadata durable.
	Sync(ctx context.Context) error
	// AcquireLock takes a named advisory lock.
	AcquireLock(ctx context.Context, name string, blocking bool) (*lock.Handle, error)
	// ReleaseLock gives up a lock taken with AcquireLock.
	ReleaseLock(ctx context.Context, h *lock.Handle) error
}

var _ Storage = (*Directory)(nil)
