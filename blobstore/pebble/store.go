// Package pebble provides a BlobStore backed by CockroachDB's Pebble engine.
package pebble

import (
	"context"
	"errors"

	pebbledb "github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/hupe1980/blobdir/blobstore"
)

// Options configures a Pebble store.
type Options struct {
	// Dir is the database directory.
	Dir string

	// InMemory keeps all data in an in-memory filesystem.
	InMemory bool

	// CacheSize is the block cache size in bytes. Defaults to 64MB.
	CacheSize int64

	// NoSync skips fsync on writes. Writes survive a process crash but not
	// a machine crash.
	NoSync bool
}

// Store implements blobstore.BlobStore on a Pebble database.
type Store struct {
	db        *pebbledb.DB
	writeOpts *pebbledb.WriteOptions
}

// Open opens (or creates) a Pebble store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("pebble: Options.Dir is required for on-disk mode")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64 << 20
	}

	cache := pebbledb.NewCache(opts.CacheSize)
	defer cache.Unref()

	pOpts := &pebbledb.Options{Cache: cache}
	if opts.InMemory {
		pOpts.FS = vfs.NewMem()
	}

	db, err := pebbledb.Open(opts.Dir, pOpts)
	if err != nil {
		return nil, blobstore.Unavailable("open", opts.Dir, err)
	}

	wo := pebbledb.Sync
	if opts.NoSync {
		wo = pebbledb.NoSync
	}
	return &Store{db: db, writeOpts: wo}, nil
}

// Get returns a copy of the value stored under name.
func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(name))
	if errors.Is(err, pebbledb.ErrNotFound) {
		return nil, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, blobstore.Unavailable("get", name, err)
	}
	defer func() { _ = closer.Close() }()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Put stores data under name.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return blobstore.Unavailable("put", name, err)
	}
	return blobstore.Unavailable("put", name, s.db.Set([]byte(name), data, s.writeOpts))
}

// Delete removes name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return blobstore.Unavailable("delete", name, err)
	}
	return blobstore.Unavailable("delete", name, s.db.Delete([]byte(name), s.writeOpts))
}

// List returns all keys with the given prefix in byte order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	iter, err := s.db.NewIter(&pebbledb.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upperBound([]byte(prefix)),
	})
	if err != nil {
		return nil, blobstore.Unavailable("list", prefix, err)
	}

	var names []string
	for valid := iter.First(); valid; valid = iter.Next() {
		if err := ctx.Err(); err != nil {
			_ = iter.Close()
			return nil, blobstore.Unavailable("list", prefix, err)
		}
		names = append(names, string(iter.Key()))
	}
	if err := iter.Close(); err != nil {
		return nil, blobstore.Unavailable("list", prefix, err)
	}
	return names, nil
}

// Exists reports whether name is present.
func (s *Store) Exists(_ context.Context, name string) (bool, error) {
	_, closer, err := s.db.Get([]byte(name))
	if errors.Is(err, pebbledb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, blobstore.Unavailable("exists", name, err)
	}
	_ = closer.Close()
	return true, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// upperBound returns the smallest key greater than every key with prefix p,
// or nil if no such key exists.
func upperBound(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
