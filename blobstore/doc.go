// Package blobstore provides the content storage abstraction behind blobdir.
//
// BlobStore maps logical paths (for example "segment_3/postings.bin") to
// byte content. Every Put replaces a blob atomically, so readers never see a
// partially written value. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: one file per blob below a directory
//   - sqlite.Store: a single SQL table, the primary backend
//   - badger.Store and pebble.Store: embedded key-value engines
//   - s3.Store and minio.Store: object storage, for export and import
//
// # Wrappers
//
//   - CachingStore keeps hot blobs in a byte-bounded LRU
//   - CompressingStore stores values as zstd or lz4 blocks
//
// Copy moves a prefix between any two stores.
//
// # Errors
//
// A missing blob is reported as ErrNotFound (which is os.ErrNotExist).
// Every other backend failure matches ErrUnavailable and carries the
// underlying cause as a *StoreError.
package blobstore
