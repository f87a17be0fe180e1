package blobstore

import (
	"context"

	"github.com/hupe1980/blobdir/internal/compress"
)

// CompressingStore transparently compresses content before it reaches the
// inner store. Every value it writes is self-describing, so the compression
// type can be changed without rewriting existing blobs.
//
// All blobs in the inner store must have been written through a
// CompressingStore; plain values are reported as unavailable on read.
type CompressingStore struct {
	inner BlobStore
	typ   compress.Type
}

// NewCompressingStore wraps inner, compressing new values with typ.
func NewCompressingStore(inner BlobStore, typ compress.Type) *CompressingStore {
	return &CompressingStore{inner: inner, typ: typ}
}

// Get reads and decompresses a blob.
func (s *CompressingStore) Get(ctx context.Context, name string) ([]byte, error) {
	raw, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := compress.Decode(raw)
	if err != nil {
		return nil, Unavailable("decode", name, err)
	}
	return data, nil
}

// Put compresses and writes a blob.
func (s *CompressingStore) Put(ctx context.Context, name string, data []byte) error {
	enc, err := compress.Encode(data, s.typ)
	if err != nil {
		return Unavailable("encode", name, err)
	}
	return s.inner.Put(ctx, name, enc)
}

// Delete is passed through to the inner store.
func (s *CompressingStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List is passed through to the inner store.
func (s *CompressingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Exists is passed through to the inner store.
func (s *CompressingStore) Exists(ctx context.Context, name string) (bool, error) {
	return s.inner.Exists(ctx, name)
}

// Unwrap returns the wrapped store.
func (s *CompressingStore) Unwrap() BlobStore {
	return s.inner
}
