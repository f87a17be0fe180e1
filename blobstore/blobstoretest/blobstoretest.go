// Package blobstoretest provides a conformance suite for blobstore.BlobStore
// implementations.
package blobstoretest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/blobdir/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type config struct {
	textPaths bool
}

// Option adjusts the suite for a store's naming rules.
type Option func(*config)

// TextPathsOnly skips the cases that store names containing NUL bytes or
// invalid UTF-8. Use it for stores whose names must be file or object keys.
func TextPathsOnly() Option {
	return func(c *config) { c.textPaths = true }
}

// Run exercises the BlobStore contract against stores returned by newStore.
// Every subtest gets a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) blobstore.BlobStore, opts ...Option) {
	t.Helper()

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, blobstore.ErrNotFound))
		assert.False(t, errors.Is(err, blobstore.ErrUnavailable))
	})

	t.Run("PutGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, "a/b", []byte("hello")))
		data, err := s.Get(ctx, "a/b")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, "x", []byte("first, longer value")))
		require.NoError(t, s.Put(ctx, "x", []byte("second")))
		data, err := s.Get(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), data)
	})

	t.Run("EmptyContent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, "empty", nil))
		data, err := s.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, data)

		ok, err := s.Exists(ctx, "empty")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("BinaryContent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		data := make([]byte, 256*1024)
		for i := range data {
			data[i] = byte(i * 7)
		}
		require.NoError(t, s.Put(ctx, "bin", data))
		got, err := s.Get(ctx, "bin")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, got))
	})

	t.Run("PutCopiesInput", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		buf := []byte("abc")
		require.NoError(t, s.Put(ctx, "k", buf))
		buf[0] = 'z'
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, "gone", []byte("x")))
		require.NoError(t, s.Delete(ctx, "gone"))

		_, err := s.Get(ctx, "gone")
		assert.True(t, errors.Is(err, blobstore.ErrNotFound))

		ok, err := s.Exists(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)

		// Deleting a missing blob is a no-op.
		require.NoError(t, s.Delete(ctx, "gone"))
		require.NoError(t, s.Delete(ctx, "never-existed"))
	})

	t.Run("List", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for _, name := range []string{"seg_2/b", "seg_1/a", "seg_1/b", "seg_10/a", "meta.json"} {
			require.NoError(t, s.Put(ctx, name, []byte(name)))
		}

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"meta.json", "seg_1/a", "seg_1/b", "seg_10/a", "seg_2/b"}, all)

		seg1, err := s.List(ctx, "seg_1/")
		require.NoError(t, err)
		assert.Equal(t, []string{"seg_1/a", "seg_1/b"}, seg1)

		none, err := s.List(ctx, "nope/")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ListAfterDelete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, "p/1", []byte("1")))
		require.NoError(t, s.Put(ctx, "p/2", []byte("2")))
		require.NoError(t, s.Delete(ctx, "p/1"))

		names, err := s.List(ctx, "p/")
		require.NoError(t, err)
		assert.Equal(t, []string{"p/2"}, names)
	})

	t.Run("UnicodePaths", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, "größe/ä", []byte("1")))
		require.NoError(t, s.Put(ctx, "größe/ö", []byte("2")))
		require.NoError(t, s.Put(ctx, "grosse", []byte("3")))

		names, err := s.List(ctx, "größe/")
		require.NoError(t, err)
		assert.Equal(t, []string{"größe/ä", "größe/ö"}, names)
	})

	t.Run("OpaquePaths", func(t *testing.T) {
		if cfg.textPaths {
			t.Skip("store requires text paths")
		}
		ctx := context.Background()
		s := newStore(t)

		for _, name := range []string{"\xe2\x82seg", "\xe2\x82\xacseg", "a\x00b", "a\x00c", "a"} {
			require.NoError(t, s.Put(ctx, name, []byte(name)))
		}

		got, err := s.Get(ctx, "a\x00b")
		require.NoError(t, err)
		assert.Equal(t, []byte("a\x00b"), got)

		names, err := s.List(ctx, "\xe2\x82")
		require.NoError(t, err)
		assert.Equal(t, []string{"\xe2\x82seg", "\xe2\x82\xacseg"}, names)

		names, err = s.List(ctx, "a\x00")
		require.NoError(t, err)
		assert.Equal(t, []string{"a\x00b", "a\x00c"}, names)

		names, err = s.List(ctx, "\xe2\x82\xac")
		require.NoError(t, err)
		assert.Equal(t, []string{"\xe2\x82\xacseg"}, names)
	})

	t.Run("ConcurrentPutGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		old := bytes.Repeat([]byte{'a'}, 4096)
		updated := bytes.Repeat([]byte{'b'}, 8192)
		require.NoError(t, s.Put(ctx, "shared", old))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					got, err := s.Get(ctx, "shared")
					if !assert.NoError(t, err) {
						return
					}
					if !bytes.Equal(got, old) && !bytes.Equal(got, updated) {
						assert.Fail(t, "observed torn content", "len=%d", len(got))
						return
					}
				}
			}()
		}
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Put(ctx, fmt.Sprintf("other/%d", i), []byte("x")))
				assert.NoError(t, s.Put(ctx, "shared", updated))
			}(i)
		}
		wg.Wait()

		got, err := s.Get(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})
}
