package blobstore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/blobdir/internal/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressingStore(t *testing.T) {
	for _, typ := range []compress.Type{compress.TypeNone, compress.TypeLZ4, compress.TypeZSTD} {
		t.Run(typ.String(), func(t *testing.T) {
			ctx := context.Background()
			inner := NewMemoryStore()
			store := NewCompressingStore(inner, typ)

			data := bytes.Repeat([]byte("posting list "), 512)
			require.NoError(t, store.Put(ctx, "seg/postings", data))

			got, err := store.Get(ctx, "seg/postings")
			require.NoError(t, err)
			assert.Equal(t, data, got)

			raw, err := inner.Get(ctx, "seg/postings")
			require.NoError(t, err)
			if typ != compress.TypeNone {
				assert.Less(t, len(raw), len(data))
			}

			require.NoError(t, store.Put(ctx, "empty", []byte{}))
			got, err = store.Get(ctx, "empty")
			require.NoError(t, err)
			assert.Empty(t, got)

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"empty", "seg/postings"}, names)
		})
	}
}

func TestCompressingStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "plain", []byte("not framed")))

	store := NewCompressingStore(inner, compress.TypeZSTD)
	_, err := store.Get(ctx, "plain")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, IsNotFound(err))

	// A flipped high bit in the size header must not reach the allocator.
	for _, typ := range []compress.Type{compress.TypeLZ4, compress.TypeZSTD} {
		enc, err := compress.Encode(bytes.Repeat([]byte("postings "), 256), typ)
		require.NoError(t, err)
		enc[8] |= 0x80
		require.NoError(t, inner.Put(ctx, "flipped", enc))

		_, err = store.Get(ctx, "flipped")
		assert.ErrorIs(t, err, ErrUnavailable, typ.String())
	}

	_, err = store.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))
}
