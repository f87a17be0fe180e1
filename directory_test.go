package blobdir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/blobdir/blobstore"
	"github.com/hupe1980/blobdir/blobstore/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDir(t *testing.T, opts ...Option) *Directory {
	t.Helper()
	d, err := Open(context.Background(), filepath.Join(t.TempDir(), "index.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDirectory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	d := openTestDir(t)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("hello")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x00}},
		{"large", bytes.Repeat([]byte("0123456789"), 100_000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, d.AtomicWrite(ctx, tt.name, tt.data))
			got, err := d.AtomicRead(ctx, tt.name)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.data, got))
		})
	}
}

func TestDirectory_SegmentScenario(t *testing.T) {
	ctx := context.Background()
	d := openTestDir(t)

	content := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, d.AtomicWrite(ctx, "segment_1.idx", content))

	ok, err := d.Exists(ctx, "segment_1.idx")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := d.AtomicRead(ctx, "segment_1.idx")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, d.Delete(ctx, "segment_1.idx"))

	_, err = d.AtomicRead(ctx, "segment_1.idx")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStorageUnavailable)
}

func TestDirectory_ListScenario(t *testing.T) {
	ctx := context.Background()
	d := openTestDir(t)

	for _, p := range []string{"a", "b", "c", "b"} {
		require.NoError(t, d.AtomicWrite(ctx, p, []byte(p)))
	}

	names, err := d.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestDirectory_DeleteMissing(t *testing.T) {
	ctx := context.Background()
	d := openTestDir(t)

	require.NoError(t, d.Delete(ctx, "never-written"))
	ok, err := d.Exists(ctx, "never-written")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectory_OpenReadMissing(t *testing.T) {
	d := openTestDir(t)
	_, err := d.OpenRead(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestDirectory_ClosedDirectory(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)

	w, err := d.OpenWrite(ctx, "pending")
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err = d.AtomicRead(ctx, "x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, d.AtomicWrite(ctx, "x", nil), ErrClosed)
	_, err = d.OpenRead(ctx, "x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.AcquireLock(ctx, "writer", false)
	assert.ErrorIs(t, err, ErrClosed)

	// Pending writers cannot commit after Close, but are released.
	assert.ErrorIs(t, w.Close(), ErrClosed)
}

// failingStore simulates a broken backend.
type failingStore struct {
	blobstore.BlobStore
	fail error
}

func (f *failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, blobstore.Unavailable("get", "", f.fail)
}

func (f *failingStore) Put(context.Context, string, []byte) error {
	return blobstore.Unavailable("put", "", f.fail)
}

func TestDirectory_StorageUnavailable(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	require.NoError(t, mem.Put(ctx, "kept", []byte("old")))

	d, err := New(ctx, &failingStore{BlobStore: mem, fail: errors.New("disk I/O error")})
	require.NoError(t, err)

	var events []Event
	d.Watch(func(_ context.Context, ev Event) error {
		events = append(events, ev)
		return nil
	})

	err = d.AtomicWrite(ctx, "kept", []byte("new"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Empty(t, events, "failed writes are not reported")

	_, err = d.AtomicRead(ctx, "kept")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	data, err := mem.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestDirectory_BlobsCommitThroughDirectory(t *testing.T) {
	ctx := context.Background()
	d := openTestDir(t)

	require.NoError(t, d.AtomicWrite(ctx, "meta.json", []byte(`{"v":1}`)))
	r, err := d.OpenRead(ctx, "meta.json")
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var events []Event
	w := d.Watch(func(_ context.Context, ev Event) error {
		events = append(events, ev)
		return nil
	})
	defer func() { _ = w.Close() }()

	src := blobstore.NewMemoryStore()
	require.NoError(t, src.Put(ctx, "meta.json", []byte(`{"v":2}`)))
	require.NoError(t, src.Put(ctx, "segment_1.idx", []byte("postings")))

	stats, err := blobstore.Copy(ctx, d.Blobs(), src, blobstore.CopyOptions{Concurrency: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Copied)

	// The open handle keeps its snapshot, a new one sees the import.
	old, err := r.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(old))

	r2, err := d.OpenRead(ctx, "meta.json")
	require.NoError(t, err)
	defer func() { _ = r2.Close() }()
	cur, err := r2.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(cur))

	assert.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, OpPut, ev.Op)
	}

	ok, err := d.Blobs().Exists(ctx, "segment_1.idx")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDirectory_SharedDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	store, err := sqlite.Open(ctx, path, sqlite.WithTable("search_files"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	d, err := New(ctx, store)
	require.NoError(t, err)
	require.NoError(t, d.AtomicWrite(ctx, "meta.json", []byte("{}")))
	require.NoError(t, d.Close())

	// The caller's store is still usable after the Directory closed.
	data, err := store.Get(ctx, "meta.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestDirectory_StoreOptions(t *testing.T) {
	ctx := context.Background()
	d := openTestDir(t, WithStoreOptions(sqlite.WithTable("idx_products")))

	require.NoError(t, d.AtomicWrite(ctx, "a", []byte("1")))
	s, ok := d.Store().(*sqlite.Store)
	require.True(t, ok)
	assert.Equal(t, "idx_products", s.Table())
}

func TestDirectory_Metrics(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	d := openTestDir(t, WithMetricsCollector(mc))

	require.NoError(t, d.AtomicWrite(ctx, "a", []byte("12345")))
	_, err := d.AtomicRead(ctx, "a")
	require.NoError(t, err)
	_, err = d.AtomicRead(ctx, "missing")
	require.Error(t, err)
	require.NoError(t, d.Delete(ctx, "a"))

	h, err := d.AcquireLock(ctx, "writer", false)
	require.NoError(t, err)
	_, err = d.AcquireLock(ctx, "writer", false)
	require.ErrorIs(t, err, ErrWouldBlock)
	require.NoError(t, d.ReleaseLock(ctx, h))

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.WriteCount)
	assert.Equal(t, int64(5), stats.WriteBytes)
	assert.Equal(t, int64(2), stats.ReadCount)
	assert.Equal(t, int64(1), stats.ReadMisses)
	assert.Equal(t, int64(0), stats.ReadErrors)
	assert.Equal(t, int64(1), stats.DeleteCount)
	assert.Equal(t, int64(1), stats.LockCount)
	assert.Equal(t, int64(1), stats.LockContended)
}

func TestDirectory_CacheAndCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			d := openTestDir(t, WithCache(1<<20), WithCompression(c))

			data := bytes.Repeat([]byte("term posting "), 1000)
			require.NoError(t, d.AtomicWrite(ctx, "seg/postings", data))

			for i := 0; i < 3; i++ {
				got, err := d.AtomicRead(ctx, "seg/postings")
				require.NoError(t, err)
				assert.Equal(t, data, got)
			}

			require.NoError(t, d.AtomicWrite(ctx, "seg/postings", []byte("v2")))
			got, err := d.AtomicRead(ctx, "seg/postings")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(got))
		})
	}
}

func TestDirectory_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	d := openTestDir(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				p := fmt.Sprintf("w%d/%d", i, j)
				assert.NoError(t, d.AtomicWrite(ctx, p, []byte(p)))
			}
		}(i)
	}
	wg.Wait()

	names, err := d.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 80)
	assert.True(t, sort.StringsAreSorted(names))
}

func TestDirectory_Sync(t *testing.T) {
	d := openTestDir(t)
	assert.NoError(t, d.Sync(context.Background()))
}

func TestDirectory_LeaseLocks(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	a, err := Open(ctx, path, WithLeaseLocks(time.Minute))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := Open(ctx, path, WithLeaseLocks(time.Minute))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	h, err := a.AcquireLock(ctx, "writer", false)
	require.NoError(t, err)

	_, err = b.AcquireLock(ctx, "writer", false)
	assert.ErrorIs(t, err, ErrWouldBlock)

	require.NoError(t, a.ReleaseLock(ctx, h))

	hb, err := b.AcquireLock(ctx, "writer", false)
	require.NoError(t, err)
	require.NoError(t, b.ReleaseLock(ctx, hb))
}

func TestDirectory_LeaseLocksNeedLeaseStore(t *testing.T) {
	_, err := New(context.Background(), blobstore.NewMemoryStore(), WithLeaseLocks(time.Minute))
	assert.Error(t, err)
}
