package blobdir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/blobdir/blobstore"
	"github.com/hupe1980/blobdir/blobstore/sqlite"
	"github.com/hupe1980/blobdir/internal/resource"
	"github.com/hupe1980/blobdir/lock"
)

// Directory is a virtual directory whose files are rows of a BlobStore.
//
// It is safe for concurrent use. Mutations are serialized; reads run
// concurrently and never observe a partially written file.
type Directory struct {
	store   blobstore.BlobStore
	locker  lock.Locker
	logger  *Logger
	metrics MetricsCollector
	rc      *resource.Controller

	// mu serializes mutations and the watcher calls that follow them.
	mu       sync.Mutex
	watchers watchers
	snaps    *snapshotCache

	closers []io.Closer
	closed  atomic.Bool
}

// Open opens (or creates) a SQLite database file and returns a Directory
// backed by its blob table. The Directory owns the database and closes it
// on Close.
func Open(ctx context.Context, path string, optFns ...Option) (*Directory, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	store, err := sqlite.Open(ctx, path, opts.storeOptions...)
	if err != nil {
		return nil, err
	}

	d, err := newDirectory(store, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	d.closers = append(d.closers, store)

	d.logger.InfoContext(ctx, "directory opened",
		"database", path,
		"table", store.Table(),
	)
	return d, nil
}

// New creates a Directory on an existing store. The caller keeps ownership
// of store. If store needs a schema it is created first.
func New(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Directory, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if se, ok := store.(blobstore.SchemaEnsurer); ok {
		if err := se.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}
	return newDirectory(store, opts)
}

func newDirectory(base blobstore.BlobStore, opts options) (*Directory, error) {
	d := &Directory{
		store:   base,
		logger:  opts.logger,
		metrics: opts.metrics,
		rc:      resource.NewController(resource.Config{MemoryLimitBytes: opts.memoryLimit}),
		snaps:   newSnapshotCache(),
	}

	if opts.compression != CompressionNone {
		d.store = blobstore.NewCompressingStore(d.store, opts.compression)
	}
	if opts.cacheBytes > 0 {
		cs := blobstore.NewCachingStore(d.store, opts.cacheBytes, d.rc)
		d.store = cs
		d.closers = append(d.closers, cs)
	}

	switch {
	case opts.locker != nil:
		d.locker = opts.locker
	case opts.leaseTTL > 0:
		ls, ok := base.(lock.LeaseStore)
		if !ok {
			return nil, fmt.Errorf("blobdir: lease locks need a store implementing lock.LeaseStore, got %T", base)
		}
		ll := lock.NewLeaseLocker(ls,
			lock.WithTTL(opts.leaseTTL),
			lock.WithLeaseLogger(opts.logger.WithComponent("lock").Logger),
		)
		d.locker = ll
		// Leases must be dropped before the store closes.
		d.closers = append([]io.Closer{ll}, d.closers...)
	default:
		d.locker = lock.NewTable()
	}
	return d, nil
}

// Store returns the store the Directory reads and writes through,
// including any cache or compression layers. Writes made directly on it
// skip snapshot invalidation, watchers and metrics; use Blobs to write.
func (d *Directory) Store() blobstore.BlobStore {
	return d.store
}

// Blobs returns d as a blobstore.BlobStore, so tools written against
// stores (such as blobstore.Copy) commit through the Directory.
func (d *Directory) Blobs() blobstore.BlobStore {
	return dirBlobs{d}
}

type dirBlobs struct{ d *Directory }

func (b dirBlobs) Get(ctx context.Context, name string) ([]byte, error) {
	return b.d.AtomicRead(ctx, name)
}

func (b dirBlobs) Put(ctx context.Context, name string, data []byte) error {
	return b.d.AtomicWrite(ctx, name, data)
}

func (b dirBlobs) Delete(ctx context.Context, name string) error {
	return b.d.Delete(ctx, name)
}

func (b dirBlobs) List(ctx context.Context, prefix string) ([]string, error) {
	return b.d.List(ctx, prefix)
}

func (b dirBlobs) Exists(ctx context.Context, name string) (bool, error) {
	return b.d.Exists(ctx, name)
}

// MemoryUsage returns the bytes currently held by open handles and the cache.
func (d *Directory) MemoryUsage() int64 {
	return d.rc.MemoryUsage()
}

// AtomicRead returns the whole content of path. The returned slice may be
// shared with open read handles and must not be modified.
func (d *Directory) AtomicRead(ctx context.Context, path string) ([]byte, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	snap, err := d.snapshot(ctx, path)

	size := 0
	if snap != nil {
		size = len(snap.data)
	}
	d.metrics.RecordRead(size, time.Since(start), err)
	d.logger.LogRead(ctx, path, size, err)

	if err != nil {
		return nil, err
	}
	return snap.data, nil
}

// AtomicWrite replaces the content of path with data in a single commit.
func (d *Directory) AtomicWrite(ctx context.Context, path string, data []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	return d.put(ctx, path, data)
}

// Delete removes path. Deleting a missing path is not an error.
func (d *Directory) Delete(ctx context.Context, path string) error {
	if d.closed.Load() {
		return ErrClosed
	}

	start := time.Now()

	d.mu.Lock()
	err := d.store.Delete(ctx, path)
	if err == nil {
		d.snaps.invalidate(path)
		d.notify(ctx, Event{Op: OpDelete, Path: path})
	}
	d.mu.Unlock()

	d.metrics.RecordDelete(time.Since(start), err)
	d.logger.LogDelete(ctx, path, err)
	return err
}

// Exists reports whether path is present.
func (d *Directory) Exists(ctx context.Context, path string) (bool, error) {
	if d.closed.Load() {
		return false, ErrClosed
	}
	return d.store.Exists(ctx, path)
}

// List returns the sorted paths starting with prefix. An empty prefix
// lists every path.
func (d *Directory) List(ctx context.Context, prefix string) ([]string, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	return d.store.List(ctx, prefix)
}

// Sync is a no-op: every committed write is already durable, and there
// is no directory metadata apart from the rows themselves.
func (d *Directory) Sync(context.Context) error {
	if d.closed.Load() {
		return ErrClosed
	}
	return nil
}

// AcquireLock takes the named advisory lock.
func (d *Directory) AcquireLock(ctx context.Context, name string, blocking bool) (*lock.Handle, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	h, err := d.locker.Acquire(ctx, name, blocking)
	d.metrics.RecordLock(time.Since(start), err)
	d.logger.LogLock(ctx, "acquire", name, err)
	return h, err
}

// ReleaseLock gives up a lock taken with AcquireLock.
func (d *Directory) ReleaseLock(ctx context.Context, h *lock.Handle) error {
	if h == nil {
		return ErrInvalidHandle
	}
	err := d.locker.Release(ctx, h)
	d.logger.LogLock(ctx, "release", h.Name(), err)
	return err
}

// put commits data and notifies watchers in the same critical section.
func (d *Directory) put(ctx context.Context, path string, data []byte) error {
	start := time.Now()

	d.mu.Lock()
	err := d.store.Put(ctx, path, data)
	if err == nil {
		d.snaps.invalidate(path)
		d.notify(ctx, Event{Op: OpPut, Path: path})
	}
	d.mu.Unlock()

	d.metrics.RecordWrite(len(data), time.Since(start), err)
	d.logger.LogWrite(ctx, path, len(data), err)
	return err
}

// snapshot returns the shared snapshot of path, reading it if needed.
func (d *Directory) snapshot(ctx context.Context, path string) (*snapshot, error) {
	snap, gen := d.snaps.get(path)
	if snap != nil {
		return snap, nil
	}

	data, err := d.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.snaps.put(path, &snapshot{data: data}, gen), nil
}

// Close releases locks, caches and, for a Directory created by Open, the
// database. Open handles stay readable; writes through them fail.
func (d *Directory) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
