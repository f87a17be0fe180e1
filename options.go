package blobdir

import (
	"log/slog"
	"time"

	"github.com/hupe1980/blobdir/blobstore/sqlite"
	"github.com/hupe1980/blobdir/internal/compress"
	"github.com/hupe1980/blobdir/lock"
)

// Compression selects how blob content is compressed at rest.
type Compression = compress.Type

// Supported compression types.
const (
	CompressionNone = compress.TypeNone
	CompressionLZ4  = compress.TypeLZ4
	CompressionZSTD = compress.TypeZSTD
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	return compress.ParseType(s)
}

type options struct {
	logger       *Logger
	metrics      MetricsCollector
	locker       lock.Locker
	leaseTTL     time.Duration
	cacheBytes   int64
	compression  Compression
	memoryLimit  int64
	storeOptions []sqlite.Option
}

func defaultOptions() options {
	return options{
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
		compression: CompressionNone,
	}
}

// Option configures a Directory.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := blobdir.NewJSONLogger(slog.LevelInfo)
//	dir, _ := blobdir.Open(ctx, "index.db", blobdir.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel enables text logging to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
//	metrics := &blobdir.BasicMetricsCollector{}
//	dir, _ := blobdir.Open(ctx, "index.db", blobdir.WithMetricsCollector(metrics))
//	// ... use dir ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithLocker replaces the lock manager. The default is an in-process lock.Table.
func WithLocker(l lock.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithLeaseLocks coordinates locks across processes through lease rows in
// the store's lock table. The store must implement lock.LeaseStore, as
// sqlite.Store does. Leases expire after ttl unless renewed.
func WithLeaseLocks(ttl time.Duration) Option {
	return func(o *options) {
		o.leaseTTL = ttl
	}
}

// WithCache keeps up to bytes of recently read content in memory.
func WithCache(bytes int64) Option {
	return func(o *options) {
		o.cacheBytes = bytes
	}
}

// WithCompression compresses content before it reaches the store.
// A store must always be opened with compression enabled once it was
// written with compression, though the type may change between opens.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMemoryLimit caps the bytes held by open read snapshots, write buffers
// and the cache. 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithStoreOptions passes options to the SQLite store created by Open.
func WithStoreOptions(opts ...sqlite.Option) Option {
	return func(o *options) {
		o.storeOptions = append(o.storeOptions, opts...)
	}
}
