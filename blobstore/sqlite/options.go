package sqlite

import (
	"time"
)

// DefaultTable is the blob table name used when WithTable is not given.
const DefaultTable = "blobs"

type options struct {
	table        string
	busyTimeout  time.Duration
	journalMode  string
	maxOpenConns int
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		table:       DefaultTable,
		busyTimeout: 5 * time.Second,
		journalMode: "WAL",
		now:         time.Now,
	}
}

// Option configures a Store.
type Option func(*options)

// WithTable sets the blob table name. The lock table is named "<table>_locks".
// The name must be a plain SQL identifier.
func WithTable(name string) Option {
	return func(o *options) {
		o.table = name
	}
}

// WithBusyTimeout sets how long a connection waits for a competing writer
// before failing. Only used by Open.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.busyTimeout = d
	}
}

// WithJournalMode sets the SQLite journal mode (for example "WAL" or
// "DELETE"). Only used by Open.
func WithJournalMode(mode string) Option {
	return func(o *options) {
		o.journalMode = mode
	}
}

// WithMaxOpenConns limits the connection pool. Only used by Open.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		o.maxOpenConns = n
	}
}

// WithClock overrides the clock used for lease expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
