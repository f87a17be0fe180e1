package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/hupe1980/blobdir/blobstore"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrInvalidTable is returned for table names that are not plain identifiers.
var ErrInvalidTable = errors.New("sqlite: invalid table name")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a blobstore.BlobStore backed by one SQLite table.
type Store struct {
	db     *sql.DB
	ownsDB bool
	table  string
	now    func() time.Time

	// wmu serializes writers of this Store; other processes are handled by
	// the busy timeout.
	wmu sync.Mutex

	q queries
}

type queries struct {
	createBlobs string
	createLocks string
	get         string
	put         string
	del         string
	list        string
	exists      string
	size        string
	acquire     string
	renew       string
	release     string
}

func buildQueries(table string) queries {
	t := quote(table)
	l := quote(table + "_locks")
	return queries{
		createBlobs: `CREATE TABLE IF NOT EXISTS ` + t + ` (
			path    TEXT PRIMARY KEY NOT NULL,
			content BLOB NOT NULL
		)`,
		createLocks: `CREATE TABLE IF NOT EXISTS ` + l + ` (
			name       TEXT PRIMARY KEY NOT NULL,
			holder     TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		get: `SELECT content FROM ` + t + ` WHERE path = ?`,
		put: `INSERT INTO ` + t + ` (path, content) VALUES (?, ?)
			ON CONFLICT(path) DO UPDATE SET content = excluded.content`,
		del:    `DELETE FROM ` + t + ` WHERE path = ?`,
		list:   `SELECT path FROM ` + t + ` WHERE path >= ? AND substr(CAST(path AS BLOB), 1, ?) = CAST(? AS BLOB) ORDER BY path`,
		exists: `SELECT 1 FROM ` + t + ` WHERE path = ? LIMIT 1`,
		size:   `SELECT length(CAST(content AS BLOB)) FROM ` + t + ` WHERE path = ?`,
		acquire: `INSERT INTO ` + l + ` (name, holder, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
			WHERE ` + l + `.expires_at < ? OR ` + l + `.holder = excluded.holder`,
		renew:   `UPDATE ` + l + ` SET expires_at = ? WHERE name = ? AND holder = ?`,
		release: `DELETE FROM ` + l + ` WHERE name = ? AND holder = ?`,
	}
}

func quote(ident string) string {
	return `"` + ident + `"`
}

// Open opens (or creates) the SQLite database file at path and ensures the
// schema exists. The returned Store owns the database and closes it on Close.
func Open(ctx context.Context, path string, optFns ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", dsn(path, opts))
	if err != nil {
		return nil, blobstore.Unavailable("open", path, err)
	}
	switch {
	case path == ":memory:":
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	case opts.maxOpenConns > 0:
		db.SetMaxOpenConns(opts.maxOpenConns)
	}

	s, err := newStore(db, true, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New creates a Store on an existing database handle. The caller keeps
// ownership of db; Close does not close it. EnsureSchema is called before
// New returns.
func New(ctx context.Context, db *sql.DB, optFns ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	s, err := newStore(db, false, opts)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB, owns bool, opts options) (*Store, error) {
	if !identRe.MatchString(opts.table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, opts.table)
	}
	return &Store{
		db:     db,
		ownsDB: owns,
		table:  opts.table,
		now:    opts.now,
		q:      buildQueries(opts.table),
	}, nil
}

func dsn(path string, opts options) string {
	v := url.Values{}
	if opts.busyTimeout > 0 {
		v.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.busyTimeout.Milliseconds()))
	}
	if opts.journalMode != "" && path != ":memory:" {
		v.Add("_pragma", fmt.Sprintf("journal_mode(%s)", opts.journalMode))
	}
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// Table returns the blob table name.
func (s *Store) Table() string {
	return s.table
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureSchema creates the blob and lock tables if they do not exist.
// It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.db.ExecContext(ctx, s.q.createBlobs); err != nil {
		return blobstore.Unavailable("ensure schema", s.table, err)
	}
	if _, err := s.db.ExecContext(ctx, s.q.createLocks); err != nil {
		return blobstore.Unavailable("ensure schema", s.table+"_locks", err)
	}
	return nil
}

// Get returns the content stored under name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.q.get, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, blobstore.Unavailable("get", name, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Put inserts or replaces the content stored under name.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{} // content is NOT NULL
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.db.ExecContext(ctx, s.q.put, name, data); err != nil {
		return blobstore.Unavailable("put", name, err)
	}
	return nil
}

// Delete removes name. Deleting a missing path is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.db.ExecContext(ctx, s.q.del, name); err != nil {
		return blobstore.Unavailable("delete", name, err)
	}
	return nil
}

// List returns all paths starting with prefix in byte order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q.list, prefix, len(prefix), prefix)
	if err != nil {
		return nil, blobstore.Unavailable("list", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, blobstore.Unavailable("list", prefix, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, blobstore.Unavailable("list", prefix, err)
	}
	return names, nil
}

// Exists reports whether a row for name exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q.exists, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, blobstore.Unavailable("exists", name, err)
	}
	return true, nil
}

// Size returns the content length of name without reading it.
func (s *Store) Size(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.q.size, name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, blobstore.ErrNotFound
	}
	if err != nil {
		return 0, blobstore.Unavailable("size", name, err)
	}
	return n, nil
}

// Close closes the database if the Store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
