// Package badger provides a BlobStore backed by BadgerDB v4.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/hupe1980/blobdir/blobstore"
)

// Options configures the BadgerDB store.
type Options struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logger receives badger warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store implements blobstore.BlobStore on a BadgerDB instance.
type Store struct {
	db *badgerdb.DB
}

// Open opens (or creates) a BadgerDB store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger: Options.Dir is required for on-disk mode")
	}

	dbOpts := badgerdb.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badgerdb.DefaultOptions("").WithInMemory(true)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(slogAdapter{logger: logger.With("component", "badger")})

	db, err := badgerdb.Open(dbOpts)
	if err != nil {
		return nil, blobstore.Unavailable("open", opts.Dir, err)
	}
	return &Store{db: db}, nil
}

// Get returns the value stored under name.
func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, blobstore.Unavailable("get", name, err)
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

// Put stores data under name in a single transaction.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return blobstore.Unavailable("put", name, err)
	}
	// Badger retains the slice until commit; give it a private copy.
	val := append([]byte(nil), data...)
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(name), val)
	})
	return blobstore.Unavailable("put", name, err)
}

// Delete removes name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return blobstore.Unavailable("delete", name, err)
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(name))
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil
	}
	return blobstore.Unavailable("delete", name, err)
}

// List returns all keys with the given prefix in byte order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	p := []byte(prefix)
	var names []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		iterOpts := badgerdb.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = p
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			names = append(names, string(it.Item().Key()))
		}
		return nil
	})
	if err != nil {
		return nil, blobstore.Unavailable("list", prefix, err)
	}
	return names, nil
}

// Exists reports whether name is present.
func (s *Store) Exists(_ context.Context, name string) (bool, error) {
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(name))
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, blobstore.Unavailable("exists", name, err)
	}
	return true, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// slogAdapter routes badger's printf-style logging to slog. Info and debug
// output is dropped.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Errorf(f string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(f, v...))
}

func (a slogAdapter) Warningf(f string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(f, v...))
}

func (slogAdapter) Infof(string, ...interface{})  {}
func (slogAdapter) Debugf(string, ...interface{}) {}
