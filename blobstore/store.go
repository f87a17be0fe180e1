package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrUnavailable marks a failure of the underlying store (I/O error, corruption,
// closed connection, failed transaction). It is never returned for a missing blob.
var ErrUnavailable = errors.New("blobstore: storage unavailable")

// BlobStore maps logical paths to byte content.
//
// Every mutation is atomic: a concurrent Get observes either the previous or
// the new content of a path, never a mix. Implementations must be safe for
// concurrent use.
type BlobStore interface {
	// Get returns the full content stored under name, or ErrNotFound.
	// Callers must treat the returned slice as read-only.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put replaces (or creates) the content stored under name.
	// A failed Put leaves the previous content intact. Implementations must
	// not retain data after Put returns.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes name. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Exists reports whether name is present.
	Exists(ctx context.Context, name string) (bool, error)
}

// SchemaEnsurer is implemented by stores that own a schema which must exist
// before first use.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// StoreError describes a failed store operation.
//
// It matches ErrUnavailable via errors.Is and unwraps to the underlying cause.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("blobstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("blobstore: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports ErrUnavailable for every StoreError.
func (e *StoreError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps err as a StoreError. It returns nil for a nil err and
// passes ErrNotFound through untouched so callers can still tell the two apart.
func Unavailable(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Path: path, Err: err}
}

// HasPrefix reports whether name belongs to the listing for prefix.
func HasPrefix(name, prefix string) bool {
	return prefix == "" || strings.HasPrefix(name, prefix)
}

// IsNotFound reports whether err means the blob does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
