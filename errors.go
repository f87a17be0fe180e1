package blobdir

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/hupe1980/blobdir/blobstore"
	"github.com/hupe1980/blobdir/internal/resource"
	"github.com/hupe1980/blobdir/lock"
)

var (
	// ErrNotFound is returned when a path does not exist. It is fs.ErrNotExist.
	ErrNotFound = blobstore.ErrNotFound

	// ErrStorageUnavailable marks a failure of the underlying store.
	ErrStorageUnavailable = blobstore.ErrUnavailable

	// ErrOutOfRange is returned for reads outside a handle's bounds.
	ErrOutOfRange = errors.New("blobdir: read out of range")

	// ErrInvalidHandle is returned when releasing a lock that is not held.
	ErrInvalidHandle = lock.ErrInvalidHandle

	// ErrWouldBlock is returned by a non-blocking lock acquisition that is contended.
	ErrWouldBlock = lock.ErrWouldBlock

	// ErrClosed is returned by operations on a closed Directory or handle.
	ErrClosed = fs.ErrClosed

	// ErrMemoryLimitExceeded is returned when opening a handle would exceed
	// the configured memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// RangeError describes a read outside a handle's bounds.
//
// It matches ErrOutOfRange via errors.Is.
type RangeError struct {
	Path   string
	Offset int64
	Length int64
	Size   int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("blobdir: read %q [%d, +%d) out of range (size %d)", e.Path, e.Offset, e.Length, e.Size)
}

// Is reports ErrOutOfRange.
func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
