// Package lock provides named advisory locks.
//
// A lock is exclusive per name: at most one Handle for a given name is
// outstanding at any time. Table coordinates goroutines of one process;
// LeaseLocker extends a Table with leases in a shared LeaseStore so that
// several processes can coordinate through the same database.
//
// Locks are advisory. Nothing stops code that never calls Acquire from
// touching the protected resource.
package lock

import (
	"context"
	"errors"
)

var (
	// ErrWouldBlock is returned by a non-blocking Acquire when the lock is held.
	ErrWouldBlock = errors.New("lock: would block")

	// ErrInvalidHandle is returned when releasing a handle that is not
	// currently held, including a handle that was already released.
	ErrInvalidHandle = errors.New("lock: invalid handle")

	// ErrClosed is returned by a Locker that was closed.
	ErrClosed = errors.New("lock: locker closed")
)

// Handle represents one successful acquisition.
type Handle struct {
	name  string
	token string
}

// Name returns the lock name.
func (h *Handle) Name() string {
	return h.name
}

// Token returns the unique id of this acquisition.
func (h *Handle) Token() string {
	return h.token
}

// Locker acquires and releases named locks.
type Locker interface {
	// Acquire takes the lock called name. With blocking=false it fails with
	// ErrWouldBlock instead of waiting. A blocking Acquire returns ctx.Err()
	// if ctx is done first.
	Acquire(ctx context.Context, name string, blocking bool) (*Handle, error)

	// Release gives up the lock. It fails with ErrInvalidHandle if h is not
	// currently held.
	Release(ctx context.Context, h *Handle) error
}
