package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Table is an in-process Locker. Waiters are served in FIFO order and a
// released lock is handed directly to the next waiter.
//
// The zero value is ready to use.
type Table struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	holder  string
	waiters []*waiter
}

type waiter struct {
	token string
	ready chan struct{}
}

// NewTable returns an empty lock table.
func NewTable() *Table {
	return &Table{}
}

// Acquire implements Locker.
func (t *Table) Acquire(ctx context.Context, name string, blocking bool) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token := uuid.NewString()

	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*entry)
	}
	e, held := t.locks[name]
	if !held {
		t.locks[name] = &entry{holder: token}
		t.mu.Unlock()
		return &Handle{name: name, token: token}, nil
	}
	if !blocking {
		t.mu.Unlock()
		return nil, ErrWouldBlock
	}
	w := &waiter{token: token, ready: make(chan struct{})}
	e.waiters = append(e.waiters, w)
	t.mu.Unlock()

	select {
	case <-w.ready:
		return &Handle{name: name, token: token}, nil
	case <-ctx.Done():
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e.holder == token {
		// Granted while giving up; pass it on.
		t.handOffLocked(name, e)
		return nil, ctx.Err()
	}
	for i, other := range e.waiters {
		if other == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			break
		}
	}
	return nil, ctx.Err()
}

// Release implements Locker.
func (t *Table) Release(_ context.Context, h *Handle) error {
	if h == nil {
		return ErrInvalidHandle
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.locks[h.name]
	if !ok || e.holder != h.token {
		return ErrInvalidHandle
	}
	t.handOffLocked(h.name, e)
	return nil
}

// Held reports whether name is currently locked.
func (t *Table) Held(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.locks[name]
	return ok
}

func (t *Table) handOffLocked(name string, e *entry) {
	if len(e.waiters) == 0 {
		delete(t.locks, name)
		return
	}
	next := e.waiters[0]
	e.waiters[0] = nil
	e.waiters = e.waiters[1:]
	e.holder = next.token
	close(next.ready)
}
