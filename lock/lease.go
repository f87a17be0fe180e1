package lock

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LeaseStore persists lock leases shared between processes.
//
// A lease names its holder and expires unless renewed, so a crashed
// process cannot hold a lock forever.
type LeaseStore interface {
	// TryAcquire takes the lease if it is free, expired, or already held by holder.
	TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	// Renew extends a lease. It returns false if holder no longer owns it.
	Renew(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	// Release drops the lease if holder owns it.
	Release(ctx context.Context, name, holder string) error
}

// LeaseOption configures a LeaseLocker.
type LeaseOption func(*leaseOptions)

type leaseOptions struct {
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// WithTTL sets the lease duration. Leases are renewed every TTL/3.
func WithTTL(ttl time.Duration) LeaseOption {
	return func(o *leaseOptions) {
		o.ttl = ttl
	}
}

// WithRetryInterval sets how often a blocking Acquire polls the store.
func WithRetryInterval(d time.Duration) LeaseOption {
	return func(o *leaseOptions) {
		o.retry = d
	}
}

// WithLeaseLogger sets the logger used to report lost leases.
func WithLeaseLogger(l *slog.Logger) LeaseOption {
	return func(o *leaseOptions) {
		o.logger = l
	}
}

// LeaseLocker is a Locker that coordinates processes through a LeaseStore.
//
// Goroutines of the same process first queue on a local Table, so only one
// of them polls the store per lock name.
type LeaseLocker struct {
	store LeaseStore
	local *Table
	opts  leaseOptions

	mu     sync.Mutex
	held   map[string]*lease
	closed bool
}

type lease struct {
	handle *Handle
	cancel context.CancelFunc
	done   chan struct{}
	lost   atomic.Bool
}

// NewLeaseLocker creates a LeaseLocker on store.
func NewLeaseLocker(store LeaseStore, optFns ...LeaseOption) *LeaseLocker {
	opts := leaseOptions{
		ttl:    30 * time.Second,
		retry:  100 * time.Millisecond,
		logger: slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LeaseLocker{
		store: store,
		local: NewTable(),
		opts:  opts,
		held:  make(map[string]*lease),
	}
}

// Acquire implements Locker.
func (l *LeaseLocker) Acquire(ctx context.Context, name string, blocking bool) (*Handle, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}

	h, err := l.local.Acquire(ctx, name, blocking)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Every(l.opts.retry), 1)
	for {
		ok, err := l.store.TryAcquire(ctx, name, h.token, l.opts.ttl)
		if err != nil {
			_ = l.local.Release(ctx, h)
			return nil, err
		}
		if ok {
			break
		}
		if !blocking {
			_ = l.local.Release(ctx, h)
			return nil, ErrWouldBlock
		}
		if err := limiter.Wait(ctx); err != nil {
			_ = l.local.Release(context.WithoutCancel(ctx), h)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
	}

	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ls := &lease{handle: h, cancel: cancel, done: make(chan struct{})}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		cancel()
		_ = l.store.Release(context.WithoutCancel(ctx), name, h.token)
		_ = l.local.Release(ctx, h)
		return nil, ErrClosed
	}
	l.held[h.token] = ls
	l.mu.Unlock()

	go l.heartbeat(hbCtx, ls)
	return h, nil
}

// Release implements Locker.
func (l *LeaseLocker) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return ErrInvalidHandle
	}

	l.mu.Lock()
	ls, ok := l.held[h.token]
	if ok {
		delete(l.held, h.token)
	}
	l.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}

	return l.release(ctx, ls)
}

func (l *LeaseLocker) release(ctx context.Context, ls *lease) error {
	ls.cancel()
	<-ls.done

	err := l.store.Release(ctx, ls.handle.name, ls.handle.token)
	_ = l.local.Release(ctx, ls.handle)
	return err
}

// Close releases every lease still held.
func (l *LeaseLocker) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	held := l.held
	l.held = make(map[string]*lease)
	l.mu.Unlock()

	var firstErr error
	for _, ls := range held {
		if err := l.release(context.Background(), ls); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *LeaseLocker) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *LeaseLocker) heartbeat(ctx context.Context, ls *lease) {
	defer close(ls.done)

	interval := l.opts.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ok, err := l.store.Renew(ctx, ls.handle.name, ls.handle.token, l.opts.ttl)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.opts.logger.Warn("lease renewal failed", "lock", ls.handle.name, "error", err)
			continue
		}
		if !ok {
			ls.lost.Store(true)
			l.opts.logger.Error("lease lost", "lock", ls.handle.name)
			return
		}
	}
}

// Lost reports whether the lease behind h expired before it was released.
func (l *LeaseLocker) Lost(h *Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ls, ok := l.held[h.token]
	return ok && ls.lost.Load()
}
