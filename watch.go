package blobdir

import (
	"context"
	"fmt"
	"sync"
)

// Op identifies the kind of mutation reported to watchers.
type Op int

const (
	// OpPut means the path was created or replaced.
	OpPut Op = iota + 1
	// OpDelete means the path was removed.
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Event describes a committed mutation.
type Event struct {
	Op   Op
	Path string
}

// WatchFunc is called after every committed mutation. It runs while the
// Directory's write lock is held, so it must not mutate the Directory.
type WatchFunc func(ctx context.Context, ev Event) error

// WatchHandle unsubscribes a watcher.
type WatchHandle struct {
	d    *Directory
	id   uint64
	once sync.Once
}

// Close stops delivery to the watcher. It is safe to call more than once,
// including from inside the watcher itself.
func (h *WatchHandle) Close() error {
	h.once.Do(func() {
		h.d.removeWatcher(h.id)
	})
	return nil
}

type watcher struct {
	id uint64
	fn WatchFunc
}

type watchers struct {
	mu     sync.RWMutex
	nextID uint64
	list   []watcher
}

func (w *watchers) add(fn WatchFunc) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	w.list = append(w.list, watcher{id: w.nextID, fn: fn})
	return w.nextID
}

func (w *watchers) remove(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, wt := range w.list {
		if wt.id == id {
			w.list = append(w.list[:i:i], w.list[i+1:]...)
			return
		}
	}
}

func (w *watchers) snapshot() []watcher {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.list
}

// Watch registers fn to be called after every committed Put or Delete.
// Watchers run synchronously, in registration order, inside the critical
// section that committed the mutation. A watcher that fails or panics is
// logged; the mutation stays committed and later watchers still run.
func (d *Directory) Watch(fn WatchFunc) *WatchHandle {
	return &WatchHandle{d: d, id: d.watchers.add(fn)}
}

func (d *Directory) removeWatcher(id uint64) {
	d.watchers.remove(id)
}

// notify must be called with d.mu held.
func (d *Directory) notify(ctx context.Context, ev Event) {
	for _, w := range d.watchers.snapshot() {
		if err := d.callWatcher(ctx, w.fn, ev); err != nil {
			d.logger.LogWatcherFailure(ctx, ev, err)
		}
	}
}

func (d *Directory) callWatcher(ctx context.Context, fn WatchFunc, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("watcher panic: %v", r)
		}
	}()
	return fn(ctx, ev)
}
