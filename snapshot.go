package blobdir

import (
	"runtime"
	"sync"
	"weak"
)

// snapshot is the immutable content of a path at the time it was read.
type snapshot struct {
	data []byte
}

// snapshotCache lets concurrent readers of the same path share one
// snapshot without keeping it alive after the last handle is dropped.
type snapshotCache struct {
	mu    sync.Mutex
	gen   uint64
	snaps map[string]weak.Pointer[snapshot]
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{snaps: make(map[string]weak.Pointer[snapshot])}
}

// get returns a live snapshot for path and the generation to pass to put.
func (c *snapshotCache) get(path string) (*snapshot, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wp, ok := c.snaps[path]; ok {
		if s := wp.Value(); s != nil {
			return s, c.gen
		}
		delete(c.snaps, path)
	}
	return nil, c.gen
}

// put publishes s unless a mutation happened since gen was observed.
// It returns the snapshot readers should use.
func (c *snapshotCache) put(path string, s *snapshot, gen uint64) *snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return s
	}
	if wp, ok := c.snaps[path]; ok {
		if existing := wp.Value(); existing != nil {
			return existing
		}
	}
	c.snaps[path] = weak.Make(s)
	runtime.AddCleanup(s, c.collect, path)
	return s
}

// invalidate forgets path. Must be called after the mutation committed.
func (c *snapshotCache) invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	delete(c.snaps, path)
}

func (c *snapshotCache) collect(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wp, ok := c.snaps[path]; ok && wp.Value() == nil {
		delete(c.snaps, path)
	}
}

func (c *snapshotCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}
