package blobdir

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ReadHandle is an immutable, fully materialized view of a file as it was
// when opened. Later writes to the path do not affect it.
type ReadHandle struct {
	d    *Directory
	path string
	size int64
	snap atomic.Pointer[snapshot]
}

var (
	_ io.ReaderAt = (*ReadHandle)(nil)
	_ io.Closer   = (*ReadHandle)(nil)
)

// OpenRead materializes the current content of path. The handle must be
// closed to release its memory.
func (d *Directory) OpenRead(ctx context.Context, path string) (*ReadHandle, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	snap, err := d.snapshot(ctx, path)
	if err == nil {
		err = d.rc.AcquireMemory(int64(len(snap.data)))
	}

	size := 0
	if snap != nil {
		size = len(snap.data)
	}
	d.metrics.RecordRead(size, time.Since(start), err)
	d.logger.LogRead(ctx, path, size, err)
	if err != nil {
		return nil, err
	}

	h := &ReadHandle{d: d, path: path, size: int64(len(snap.data))}
	h.snap.Store(snap)
	return h, nil
}

// Path returns the path the handle was opened for.
func (h *ReadHandle) Path() string {
	return h.path
}

// Len returns the size of the snapshot in bytes.
func (h *ReadHandle) Len() int64 {
	return h.size
}

// ReadAt implements io.ReaderAt. An offset past the end fails with
// ErrOutOfRange; a read that reaches the end returns io.EOF.
func (h *ReadHandle) ReadAt(p []byte, off int64) (int, error) {
	snap := h.snap.Load()
	if snap == nil {
		return 0, ErrClosed
	}
	if off < 0 || off > h.size {
		return 0, &RangeError{Path: h.path, Offset: off, Length: int64(len(p)), Size: h.size}
	}

	n := copy(p, snap.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadBytes returns n bytes starting at off without copying. The returned
// slice is shared and must not be modified. The whole range must lie
// within the snapshot.
func (h *ReadHandle) ReadBytes(off, n int64) ([]byte, error) {
	snap := h.snap.Load()
	if snap == nil {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off > h.size || n > h.size-off {
		return nil, &RangeError{Path: h.path, Offset: off, Length: n, Size: h.size}
	}
	return snap.data[off : off+n : off+n], nil
}

// Bytes returns the whole snapshot. The slice must not be modified.
func (h *ReadHandle) Bytes() ([]byte, error) {
	return h.ReadBytes(0, h.size)
}

// Close releases the snapshot. Further reads fail with ErrClosed.
func (h *ReadHandle) Close() error {
	if h.snap.Swap(nil) == nil {
		return ErrClosed
	}
	h.d.rc.ReleaseMemory(h.size)
	return nil
}

// WriteHandle buffers appended bytes in memory. The buffer replaces the
// file in a single commit on Flush or Close, so readers never see a
// partially written file.
//
// Nothing is stored when the handle is opened; a handle closed without any
// Write creates an empty file.
type WriteHandle struct {
	d    *Directory
	ctx  context.Context
	path string

	mu        sync.Mutex
	buf       []byte
	reserved  int64
	dirty     bool
	published bool
	closed    bool
}

var (
	_ io.Writer = (*WriteHandle)(nil)
	_ io.Closer = (*WriteHandle)(nil)
)

// OpenWrite returns a new write buffer for path. ctx is used for the
// commits made by Flush and Close.
func (d *Directory) OpenWrite(ctx context.Context, path string) (*WriteHandle, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	return &WriteHandle{d: d, ctx: ctx, path: path}, nil
}

// Path returns the path the handle writes to.
func (w *WriteHandle) Path() string {
	return w.path
}

// Len returns the number of buffered bytes.
func (w *WriteHandle) Len() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int64(len(w.buf))
}

// Write appends p to the buffer. It performs no I/O.
func (w *WriteHandle) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	if err := w.d.rc.AcquireMemory(int64(len(p))); err != nil {
		return 0, err
	}
	w.reserved += int64(len(p))
	w.buf = append(w.buf, p...)
	w.dirty = true
	return len(p), nil
}

// Flush commits the current buffer, replacing the file. The handle stays
// open for further writes.
func (w *WriteHandle) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	return w.flushLocked()
}

func (w *WriteHandle) flushLocked() error {
	if w.d.closed.Load() {
		return ErrClosed
	}
	if err := w.d.put(w.ctx, w.path, w.buf); err != nil {
		return err
	}
	w.dirty = false
	w.published = true
	return nil
}

// Close commits the buffer unless it was already flushed unchanged, then
// releases it. The buffer is released even if the commit fails.
func (w *WriteHandle) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	w.closed = true
	defer w.releaseLocked()

	if w.dirty || !w.published {
		return w.flushLocked()
	}
	return nil
}

// Abort discards the buffer without committing it. Content published by
// an earlier Flush stays in place.
func (w *WriteHandle) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	w.closed = true
	w.releaseLocked()
	return nil
}

func (w *WriteHandle) releaseLocked() {
	w.d.rc.ReleaseMemory(w.reserved)
	w.reserved = 0
	w.buf = nil
}
