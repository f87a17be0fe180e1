package blobdir

import (
	"errors"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordRead is called after each OpenRead or AtomicRead.
	// size is the number of bytes materialized.
	RecordRead(size int, duration time.Duration, err error)

	// RecordWrite is called after each committed or failed Put.
	RecordWrite(size int, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordLock is called after each lock acquisition attempt.
	// wait is the time spent waiting for the lock.
	RecordLock(wait time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)     {}
func (NoopMetricsCollector) RecordLock(time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReadCount       atomic.Int64
	ReadMisses      atomic.Int64
	ReadErrors      atomic.Int64
	ReadBytes       atomic.Int64
	ReadTotalNanos  atomic.Int64
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteBytes      atomic.Int64
	WriteTotalNanos atomic.Int64
	DeleteCount     atomic.Int64
	DeleteErrors    atomic.Int64
	LockCount       atomic.Int64
	LockContended   atomic.Int64
	LockWaitNanos   atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(size int, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	switch {
	case err == nil:
		b.ReadBytes.Add(int64(size))
	case errors.Is(err, ErrNotFound):
		b.ReadMisses.Add(1)
	default:
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(size int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(int64(size))
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordLock implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLock(wait time.Duration, err error) {
	b.LockWaitNanos.Add(wait.Nanoseconds())
	if err != nil {
		b.LockContended.Add(1)
		return
	}
	b.LockCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:     b.ReadCount.Load(),
		ReadMisses:    b.ReadMisses.Load(),
		ReadErrors:    b.ReadErrors.Load(),
		ReadBytes:     b.ReadBytes.Load(),
		ReadAvgNanos:  avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		WriteCount:    b.WriteCount.Load(),
		WriteErrors:   b.WriteErrors.Load(),
		WriteBytes:    b.WriteBytes.Load(),
		WriteAvgNanos: avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		DeleteCount:   b.DeleteCount.Load(),
		DeleteErrors:  b.DeleteErrors.Load(),
		LockCount:     b.LockCount.Load(),
		LockContended: b.LockContended.Load(),
		LockWaitNanos: b.LockWaitNanos.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount     int64
	ReadMisses    int64
	ReadErrors    int64
	ReadBytes     int64
	ReadAvgNanos  int64
	WriteCount    int64
	WriteErrors   int64
	WriteBytes    int64
	WriteAvgNanos int64
	DeleteCount   int64
	DeleteErrors  int64
	LockCount     int64
	LockContended int64
	LockWaitNanos int64
}
