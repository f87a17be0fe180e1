package blobstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/blobdir/internal/resource"
	"golang.org/x/sync/errgroup"
)

// CopyOptions configures Copy.
type CopyOptions struct {
	// Prefix restricts the copy to names with this prefix.
	Prefix string
	// Concurrency is the number of blobs moved in parallel. Defaults to 4.
	Concurrency int
	// BytesPerSec limits throughput. 0 means unlimited.
	BytesPerSec int64
	// Mirror deletes names under Prefix in dst that are absent from src.
	Mirror bool
	// OnCopied is called after each blob was written to dst. It may be called
	// concurrently.
	OnCopied func(name string, size int)
}

// CopyStats summarizes a Copy.
type CopyStats struct {
	Copied  int
	Deleted int
	Bytes   int64
}

// Copy transfers every blob under opts.Prefix from src to dst.
//
// Each blob is written with a single Put, so dst never holds partial content.
// Copy is not a snapshot: blobs mutated in src while copying may be copied
// in either state.
func Copy(ctx context.Context, dst, src BlobStore, opts CopyOptions) (CopyStats, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	names, err := src.List(ctx, opts.Prefix)
	if err != nil {
		return CopyStats{}, fmt.Errorf("list source: %w", err)
	}

	rc := resource.NewController(resource.Config{
		MaxConcurrentTransfers: int64(opts.Concurrency),
		IOLimitBytesPerSec:     opts.BytesPerSec,
	})

	var (
		copied atomic.Int64
		bytes  atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		if err := rc.AcquireTransfer(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer rc.ReleaseTransfer()

			data, err := src.Get(gctx, name)
			if err != nil {
				if IsNotFound(err) {
					return nil // deleted since List
				}
				return fmt.Errorf("read %q: %w", name, err)
			}
			if err := rc.WaitIO(gctx, len(data)); err != nil {
				return err
			}
			if err := dst.Put(gctx, name, data); err != nil {
				return fmt.Errorf("write %q: %w", name, err)
			}
			copied.Add(1)
			bytes.Add(int64(len(data)))
			if opts.OnCopied != nil {
				opts.OnCopied(name, len(data))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CopyStats{Copied: int(copied.Load()), Bytes: bytes.Load()}, err
	}
	if err := ctx.Err(); err != nil {
		return CopyStats{Copied: int(copied.Load()), Bytes: bytes.Load()}, err
	}

	stats := CopyStats{Copied: int(copied.Load()), Bytes: bytes.Load()}
	if !opts.Mirror {
		return stats, nil
	}

	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		keep[name] = struct{}{}
	}
	existing, err := dst.List(ctx, opts.Prefix)
	if err != nil {
		return stats, fmt.Errorf("list destination: %w", err)
	}
	for _, name := range existing {
		if _, ok := keep[name]; ok {
			continue
		}
		if err := dst.Delete(ctx, name); err != nil {
			return stats, fmt.Errorf("delete %q: %w", name, err)
		}
		stats.Deleted++
	}
	return stats, nil
}
