package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/blobdir"
	"github.com/hupe1980/blobdir/blobstore"
)

func addCopyFlags(cmd *cobra.Command) {
	cmd.Flags().String("prefix", "", "only copy files with this prefix")
	cmd.Flags().Int("concurrency", 4, "files copied in parallel")
	cmd.Flags().Int64("rate", 0, "throughput limit in bytes per second (0 = unlimited)")
	cmd.Flags().Bool("mirror", false, "delete files in the destination that are missing in the source")
}

func copyOptions(cmd *cobra.Command, a *app) blobstore.CopyOptions {
	prefix, _ := cmd.Flags().GetString("prefix")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	rate, _ := cmd.Flags().GetInt64("rate")
	mirror, _ := cmd.Flags().GetBool("mirror")

	return blobstore.CopyOptions{
		Prefix:      prefix,
		Concurrency: concurrency,
		BytesPerSec: rate,
		Mirror:      mirror,
		OnCopied: func(name string, size int) {
			a.logger.Debug("copied", "path", name, "size", size)
		},
	}
}

func printStats(cmd *cobra.Command, stats blobstore.CopyStats) {
	fmt.Fprintf(cmd.OutOrStdout(), "copied %d files (%d bytes), deleted %d\n",
		stats.Copied, stats.Bytes, stats.Deleted)
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <target>",
		Short: "Copy files to another store",
		Long: `Copy files to s3://bucket/prefix, minio://bucket/prefix, badger://dir,
pebble://dir or file://dir. Each file is copied with a single write.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := parseTarget(args[0])
			if err != nil {
				return err
			}

			d, err := a.openDir(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			dst, closeDst, err := a.openTarget(ctx, t, true)
			if err != nil {
				return err
			}
			defer func() { _ = closeDst() }()

			stats, err := blobstore.Copy(ctx, dst, d.Store(), copyOptions(cmd, a))
			if err != nil {
				return err
			}
			a.logger.Info("export finished", "target", t.String(), "files", stats.Copied)
			printStats(cmd, stats)
			return nil
		},
	}
	addCopyFlags(cmd)
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <source>",
		Short: "Copy files from another store",
		Long: `Copy files from s3://bucket/prefix, minio://bucket/prefix, badger://dir,
pebble://dir or file://dir into the database.

The writer lock is held as a lease for the duration of the import, so
processes that open the database with lease locks do not write at the
same time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := parseTarget(args[0])
			if err != nil {
				return err
			}

			d, err := a.openDir(ctx, blobdir.WithLeaseLocks(a.cfg.LockTTL))
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			wait, _ := cmd.Flags().GetBool("wait")
			lockName, _ := cmd.Flags().GetString("lock")
			h, err := d.AcquireLock(ctx, lockName, wait)
			if err != nil {
				return fmt.Errorf("lock %q: %w", lockName, err)
			}
			defer func() { _ = d.ReleaseLock(context.WithoutCancel(ctx), h) }()

			src, closeSrc, err := a.openTarget(ctx, t, false)
			if err != nil {
				return err
			}
			defer func() { _ = closeSrc() }()

			stats, err := blobstore.Copy(ctx, d.Blobs(), src, copyOptions(cmd, a))
			if err != nil {
				return err
			}
			a.logger.Info("import finished", "source", t.String(), "files", stats.Copied)
			printStats(cmd, stats)
			return nil
		},
	}
	addCopyFlags(cmd)
	cmd.Flags().String("lock", "writer", "name of the lock held during the import")
	cmd.Flags().Bool("wait", false, "wait for the lock instead of failing")
	return cmd
}
