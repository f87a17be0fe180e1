package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/blobdir"
	"github.com/hupe1980/blobdir/blobstore/sqlite"
)

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <path> [file]",
		Short: "Write a file",
		Long: `Write a file in one atomic commit. The content is read from file,
or from stdin when file is omitted or "-".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				src = f
			}

			data, err := io.ReadAll(src)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			d, err := a.openDir(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			return d.AtomicWrite(cmd.Context(), args[0], data)
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			data, err := d.AtomicRead(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	return cmd
}

func newLsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}

			d, err := a.openDir(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			names, err := d.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			long, _ := cmd.Flags().GetBool("long")
			if !long {
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			for _, name := range names {
				size, err := sizeOf(cmd.Context(), d, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t\n", size, name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolP("long", "l", false, "show sizes")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Delete files",
		Long:  `Delete files. Missing paths are ignored. With -r every argument is a prefix.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := a.openDir(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			paths := args
			if recursive, _ := cmd.Flags().GetBool("recursive"); recursive {
				paths = nil
				for _, prefix := range args {
					names, err := d.List(ctx, prefix)
					if err != nil {
						return err
					}
					paths = append(paths, names...)
				}
			}

			for _, p := range paths {
				if err := d.Delete(ctx, p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolP("recursive", "r", false, "treat arguments as prefixes")
	return cmd
}

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show the size of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			size, err := sizeOf(cmd.Context(), d, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", args[0], size)
			return nil
		},
	}
}

// sizeOf asks SQLite for the length when content is stored uncompressed
// and reads the file otherwise.
func sizeOf(ctx context.Context, d *blobdir.Directory, path string) (int64, error) {
	if s, ok := d.Store().(*sqlite.Store); ok {
		return s.Size(ctx, path)
	}
	data, err := d.AtomicRead(ctx, path)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}
