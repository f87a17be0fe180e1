package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/blobdir"
	"github.com/hupe1980/blobdir/blobstore/sqlite"
)

// app carries the state shared by all commands.
type app struct {
	configPath string
	cfg        *Config
	logger     *blobdir.Logger
}

// Execute runs the CLI until it finishes or receives SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "blobdir",
		Short: "Inspect and move files stored in a blobdir SQLite table",
		Long: `blobdir works on the virtual directory a search index keeps in a
SQLite table. Files can be read, written, listed and removed, and whole
directories copied to and from object stores or embedded key-value stores.

Example:
  blobdir --db app.db ls segment_
  blobdir --db app.db export s3://backups/index/2024-05-01
  blobdir --db restore.db import badger:///var/lib/index-copy`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.blobdir/config.yaml)")
	pf.String("db", "", "SQLite database file")
	pf.String("table", "", "blob table name")
	pf.String("compression", "", "content compression: none, lz4, zstd")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newLsCmd(a),
		newRmCmd(a),
		newStatCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	path, required := a.configPath, true
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		path, required = p, false
	}

	cfg, err := LoadConfig(path, required)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"db":          &cfg.Database,
		"table":       &cfg.Table,
		"compression": &cfg.Compression,
		"log-level":   &cfg.LogLevel,
	} {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = &blobdir.Logger{Logger: newLogger(cmd.ErrOrStderr(), level)}
	return nil
}

// openDir opens the configured database.
func (a *app) openDir(ctx context.Context, extra ...blobdir.Option) (*blobdir.Directory, error) {
	if a.cfg.Database == "" {
		return nil, errors.New("no database given, use --db or set database in the config file")
	}

	compression, err := blobdir.ParseCompression(a.cfg.Compression)
	if err != nil {
		return nil, err
	}

	var storeOpts []sqlite.Option
	if a.cfg.Table != "" {
		storeOpts = append(storeOpts, sqlite.WithTable(a.cfg.Table))
	}
	if a.cfg.BusyTimeout > 0 {
		storeOpts = append(storeOpts, sqlite.WithBusyTimeout(a.cfg.BusyTimeout))
	}

	opts := []blobdir.Option{
		blobdir.WithLogger(a.logger),
		blobdir.WithCompression(compression),
		blobdir.WithStoreOptions(storeOpts...),
	}
	return blobdir.Open(ctx, a.cfg.Database, append(opts, extra...)...)
}
