package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blobdir"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestCLI_FileCommands(t *testing.T) {
	setupHome(t)
	db := filepath.Join(t.TempDir(), "app.db")

	_, err := run(t, "segment data", "--db", db, "put", "segment_1.idx")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"segments":[1]}`), 0o600))
	_, err = run(t, "", "--db", db, "put", "meta.json", src)
	require.NoError(t, err)

	out, err := run(t, "", "--db", db, "get", "segment_1.idx")
	require.NoError(t, err)
	assert.Equal(t, "segment data", out)

	out, err = run(t, "", "--db", db, "ls")
	require.NoError(t, err)
	assert.Equal(t, "meta.json\nsegment_1.idx\n", out)

	out, err = run(t, "", "--db", db, "ls", "-l", "seg")
	require.NoError(t, err)
	assert.Contains(t, out, "12  segment_1.idx")

	out, err = run(t, "", "--db", db, "stat", "meta.json")
	require.NoError(t, err)
	assert.Equal(t, "meta.json\t16\n", out)

	_, err = run(t, "", "--db", db, "rm", "segment_1.idx", "missing")
	require.NoError(t, err)

	_, err = run(t, "", "--db", db, "get", "segment_1.idx")
	assert.ErrorIs(t, err, blobdir.ErrNotFound)
}

func TestCLI_GetToFile(t *testing.T) {
	setupHome(t)
	db := filepath.Join(t.TempDir(), "app.db")

	_, err := run(t, "payload", "--db", db, "put", "a")
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "a.out")
	_, err = run(t, "", "--db", db, "get", "a", "-o", dst)
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCLI_RecursiveRm(t *testing.T) {
	setupHome(t)
	db := filepath.Join(t.TempDir(), "app.db")

	for _, p := range []string{"seg_1/a", "seg_1/b", "seg_2/a"} {
		_, err := run(t, p, "--db", db, "put", p)
		require.NoError(t, err)
	}

	_, err := run(t, "", "--db", db, "rm", "-r", "seg_1/")
	require.NoError(t, err)

	out, err := run(t, "", "--db", db, "ls")
	require.NoError(t, err)
	assert.Equal(t, "seg_2/a\n", out)
}

func TestCLI_Compression(t *testing.T) {
	setupHome(t)
	db := filepath.Join(t.TempDir(), "app.db")

	_, err := run(t, strings.Repeat("abc", 1000), "--db", db, "--compression", "zstd", "put", "big")
	require.NoError(t, err)

	out, err := run(t, "", "--db", db, "--compression", "zstd", "stat", "big")
	require.NoError(t, err)
	assert.Equal(t, "big\t3000\n", out)
}

func TestCLI_ExportImport(t *testing.T) {
	for _, scheme := range []string{"badger", "pebble", "file"} {
		t.Run(scheme, func(t *testing.T) {
			setupHome(t)
			src := filepath.Join(t.TempDir(), "src.db")
			dst := filepath.Join(t.TempDir(), "dst.db")
			target := scheme + "://" + filepath.Join(t.TempDir(), "copy")

			for _, p := range []string{"a", "b", "c"} {
				_, err := run(t, "content "+p, "--db", src, "put", p)
				require.NoError(t, err)
			}

			out, err := run(t, "", "--db", src, "export", target)
			require.NoError(t, err)
			assert.Equal(t, "copied 3 files (27 bytes), deleted 0\n", out)

			_, err = run(t, "stale", "--db", dst, "put", "z")
			require.NoError(t, err)

			out, err = run(t, "", "--db", dst, "import", "--mirror", target)
			require.NoError(t, err)
			assert.Equal(t, "copied 3 files (27 bytes), deleted 1\n", out)

			out, err = run(t, "", "--db", dst, "ls")
			require.NoError(t, err)
			assert.Equal(t, "a\nb\nc\n", out)

			out, err = run(t, "", "--db", dst, "get", "b")
			require.NoError(t, err)
			assert.Equal(t, "content b", out)
		})
	}
}

func TestCLI_ImportLockHeld(t *testing.T) {
	setupHome(t)
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "app.db")

	d, err := blobdir.Open(ctx, db, blobdir.WithLeaseLocks(time.Minute))
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	h, err := d.AcquireLock(ctx, "writer", false)
	require.NoError(t, err)
	defer func() { _ = d.ReleaseLock(ctx, h) }()

	_, err = run(t, "", "--db", db, "import", "badger://"+t.TempDir())
	assert.ErrorIs(t, err, blobdir.ErrWouldBlock)
}

func TestCLI_ConfigFile(t *testing.T) {
	setupHome(t)
	home := os.Getenv("HOME")
	db := filepath.Join(t.TempDir(), "app.db")

	require.NoError(t, os.MkdirAll(filepath.Join(home, DefaultBaseDir), 0o700))
	cfg := "database: " + db + "\ntable: search_files\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, DefaultBaseDir, DefaultConfigFile), []byte(cfg), 0o600))

	_, err := run(t, "x", "put", "a")
	require.NoError(t, err)

	// The table from the config file is used, so a default-table open sees nothing.
	out, err := run(t, "", "--table", "blobs", "ls")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, "", "ls")
	require.NoError(t, err)
	assert.Equal(t, "a\n", out)
}

func TestCLI_Errors(t *testing.T) {
	setupHome(t)

	_, err := run(t, "", "ls")
	assert.ErrorContains(t, err, "no database given")

	_, err = run(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "ls")
	assert.ErrorContains(t, err, "failed to read config")

	_, err = run(t, "", "--db", "x.db", "--log-level", "loud", "ls")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = run(t, "", "--db", filepath.Join(t.TempDir(), "a.db"), "export", "ftp://host/x")
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_MINIO_SECRET", "s3cr3t")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: /var/lib/app.db
compression: lz4
busy_timeout: 2s
lock_ttl: 1m
minio:
  endpoint: localhost:9000
  access_key: admin
  secret_key: ${TEST_MINIO_SECRET}
`), 0o600))

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/app.db", cfg.Database)
	assert.Equal(t, "lz4", cfg.Compression)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "2s", cfg.BusyTimeout.String())
	assert.Equal(t, "1m0s", cfg.LockTTL.String())
	assert.Equal(t, "s3cr3t", cfg.Minio.SecretKey)

	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "none.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw     string
		want    target
		wantErr bool
	}{
		{raw: "s3://backups/index/daily", want: target{Scheme: "s3", Bucket: "backups", Path: "index/daily"}},
		{raw: "s3://backups", want: target{Scheme: "s3", Bucket: "backups"}},
		{raw: "minio://idx/", want: target{Scheme: "minio", Bucket: "idx"}},
		{raw: "badger:///var/lib/copy", want: target{Scheme: "badger", Path: "/var/lib/copy"}},
		{raw: "pebble://./copy", want: target{Scheme: "pebble", Path: "./copy"}},
		{raw: "file:///srv/export", want: target{Scheme: "file", Path: "/srv/export"}},
		{raw: "s3:///prefix", wantErr: true},
		{raw: "badger://", wantErr: true},
		{raw: "ftp://host/tmp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTarget(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
