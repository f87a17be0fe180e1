package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseDir is the configuration directory below the home directory.
	DefaultBaseDir = ".blobdir"
	// DefaultConfigFile is the configuration file name.
	DefaultConfigFile = "config.yaml"
)

// Config holds the CLI settings.
type Config struct {
	// Database is the SQLite database file.
	Database string `yaml:"database"`

	// Table is the blob table name (optional, defaults to "blobs").
	Table string `yaml:"table,omitempty"`

	// Compression is none, lz4 or zstd. It must match how the table was written.
	Compression string `yaml:"compression,omitempty"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level,omitempty"`

	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout,omitempty"`

	// LockTTL is the lease duration of the writer lock taken by import.
	LockTTL time.Duration `yaml:"lock_ttl,omitempty"`

	S3    S3Config    `yaml:"s3,omitempty"`
	Minio MinioConfig `yaml:"minio,omitempty"`
}

// S3Config configures s3:// targets.
type S3Config struct {
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// MinioConfig configures minio:// targets.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
}

func defaultConfig() *Config {
	return &Config{
		Compression: "none",
		LogLevel:    "warn",
		LockTTL:     30 * time.Second,
	}
}

// DefaultConfigPath returns ~/.blobdir/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, DefaultConfigFile), nil
}

// LoadConfig reads the config file at path on top of the defaults.
// Environment variables in the file are expanded, so secrets can be
// written as ${MINIO_SECRET_KEY}. A missing file is an error only if
// required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
