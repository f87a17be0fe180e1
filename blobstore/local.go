package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// tmpDirName holds in-flight writes below the root. Names starting with it
// are reserved.
const tmpDirName = ".tmp"

// ErrInvalidName is returned for names a LocalStore cannot map to a file:
// absolute paths, paths leaving the root, and reserved names.
var ErrInvalidName = errors.New("blobstore: invalid name")

// LocalStore implements BlobStore with one file per blob below a root
// directory. A name's "/" separators become subdirectories.
//
// Put writes to a temporary file and renames it into place, so readers see
// the old or the new file. A name cannot be both a blob and the directory
// of another blob.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
// The directory is created on first Put.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(name string) (string, error) {
	local, err := filepath.Localize(name)
	if err != nil || name == "." || name == tmpDirName || strings.HasPrefix(name, tmpDirName+"/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.root, local), nil
}

// Get reads the file for name.
func (s *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		// A directory is a name prefix, not a blob.
		if info, serr := os.Stat(p); serr == nil && info.IsDir() {
			return nil, ErrNotFound
		}
		return nil, Unavailable("get", name, err)
	}
	return data, nil
}

// Put replaces the file for name through a temp file and rename.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return Unavailable("put", name, err)
	}

	tmpDir := filepath.Join(s.root, tmpDirName)
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return Unavailable("put", name, fmt.Errorf("failed to create tmp directory: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return Unavailable("put", name, fmt.Errorf("failed to create directory: %w", err))
	}

	f, err := os.CreateTemp(tmpDir, "*.tmp")
	if err != nil {
		return Unavailable("put", name, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := f.Name()

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpPath, p)
	}
	if err != nil {
		return Unavailable("put", name, errors.Join(err, os.Remove(tmpPath)))
	}
	return nil
}

// Delete removes the file for name. A missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Unavailable("delete", name, err)
	}
	return nil
}

// List walks the root and returns the sorted names with the given prefix.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.root {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if d.IsDir() {
			if name == tmpDirName {
				return fs.SkipDir
			}
			return nil
		}
		if HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, Unavailable("list", prefix, err)
	}

	sort.Strings(names)
	return names, nil
}

// Exists reports whether the file for name exists.
func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	p, err := s.path(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, Unavailable("exists", name, err)
	}
	return !info.IsDir(), nil
}
