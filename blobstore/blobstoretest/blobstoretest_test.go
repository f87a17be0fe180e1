package blobstoretest

import (
	"testing"

	"github.com/hupe1980/blobdir/blobstore"
	"github.com/hupe1980/blobdir/internal/compress"
)

func TestMemoryStore(t *testing.T) {
	Run(t, func(t *testing.T) blobstore.BlobStore {
		return blobstore.NewMemoryStore()
	})
}

func TestCachingStore(t *testing.T) {
	Run(t, func(t *testing.T) blobstore.BlobStore {
		return blobstore.NewCachingStore(blobstore.NewMemoryStore(), 1<<20, nil)
	})
}

func TestCompressingStore(t *testing.T) {
	Run(t, func(t *testing.T) blobstore.BlobStore {
		return blobstore.NewCompressingStore(blobstore.NewMemoryStore(), compress.TypeZSTD)
	})
}

func TestLocalStore(t *testing.T) {
	Run(t, func(t *testing.T) blobstore.BlobStore {
		return blobstore.NewLocalStore(t.TempDir())
	}, TextPathsOnly())
}
