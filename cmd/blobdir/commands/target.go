package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hupe1980/blobdir/blobstore"
	badgerstore "github.com/hupe1980/blobdir/blobstore/badger"
	miniostore "github.com/hupe1980/blobdir/blobstore/minio"
	pebblestore "github.com/hupe1980/blobdir/blobstore/pebble"
	s3store "github.com/hupe1980/blobdir/blobstore/s3"
)

// target is a parsed export or import location.
type target struct {
	Scheme string
	// Bucket is set for s3 and minio.
	Bucket string
	// Path is the key prefix for s3 and minio and the directory for
	// badger, pebble and file.
	Path string
}

func (t target) String() string {
	if t.Bucket != "" {
		return fmt.Sprintf("%s://%s/%s", t.Scheme, t.Bucket, t.Path)
	}
	return fmt.Sprintf("%s://%s", t.Scheme, t.Path)
}

// parseTarget accepts s3://bucket/prefix, minio://bucket/prefix,
// badger://dir, pebble://dir and file://dir.
func parseTarget(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("invalid target %q: %w", raw, err)
	}

	t := target{Scheme: u.Scheme}
	switch u.Scheme {
	case "s3", "minio":
		if u.Host == "" {
			return target{}, fmt.Errorf("target %q: missing bucket", raw)
		}
		t.Bucket = u.Host
		t.Path = strings.TrimPrefix(u.Path, "/")
	case "badger", "pebble", "file":
		t.Path = u.Host + u.Path
		if t.Path == "" {
			return target{}, fmt.Errorf("target %q: missing directory", raw)
		}
	default:
		return target{}, fmt.Errorf("target %q: unsupported scheme %q (want s3, minio, badger, pebble or file)", raw, u.Scheme)
	}
	return t, nil
}

// openTarget opens t. The returned close function must be called when done.
func (a *app) openTarget(ctx context.Context, t target, create bool) (blobstore.BlobStore, func() error, error) {
	noop := func() error { return nil }

	switch t.Scheme {
	case "s3":
		var opts []s3store.Option
		opts = append(opts, s3store.WithPrefix(t.Path))
		if a.cfg.S3.Region != "" {
			opts = append(opts, s3store.WithRegion(a.cfg.S3.Region))
		}
		if a.cfg.S3.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(a.cfg.S3.Endpoint))
		}
		s, err := s3store.New(ctx, t.Bucket, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "minio":
		mc := a.cfg.Minio
		if mc.Endpoint == "" {
			return nil, nil, fmt.Errorf("%s: minio endpoint not configured", t)
		}
		s, err := miniostore.Dial(ctx, miniostore.Config{
			Endpoint:     mc.Endpoint,
			AccessKey:    mc.AccessKey,
			SecretKey:    mc.SecretKey,
			Region:       mc.Region,
			Secure:       mc.Secure,
			Bucket:       t.Bucket,
			Prefix:       t.Path,
			CreateBucket: create,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "badger":
		s, err := badgerstore.Open(badgerstore.Options{
			Dir:    t.Path,
			Logger: a.logger.WithComponent("badger").Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "pebble":
		s, err := pebblestore.Open(pebblestore.Options{Dir: t.Path})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "file":
		return blobstore.NewLocalStore(t.Path), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported target %s", t)
	}
}
