package sqlite

import (
	"context"
	"time"

	"github.com/hupe1980/blobdir/blobstore"
)

// TryAcquire records holder as the owner of the named lease until ttl from
// now. It succeeds if the lease is free, expired, or already owned by holder.
func (s *Store) TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	now := s.now()
	expires := now.Add(ttl).UnixMilli()

	s.wmu.Lock()
	defer s.wmu.Unlock()

	res, err := s.db.ExecContext(ctx, s.q.acquire, name, holder, expires, now.UnixMilli())
	if err != nil {
		return false, blobstore.Unavailable("acquire lease", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, blobstore.Unavailable("acquire lease", name, err)
	}
	return n == 1, nil
}

// Renew extends a lease held by holder. It returns false if the lease was
// lost to another holder.
func (s *Store) Renew(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	expires := s.now().Add(ttl).UnixMilli()

	s.wmu.Lock()
	defer s.wmu.Unlock()

	res, err := s.db.ExecContext(ctx, s.q.renew, expires, name, holder)
	if err != nil {
		return false, blobstore.Unavailable("renew lease", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, blobstore.Unavailable("renew lease", name, err)
	}
	return n == 1, nil
}

// Release drops the lease if holder still owns it.
func (s *Store) Release(ctx context.Context, name, holder string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.db.ExecContext(ctx, s.q.release, name, holder); err != nil {
		return blobstore.Unavailable("release lease", name, err)
	}
	return nil
}
