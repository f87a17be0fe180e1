package blobdir

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/hupe1980/blobdir/blobstore"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	notFound := fmt.Errorf("open: %w", blobstore.ErrNotFound)
	assert.True(t, IsNotFound(notFound))
	assert.ErrorIs(t, notFound, fs.ErrNotExist)

	unavailable := blobstore.Unavailable("get", "a", errors.New("database is locked"))
	assert.ErrorIs(t, unavailable, ErrStorageUnavailable)
	assert.False(t, IsNotFound(unavailable))

	rangeErr := &RangeError{Path: "a", Offset: 10, Length: 4, Size: 8}
	assert.ErrorIs(t, rangeErr, ErrOutOfRange)
	assert.Equal(t, `blobdir: read "a" [10, +4) out of range (size 8)`, rangeErr.Error())
}
