// Package blobstore implements the blob store client: content-addressed-by-path
// object storage with put, batch remove, and signed read URLs.
package blobstore

import (
	"context"
	"time"
)

// Store is the blob store contract used by the upload pipeline.
//
// Put failures wrap common.ErrBlobWriteFailed and Remove failures wrap
// common.ErrBlobDeleteFailed so callers can classify without knowing the
// backend. SignedURL reports common.ErrRecordNotFound when no object exists
// at the path.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, paths []string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}
