// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage is the interface for uploading, retrieving, and signing objects.
type Storage interface {
	// Upload streams data to the store under the given key. contentDisposition
	// may be empty when no download filename should be recorded on the object.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType, contentDisposition string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// SignedGetURL issues a time-limited download URL. When contentDisposition
	// is non-empty the store is asked to override the response header, so the
	// download presents the original filename instead of the opaque key.
	SignedGetURL(ctx context.Context, key string, ttl time.Duration, contentDisposition string) (string, error)
	// SignedPutURL issues a time-limited URL allowing one direct client PUT.
	SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// PublicURL constructs the browser-accessible URL for a given key, or ""
	// when no public base is configured.
	PublicURL(key string) string
}
