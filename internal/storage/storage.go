package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage holds the bytes behind media items: originals and
// thumbnails. Metadata lives in the repository layer.

// ErrObjectNotFound is returned by Get and Stat when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// PutObjectOptions define optional parameters for uploading objects.
// Size is the exact byte count, or -1 when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object store contract shared by the MinIO and local disk
// backends. All reads stream; callers close the returned reader.
type Storage interface {
	// Put uploads an object under the given key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens an object for streaming. Missing objects yield ErrObjectNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat returns object info without opening the content.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a URL the client can fetch the object from.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
