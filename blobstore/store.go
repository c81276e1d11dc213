// Package blobstore abstracts where published segment files live.
//
// Segment files are immutable once published, so the surface is read-only:
// open a blob, list the published names. Implementations must be safe for
// concurrent use.
//
// Built-in implementations:
//
//   - LocalStore: local filesystem, memory-mapped
//   - MemoryStore: in-memory, for tests
//   - CachingStore: wraps a remote store, downloads into a local cache
//     directory before mapping
//   - s3.Store: Amazon S3 range reads
//   - minio.Store: MinIO and other S3-compatible object stores
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is read-only access to a set of immutable blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// List returns the names of all blobs in the store.
	List(ctx context.Context) ([]string, error)
}

// Blob is a read-only handle to one blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs whose content is directly
// addressable. The slice is valid until the Blob is closed; this is a
// zero-copy operation.
type Mappable interface {
	Bytes() []byte
}

// Downloader is an optional interface for Stores that can fetch a whole
// blob more efficiently than sequential ReadAt calls.
type Downloader interface {
	// Download writes the named blob to w and returns the byte count.
	Download(ctx context.Context, name string, w io.WriterAt) (int64, error)
}
