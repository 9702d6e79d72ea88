// Package blobstore abstracts over the object-storage backends a filing
// archive can be persisted to: S3, Azure Blob, Azure Data Lake Gen2, and
// the local filesystem. Callers depend only on the Store interface; the
// concrete backend is selected at wiring time from configuration.
package blobstore

import "context"

// Store is the capability set every backend implements. Paths are
// UNIX-style opaque keys; a leading "/" is stripped on writes.
//
// deflate, where present, means the stored bytes are zlib-compressed at
// zlib's default level (the level is not configurable); writers deflate
// and readers inflate symmetrically. Only the s3 and azure-blob backends honor it — local
// and azure-datalake store bytes verbatim regardless of the flag, since
// their contract promises byte-identical storage (see SPEC_FULL.md §4.1).
type Store interface {
	// Exists reports whether an object is present at path. A missing key
	// returns (false, nil); only transport/backend errors return a
	// non-nil error.
	Exists(ctx context.Context, path string) (bool, error)

	// Get returns the full, inflated-if-needed contents of path.
	Get(ctx context.Context, path string, deflate bool) ([]byte, error)

	// GetRange returns the [start, end) byte range of the inflated
	// buffer at path. Backends may implement this as a full fetch
	// followed by slicing.
	GetRange(ctx context.Context, path string, start, end int64, deflate bool) ([]byte, error)

	// GetToFile streams path's inflated contents into localPath.
	GetToFile(ctx context.Context, path, localPath string, deflate bool) error

	// Put writes data to path, deflating first when deflate is true and
	// the backend honors compression, replacing any existing object.
	Put(ctx context.Context, path string, data []byte, deflate bool) error

	// PutFile streams localPath's contents to path.
	PutFile(ctx context.Context, path, localPath string, deflate bool) error

	// Delete removes the object at path. Deleting a missing object is
	// not an error.
	Delete(ctx context.Context, path string) error

	// List returns every object key recursively under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// ListFolders returns the logical "/"-delimited subdirectories
	// directly under prefix, trailing-slash terminated, up to limit
	// entries (0 means unlimited).
	ListFolders(ctx context.Context, prefix string, limit int) ([]string, error)
}

// stripLeadingSlash normalizes a caller-supplied path per the shared
// "leading / is stripped on writes" contract.
func stripLeadingSlash(path string) string {
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}
