package storage

import (
	"context"
	"io"
)

// MaxKeyLength is the longest storage key accepted, matching the S3 object
// key limit.
const MaxKeyLength = 1024

// ObjectStorage defines the blob store operations needed by the relay.
// Reads and listings are deliberately absent; the relay only writes,
// derives URLs, and tolerates deletes of keys that no longer exist.
type ObjectStorage interface {
	// Put uploads an object, overwriting any existing object at key.
	// metadata is attached to the object as custom metadata tags.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error

	// PublicURL derives the publicly resolvable URL for a stored key.
	// Pure derivation, no I/O.
	PublicURL(key string) string

	// Delete removes an object. Deleting a nonexistent key succeeds
	// silently.
	Delete(ctx context.Context, key string) error
}
