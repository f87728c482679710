// Package objstore provides the per-tier object storage gateway: a thin,
// stateless layer that routes byte operations to one of two bucket-bound
// clients (hot and cold) and owns URL construction for both visibility
// levels.
//
// The Client interface is the transport boundary. HTTPClient speaks the
// S3 REST dialect over HTTPS with SigV4 request signing; MemClient is a
// map-backed stand-in for tests and embedded use.
package objstore

import (
	"context"
	"time"
)

// RemoteObject is a read-only reflection of what the storage backend
// reports about one object. It is never persisted.
type RemoteObject struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	StorageClass string    `json:"storage_class,omitempty"`
}

// Client is the transport capability for a single bucket on a single
// endpoint. Implementations are bound to their bucket and credentials at
// construction.
type Client interface {
	// Put uploads data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get downloads the object at key. Returns ErrObjectNotFound when the
	// backend reports the key missing; other transport errors propagate
	// untranslated.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object at key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Head fetches object metadata without the body. Returns
	// ErrObjectNotFound when the key is missing.
	Head(ctx context.Context, key string) (RemoteObject, error)

	// List returns every object under prefix, following backend pagination
	// until exhausted.
	List(ctx context.Context, prefix string) ([]RemoteObject, error)

	// PresignGet returns a time-limited signed GET URL for key, valid for
	// expires from the at timestamp. No I/O is performed.
	PresignGet(key string, expires time.Duration, at time.Time) (string, error)

	// PublicURL returns the deterministic unauthenticated URL for key.
	// No I/O is performed.
	PublicURL(key string) string
}
