// Package objstore defines the unified interface for S3-compatible
// object storage backends.
//
// All drivers (the built-in SigV4 HTTP client, the MinIO SDK adapter, …)
// implement the Store interface. Callers depend only on this package —
// never on a specific driver package.
//
// Usage:
//
//	cfg := objstore.EndpointConfig{Provider: objstore.ProviderMinIO, Endpoint: "localhost:9000", Bucket: "media"}
//	store, err := sigv4.New(cfg.Normalize(), creds, log)
//	if err != nil { ... }
//	defer store.Close()
//
//	objects, err := store.ListObjects(ctx, "photos/", 1000)
package objstore

import (
	"context"
	"time"
)

// Store is the single interface all object storage drivers must implement.
// A Store is bound to exactly one endpoint + bucket + credential set.
type Store interface {
	// ListObjects returns up to maxKeys objects whose key starts with
	// prefix. Folder marker keys (trailing "/") are never returned.
	ListObjects(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error)

	// Upload writes data to key with the given content type,
	// overwriting any existing object.
	Upload(ctx context.Context, key string, data []byte, contentType string) error

	// Delete removes the object at key. Deleting a missing key is not
	// an error on most providers.
	Delete(ctx context.Context, key string) error

	// TestConnection verifies the endpoint is reachable and the
	// credentials are accepted. Any driver error propagates unchanged.
	TestConnection(ctx context.Context) error

	// ObjectURL returns the direct-access URL for key. Pure
	// construction, no I/O.
	ObjectURL(key string) string

	// Close releases any held resources.
	Close() error
}

// ObjectInfo describes a single object stored in the bucket.
// Rebuilt fresh on every listing call and never persisted.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "images/photo.jpg").
	Key string

	// Size is the byte size of the object.
	Size int64

	// LastModified is when the object was last written.
	LastModified time.Time

	// ContentType is the MIME type inferred from the key's extension.
	ContentType string

	// URL is the direct-access URL for the object, when the driver can
	// construct one without I/O.
	URL string
}

// Name returns the final path segment of the object's key.
func (o ObjectInfo) Name() string {
	key := o.Key
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
