package storage

import (
	"context"
	"io"
	"strings"
)

// ObjectStorage is the catalog image store. Product images uploaded during
// ingest are served from here; the public URL ends up in the index payload.
type ObjectStorage interface {
	// Upload stores an object under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download retrieves an object by key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the public URL for an object.
	GetURL(key string) string

	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New creates an ObjectStorage for the configured backend. The backend type
// is detected from the endpoint when not set explicitly.
func New(cfg *S3Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		cfg.Type = detectBackendType(cfg.Endpoint)
	}
	return NewS3Storage(cfg)
}

func detectBackendType(endpoint string) BackendType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return BackendR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return BackendS3
	default:
		return BackendS3Compatible
	}
}
