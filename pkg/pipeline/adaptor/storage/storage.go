// Package storage defines the common interfaces for storage adapters used by
// the report exporter. Concrete backends (GCS, local file system) implement
// StorageConnection.
package storage

import (
	"context"
	"io"
)

// StorageConnection represents an open connection to a storage backend.
type StorageConnection interface {
	// Upload writes the data stream to the given bucket and object name.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download returns a reader for the given object. The caller must close it.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object name under the given prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes the given object. Deleting a missing object is not
	// an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	// Type returns the backend type identifier ("gcs", "local").
	Type() string
	// Name returns the connection name from the configuration.
	Name() string
	// Close releases backend resources.
	Close() error
}
