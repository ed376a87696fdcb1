// Package storage provides the object store used for uploaded evidence.
// Keys follow the {incidentUUID}/{timestamp}_{filename} convention.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key does not exist in the store
var ErrObjectNotFound = errors.New("object not found in storage")

// ObjectStore stores and retrieves raw document bytes
type ObjectStore interface {
	// Upload writes the object at key, overwriting any existing object
	Upload(ctx context.Context, key string, data io.Reader) error

	// Download returns a reader for the object at key.
	// Returns ErrObjectNotFound if the key does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
