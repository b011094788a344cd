// Package storage provides a domain-agnostic interface for S3-compatible object storage.
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore defines the object storage operations the application needs.
type ObjectStore interface {
	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error

	// PutObject stores data under key, replacing any previous version.
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error

	// GetObject reads the whole object. Returns ErrObjectNotFound if absent.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}
