package storage

import (
	"context"
	"errors"
)

// SnapshotPersister saves store snapshots as a single object.
type SnapshotPersister struct {
	store  ObjectStore
	bucket string
	key    string
}

// NewSnapshotPersister makes sure the bucket exists and returns a persister for key.
func NewSnapshotPersister(ctx context.Context, store ObjectStore, bucket, key string) (*SnapshotPersister, error) {
	if err := store.EnsureBucketExists(ctx, bucket); err != nil {
		return nil, err
	}
	return &SnapshotPersister{store: store, bucket: bucket, key: key}, nil
}

// Load returns the stored snapshot, or nil if none was saved yet.
func (p *SnapshotPersister) Load(ctx context.Context) ([]byte, error) {
	data, err := p.store.GetObject(ctx, p.bucket, p.key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	return data, err
}

// Save replaces the snapshot object.
func (p *SnapshotPersister) Save(ctx context.Context, data []byte) error {
	return p.store.PutObject(ctx, p.bucket, p.key, "application/json", data)
}
