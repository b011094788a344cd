package storage

import (
	"context"
	"testing"
)

type memoryObjects struct {
	buckets map[string]bool
	objects map[string][]byte
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (m *memoryObjects) EnsureBucketExists(_ context.Context, bucket string) error {
	m.buckets[bucket] = true
	return nil
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key, _ string, data []byte) error {
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryObjects) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func TestSnapshotPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	objects := newMemoryObjects()

	p, err := NewSnapshotPersister(ctx, objects, "snapshots", "store.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !objects.buckets["snapshots"] {
		t.Fatalf("expected bucket to be created")
	}

	data, err := p.Load(ctx)
	if err != nil || data != nil {
		t.Fatalf("expected empty load, got %q, %v", data, err)
	}

	if err := p.Save(ctx, []byte(`{"bookings":[]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err = p.Load(ctx)
	if err != nil || string(data) != `{"bookings":[]}` {
		t.Fatalf("unexpected load %q, %v", data, err)
	}
}
