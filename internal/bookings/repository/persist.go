package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Persister stores the serialized snapshot of a MemoryStore.
// Load returns (nil, nil) when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// FilePersister writes snapshots to a local JSON file through a temp file and rename.
type FilePersister struct {
	Path string
}

// NewFilePersister creates a FilePersister for path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: strings.TrimSpace(path)}
}

// Load reads the snapshot file.
func (p *FilePersister) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Save replaces the snapshot file atomically.
func (p *FilePersister) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.Path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, p.Path)
}
