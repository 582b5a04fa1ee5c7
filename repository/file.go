package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keywheel/go-keywheel-server/types"
)

// implements BlobRepository on the local filesystem, one file per key.
// Writes go through a temp file + fsync + rename so a crash mid-save leaves
// the previous blob intact.
type FileRepository struct {
	dir string
}

func NewFileRepository(dir string) (BlobRepository, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &FileRepository{dir: dir}, nil
}

func (f *FileRepository) path(key string) string {
	return filepath.Join(f.dir, key+".blob")
}

func (f *FileRepository) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (f *FileRepository) Put(ctx context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	_ = os.Chmod(tmpPath, 0600)

	if err := os.Rename(tmpPath, f.path(key)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
