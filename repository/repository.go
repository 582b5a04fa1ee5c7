package repository

import (
	"context"
)

// BlobRepository is a get/set byte-blob store keyed by a well-known string.
// Implementations return types.ErrNotFound when no blob exists under the key.
type BlobRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}
