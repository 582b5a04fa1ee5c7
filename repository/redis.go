package repository

import (
	"context"

	"github.com/keywheel/go-keywheel-server/types"
	"github.com/redis/go-redis/v9"
)

// implements BlobRepository on a redis instance (no expiry; the rotation
// state blob is overwritten as a whole on every save)
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) BlobRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r *RedisRepository) Put(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, key, data, 0).Err()
}
