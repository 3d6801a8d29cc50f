package checklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const draftKeyPrefix = "ohs:checklist:draft:"

type redisDraftStore struct {
	c *redis.Client
}

func NewRedisDraftStore(c *redis.Client) DraftStore {
	return &redisDraftStore{c: c}
}

func draftKey(id string) string { return draftKeyPrefix + id }

func (r *redisDraftStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, draftKey(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", id, err)
	}
	return nil
}

func (r *redisDraftStore) Load(ctx context.Context, id string) ([]byte, error) {
	val, err := r.c.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("load draft %s: %w", id, err)
	}
	return val, nil
}

func (r *redisDraftStore) Delete(ctx context.Context, id string) error {
	n, err := r.c.Del(ctx, draftKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	if n == 0 {
		return ErrDraftNotFound
	}
	return nil
}
