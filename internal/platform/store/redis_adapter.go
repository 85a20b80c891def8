package store

import (
	"context"

	"github.com/go-redis/redis"
)

// redisAdapter wraps a go-redis client and implements KV + Pinger
type redisAdapter struct {
	db redis.UniversalClient
}

func newRedisAdapter(db redis.UniversalClient) *redisAdapter { return &redisAdapter{db: db} }

// NewRedisKV exposes an existing client through the KV seam
func NewRedisKV(db redis.UniversalClient) KV { return newRedisAdapter(db) }

func (a *redisAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := a.db.Get(key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (a *redisAdapter) Set(ctx context.Context, key, val string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.db.Set(key, val, 0).Err()
}

func (a *redisAdapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.db.Ping().Err()
}

func (a *redisAdapter) Close() error { return a.db.Close() }
