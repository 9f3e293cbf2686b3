// Package rediskv stores each collection as one Redis string under a prefix.
package rediskv

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/turntally/internal/store"
)

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
}

type KV struct {
	redis  redis.UniversalClient
	prefix string
}

func New(c Config) *KV {
	return &KV{
		redis:  c.Redis,
		prefix: c.Prefix,
	}
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := k.redis.Get(ctx, k.key(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return b, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := k.redis.Set(ctx, k.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if err := k.redis.Del(ctx, k.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.redis.Ping(ctx).Err()
}

func (k *KV) key(key string) string {
	if k.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:store:%s", k.prefix, key)
}
