package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the blob as one JSON value at a fixed key, no TTL.
type RedisStore struct {
	Client *redis.Client
	Key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{Client: client, Key: key}
}

func (s *RedisStore) Load(ctx context.Context) (*Data, error) {
	raw, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewData(), nil
	}
	if err != nil {
		return nil, err
	}
	d := NewData()
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode key %s: %w", s.Key, err)
	}
	return d, nil
}

func (s *RedisStore) Save(ctx context.Context, d *Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, s.Key, raw, 0).Err()
}
