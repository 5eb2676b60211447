package scaling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"logdrain-agent/internal/model"
)

const keyPrefix = "logdrain:scaling:"

// Store persists snapshots across restarts.
type Store interface {
	Load(ctx context.Context, key string) ([]model.ScalingEvent, error)
	Save(ctx context.Context, key string, events []model.ScalingEvent) error
}

// KeyForToken derives a store key from a drain token without exposing it.
func KeyForToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:8])
}

// RedisStore keeps msgpack-encoded snapshots in plain Redis string keys.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisStoreFromURL connects using a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]model.ScalingEvent, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var events []model.ScalingEvent
	if err := msgpack.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return events, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, events []model.ScalingEvent) error {
	raw, err := msgpack.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
