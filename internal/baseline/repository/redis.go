package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"continuous-auth/backend/internal/behavior/domain"
)

const defaultRedisKeyPrefix = "baseline:"

// RedisRepository stores each baseline as a JSON value under prefix+userID.
type RedisRepository struct {
	rdb    goredis.UniversalClient
	prefix string
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository returns a baseline repository backed by rdb. An empty prefix uses "baseline:".
func NewRedisRepository(rdb goredis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

// Save writes the baseline for userID with no expiry.
func (r *RedisRepository) Save(ctx context.Context, userID string, b domain.Baseline) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	return r.rdb.Set(ctx, r.key(userID), raw, 0).Err()
}

// Load returns the baseline for userID, or nil if the key does not exist.
func (r *RedisRepository) Load(ctx context.Context, userID string) (*domain.Baseline, error) {
	raw, err := r.rdb.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var b domain.Baseline
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode baseline for %s: %w", userID, err)
	}
	return &b, nil
}

// Ping checks the Redis connection.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRepository) key(userID string) string {
	return r.prefix + userID
}
