package requestctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "reqctx:"

// RedisStore is the shared Store backend for multi-instance deployments,
// where the request may be handled by one instance and its mutations by
// another behind the same ingress.
//
// Entries carry a TTL so contexts abandoned by a crashed instance expire
// instead of accumulating. The middleware still ends contexts explicitly;
// the TTL is only a guard.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("requestctx: redis client required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func (s *RedisStore) Begin(ctx context.Context, requestID string, rc Context) error {
	if requestID == "" {
		return errors.New("requestctx: request id required")
	}
	raw, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("requestctx: encode: %w", err)
	}
	return s.rdb.Set(ctx, redisKeyPrefix+requestID, raw, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, requestID string) (Context, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+requestID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Context{}, false, nil
		}
		return Context{}, false, err
	}
	var rc Context
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Context{}, false, fmt.Errorf("requestctx: decode: %w", err)
	}
	return rc, true, nil
}

func (s *RedisStore) End(ctx context.Context, requestID string) error {
	// DEL on a missing key is a no-op; End stays idempotent.
	return s.rdb.Del(ctx, redisKeyPrefix+requestID).Err()
}
