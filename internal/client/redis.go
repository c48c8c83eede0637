package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueEmpty is returned by BLPop when nothing arrives before the timeout.
var ErrQueueEmpty = stderrors.New("queue empty")

// RedisClient is the result queue between background assessment jobs and
// the clients polling for them.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient connects to url (redis://[:password@]host:port/db) and
// verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	return &RedisClient{rdb: rdb}, nil
}

// Close closes the connection pool.
func (r *RedisClient) Close() error {
	return r.rdb.Close()
}

// PushWithTTL appends value as JSON to the list at key and (re)sets the
// key's expiry in the same MULTI block, so an unread result cannot outlive
// ttl.
func (r *RedisClient) PushWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if _, err := r.rdb.TxPipelined(ctx, func(tx redis.Pipeliner) error {
		tx.RPush(ctx, key, data)
		tx.Expire(ctx, key, ttl)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to push %s: %w", key, err)
	}
	return nil
}

// BLPop blocks up to timeout for the head of the list at key.
func (r *RedisClient) BLPop(ctx context.Context, timeout time.Duration, key string) ([]byte, error) {
	kv, err := r.rdb.BLPop(ctx, timeout, key).Result()
	switch {
	case stderrors.Is(err, redis.Nil):
		return nil, ErrQueueEmpty
	case err != nil:
		return nil, err
	case len(kv) != 2:
		return nil, fmt.Errorf("unexpected BLPOP reply of %d elements", len(kv))
	}
	return []byte(kv[1]), nil
}

// Ping checks Redis connectivity.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
