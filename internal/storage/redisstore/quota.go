package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Quota is a fixed-window request counter shared by every process using the same API token.
type Quota struct {
	c *redis.Client
}

func NewQuota(addr string) *Quota {
	return &Quota{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow does INCR on key and refreshes its TTL.
// Returns (allowed, currentCount).
func (q *Quota) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := q.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis quota")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (q *Quota) Close() error {
	return q.c.Close()
}
