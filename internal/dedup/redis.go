package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedup is a cross-process RetiredSet backed by Redis SETNX/TTL, the
// persistent half of the ambiguity in §9(i): when several aggregator
// shards run in separate processes, only Redis gives them a shared view
// of which batch_ids have already retired.
type RedisDedup struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisDedup(rdb *redis.Client, ttl time.Duration) *RedisDedup {
	return &RedisDedup{rdb: rdb, ttl: ttl, prefix: "pipeline:retired:"}
}

func (d *RedisDedup) Mark(batchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.rdb.Set(ctx, d.prefix+batchID, 1, d.ttl)
}

func (d *RedisDedup) Seen(batchID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := d.rdb.Exists(ctx, d.prefix+batchID).Result()
	if err != nil {
		return false
	}
	return n > 0
}
