// Package shard lets the aggregator be run as multiple processes sharing
// the batch_id space. Ownership of a batch_id is decided by a stable hash
// mod shard count, same as the teacher's websocket.Hub shards users across
// instances by user_id; the difference here is there is no local client
// list to redirect through, so a shard that receives an event for a
// batch_id it does not own cannot complete that batch locally and logs it
// as misrouted instead (§4.E "may be sharded by batch_id hash for scale").
package shard

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Directory answers whether this process owns a batch_id, and records
// ownership in Redis so an operator (or another shard) can look up which
// shard a misrouted batch_id actually belongs to.
type Directory struct {
	rdb        *redis.Client
	shardCount int
	shardID    int
}

// New returns a Directory for a deployment of shardCount aggregator
// processes, this one identified by shardID. shardCount <= 1 makes every
// batch_id local, matching the default single-process deployment.
func New(rdb *redis.Client, shardCount, shardID int) *Directory {
	if shardCount < 1 {
		shardCount = 1
	}
	return &Directory{rdb: rdb, shardCount: shardCount, shardID: shardID}
}

// Owns reports whether batchID hashes to this process's shard.
func (d *Directory) Owns(batchID string) bool {
	if d.shardCount <= 1 {
		return true
	}
	return ownerOf(batchID, d.shardCount) == d.shardID
}

func ownerOf(batchID string, shardCount int) int {
	h := fnv.New32a()
	h.Write([]byte(batchID))
	return int(h.Sum32() % uint32(shardCount))
}

const ownerKeyPrefix = "pipeline:shard:owner:"

// Register records this shard as the owner of batchID in Redis for ttl, so
// another shard that sees the same batch_id misrouted can look up who
// actually owns it instead of silently dropping the event. A no-op when
// sharding is disabled or Redis is unavailable.
func (d *Directory) Register(ctx context.Context, batchID string, ttl time.Duration) {
	if d.shardCount <= 1 || d.rdb == nil {
		return
	}
	d.rdb.Set(ctx, ownerKeyPrefix+batchID, strconv.Itoa(d.shardID), ttl)
}

// OwnerOf looks up which shard currently owns batchID, if any shard has
// registered it.
func (d *Directory) OwnerOf(ctx context.Context, batchID string) (int, bool) {
	if d.rdb == nil {
		return 0, false
	}
	val, err := d.rdb.Get(ctx, ownerKeyPrefix+batchID).Result()
	if err != nil {
		return 0, false
	}
	owner, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return owner, true
}
