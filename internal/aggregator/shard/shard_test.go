package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectory_SingleShardOwnsEverything(t *testing.T) {
	d := New(nil, 1, 0)
	assert.True(t, d.Owns("batch-1"))
	assert.True(t, d.Owns("batch-2"))
}

func TestDirectory_MultiShardPartitionsBatchIDs(t *testing.T) {
	const shardCount = 4
	shards := make([]*Directory, shardCount)
	for i := range shards {
		shards[i] = New(nil, shardCount, i)
	}

	for _, batchID := range []string{"batch-1", "batch-2", "batch-3", "batch-4", "batch-5"} {
		owners := 0
		for _, d := range shards {
			if d.Owns(batchID) {
				owners++
			}
		}
		assert.Equal(t, 1, owners, "batch_id %q must be owned by exactly one shard", batchID)
	}
}

func TestDirectory_OwnerOfWithNoRedisReturnsFalse(t *testing.T) {
	d := New(nil, 4, 0)
	_, ok := d.OwnerOf(nil, "batch-1")
	assert.False(t, ok)
}
