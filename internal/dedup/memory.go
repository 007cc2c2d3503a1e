package dedup

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryDedup is a process-local, TTL-bounded RetiredSet. It does not
// survive a restart: after a crash, a late event for a batch_id retired
// before the restart is not recognized, so the aggregator opens a new
// batch under that batch_id and retires it again on completion or at its
// deadline.
type MemoryDedup struct {
	cache *cache.Cache
}

// NewMemoryDedup retains a retired batch_id for ttl before it is eligible
// for eviction, which bounds memory use the way a true LRU would while
// staying simple (go-cache has no size cap, only time).
func NewMemoryDedup(ttl time.Duration) *MemoryDedup {
	return &MemoryDedup{cache: cache.New(ttl, ttl/2)}
}

func (d *MemoryDedup) Mark(batchID string) {
	d.cache.Set(batchID, struct{}{}, cache.DefaultExpiration)
}

func (d *MemoryDedup) Seen(batchID string) bool {
	_, found := d.cache.Get(batchID)
	return found
}
