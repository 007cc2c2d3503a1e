package dedup

import (
	"testing"
	"time"
)

func TestMemoryDedup_SeenIsFalseUntilMarked(t *testing.T) {
	d := NewMemoryDedup(time.Hour)

	if d.Seen("batch-1") {
		t.Fatal("expected batch-1 to be unseen before Mark")
	}

	d.Mark("batch-1")

	if !d.Seen("batch-1") {
		t.Fatal("expected batch-1 to be seen after Mark")
	}
}

func TestMemoryDedup_DistinctBatchesAreIndependent(t *testing.T) {
	d := NewMemoryDedup(time.Hour)

	d.Mark("batch-1")

	if d.Seen("batch-2") {
		t.Fatal("marking batch-1 must not mark batch-2")
	}
}

func TestMemoryDedup_EntriesExpireAfterTTL(t *testing.T) {
	d := NewMemoryDedup(20 * time.Millisecond)

	d.Mark("batch-1")
	if !d.Seen("batch-1") {
		t.Fatal("expected batch-1 to be seen immediately after Mark")
	}

	time.Sleep(100 * time.Millisecond)

	if d.Seen("batch-1") {
		t.Fatal("expected batch-1 to have expired after its TTL elapsed")
	}
}
