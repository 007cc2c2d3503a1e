package checkpoint

import (
	"context"
	"testing"
	"time"
)

func TestNoopStore_UpsertNeverErrors(t *testing.T) {
	s := NewNoopStore()

	err := s.Upsert(context.Background(), Snapshot{
		BatchID:       "batch-1",
		CorrelationID: "corr-1",
		Question:      "what is a load balancer?",
		ExpectedCount: 3,
		AnswersSeen:   1,
		ScoresSeen:    0,
		FirstSeenAt:   time.Now(),
		Deadline:      time.Now().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestNoopStore_ListOpenIsAlwaysEmpty(t *testing.T) {
	s := NewNoopStore()

	if err := s.Upsert(context.Background(), Snapshot{BatchID: "batch-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	open, err := s.ListOpen(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected NoopStore to never retain snapshots, got %d entries", len(open))
	}
}

func TestNoopStore_DeleteNeverErrors(t *testing.T) {
	s := NewNoopStore()

	if err := s.Delete(context.Background(), "batch-that-was-never-upserted"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
