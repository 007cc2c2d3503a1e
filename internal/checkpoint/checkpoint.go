// Package checkpoint persists open-batch snapshots so the aggregator can
// report what was still in flight across a restart (§4.E Crash recovery).
// The events themselves are replayed from the bus; a checkpoint only tells
// the aggregator, and an operator, which batch_ids to expect back.
package checkpoint

import (
	"context"
	"time"
)

// Snapshot is the durable shadow of an aggregator.batchState, minus the
// candidate and score payloads (those live in the bus and are replayed,
// not duplicated into the checkpoint store).
type Snapshot struct {
	BatchID        string
	CorrelationID  string
	Question       string
	ExpectedCount  int
	AnswersSeen    int
	ScoresSeen     int
	FirstSeenAt    time.Time
	Deadline       time.Time
}

// Store is the checkpoint backend contract. Implementations must be safe
// for concurrent use: the aggregator calls Upsert once per event handled.
type Store interface {
	Upsert(ctx context.Context, snap Snapshot) error
	Delete(ctx context.Context, batchID string) error
	ListOpen(ctx context.Context) ([]Snapshot, error)
}
