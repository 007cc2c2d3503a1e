package checkpoint

import "context"

// NoopStore discards snapshots. Selected when no database connection is
// configured (§6 Configuration has no required DB option): the aggregator
// still recovers via bus replay, it just can't report open batches across
// a restart.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) Upsert(ctx context.Context, snap Snapshot) error { return nil }
func (NoopStore) Delete(ctx context.Context, batchID string) error { return nil }
func (NoopStore) ListOpen(ctx context.Context) ([]Snapshot, error) { return nil, nil }
