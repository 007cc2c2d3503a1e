// Package dedup tracks recently retired batch_ids so a late event arriving
// after retirement is recognized and discarded rather than triggering a
// second retirement (§4.E idempotence, §8 S4/S5).
package dedup

// RetiredSet records batch_ids the aggregator has already retired. The
// source left open whether this record must survive a process restart
// (§9 ambiguity i); both answers are provided behind this interface so the
// choice is a deployment decision, not a code change.
type RetiredSet interface {
	// Mark records batchID as retired.
	Mark(batchID string)
	// Seen reports whether batchID was already marked retired.
	Seen(batchID string) bool
}
