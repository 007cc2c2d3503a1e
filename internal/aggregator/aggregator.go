// Package aggregator joins answer.generated and verification.completed
// events per batch_id and retires a batch once it is complete or its
// deadline passes (§4.E). It is the hardest piece of the pipeline: the
// single actor standing between the fire-and-forget event bus and the
// SFT/DPO sinks.
package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/aggregator/shard"
	"github.com/pattabhia/rlvr-pdf-chat/internal/checkpoint"
	"github.com/pattabhia/rlvr-pdf-chat/internal/config"
	"github.com/pattabhia/rlvr-pdf-chat/internal/dedup"
	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
	"github.com/pattabhia/rlvr-pdf-chat/internal/metrics"
	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/internal/selector"
	"github.com/pattabhia/rlvr-pdf-chat/internal/sink"
	"github.com/pattabhia/rlvr-pdf-chat/internal/storage/pg"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"

	"github.com/cenkalti/backoff/v5"
)

// Aggregator is the batch-joining actor described in §4.E. Each open
// batch has its own mutex (batchState.mu), so independent batches make
// progress without contending on a single lock; the aggregator's own
// mutex only guards the open-batches map itself.
type Aggregator struct {
	bus        bus.Bus
	sftSink    *sink.SFTSink
	dpoSink    *sink.DPOSink
	selector   *selector.Selector
	dedup      dedup.RetiredSet
	checkpoint checkpoint.Store
	audit      pg.Store
	shard      *shard.Directory
	metrics    *metrics.Metrics
	log        logger.ILogger

	batchTimeout time.Duration
	maxOpen      int
	group        string

	// halted latches true once a sink write exhausts its retries (§7 Sink
	// I/O failure: "halt the consumer rather than drop records"). Once
	// set, every event handler rejects new work and no further batch is
	// retired; recovery is an operator action (fix the sink, restart the
	// process).
	halted atomic.Bool

	mu      sync.Mutex
	batches map[string]*batchState
}

func New(
	b bus.Bus,
	sftSink *sink.SFTSink,
	dpoSink *sink.DPOSink,
	sel *selector.Selector,
	dd dedup.RetiredSet,
	cp checkpoint.Store,
	audit pg.Store,
	sd *shard.Directory,
	m *metrics.Metrics,
	log logger.ILogger,
	pipelineCfg config.PipelineConfig,
) *Aggregator {
	if audit == nil {
		audit = pg.NewNoopStore()
	}
	if sd == nil {
		sd = shard.New(nil, 1, 0)
	}
	return &Aggregator{
		bus:          b,
		sftSink:      sftSink,
		dpoSink:      dpoSink,
		selector:     sel,
		dedup:        dd,
		checkpoint:   cp,
		audit:        audit,
		shard:        sd,
		metrics:      m,
		log:          log,
		batchTimeout: pipelineCfg.BatchTimeout,
		maxOpen:      pipelineCfg.MaxOpenBatches,
		group:        "batch-aggregator",
		batches:      make(map[string]*batchState),
	}
}

// sinkRetryBackoff configures the retry-with-backoff required before a
// sink write failure is treated as unrecoverable (§7 Sink I/O failure:
// "retry with backoff; if unrecoverable, halt the consumer rather than
// drop records"), mirroring retriever.WithRetry's shape.
func sinkRetryBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	return bo
}

const sinkMaxTries = 5

// writeSFT retries the SFT sink write through sinkRetryBackoff, returning
// the last error once sinkMaxTries is exhausted.
func (a *Aggregator) writeSFT(ctx context.Context, record domain.SFTRecord) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, a.sftSink.Write(record)
	}, backoff.WithBackOff(sinkRetryBackoff()), backoff.WithMaxTries(sinkMaxTries))
	return err
}

// writeDPO retries the DPO sink write the same way writeSFT does.
func (a *Aggregator) writeDPO(ctx context.Context, record domain.DPORecord) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, a.dpoSink.Write(record)
	}, backoff.WithBackOff(sinkRetryBackoff()), backoff.WithMaxTries(sinkMaxTries))
	return err
}

// Restore reconstructs in-flight batch state from checkpoint snapshots
// captured before a crash (§4.E Crash recovery: "open batches are
// replayed on restart"). It must be called before Start subscribes, so
// the first redelivered answer.generated/verification.completed event
// lands on an existing batchState with its original deadline intact
// instead of starting a fresh one. The candidate and score payloads
// themselves aren't in the snapshot; they arrive again off the bus.
func (a *Aggregator) Restore(ctx context.Context, snapshots []checkpoint.Snapshot) {
	for _, snap := range snapshots {
		if !a.shard.Owns(snap.BatchID) {
			continue
		}

		a.mu.Lock()
		if _, ok := a.batches[snap.BatchID]; ok {
			a.mu.Unlock()
			continue
		}
		b := newBatchState(snap.BatchID, snap.CorrelationID, snap.Question, nil, snap.ExpectedCount, snap.Deadline)
		b.firstSeenAt = snap.FirstSeenAt
		a.batches[snap.BatchID] = b
		a.metrics.OpenBatches.Set(float64(len(a.batches)))
		a.mu.Unlock()

		a.shard.Register(ctx, snap.BatchID, time.Until(snap.Deadline)+time.Minute)
		batchID := snap.BatchID
		b.timer = time.AfterFunc(time.Until(snap.Deadline), func() { a.onDeadline(batchID) })

		a.log.Info("aggregator", "restored open batch from checkpoint", logger.Fields{
			CorrelationID: snap.CorrelationID, BatchID: snap.BatchID,
			Details: map[string]interface{}{"answers_seen": snap.AnswersSeen, "scores_seen": snap.ScoresSeen},
		})
	}
}

// Start subscribes to both topics the aggregator joins on. It returns
// once both subscriptions are registered; delivery happens on the bus
// implementation's own goroutines.
func (a *Aggregator) Start(ctx context.Context) error {
	if err := a.bus.Subscribe(ctx, bus.TopicAnswerGenerated, a.group, a.handleAnswerGenerated); err != nil {
		return err
	}
	return a.bus.Subscribe(ctx, bus.TopicVerificationCompleted, a.group, a.handleVerificationCompleted)
}

// resolveOutcome classifies what resolveBatch did, so the two event
// handlers can each decide how to ack/nack appropriately.
type resolveOutcome int

const (
	resolvedExisting resolveOutcome = iota
	resolvedCreated
	resolvedDuplicate   // batch already retired; discard, do not redeliver
	resolvedBackpressure // MAX_OPEN_BATCHES exceeded; redeliver later
	resolvedMisrouted   // batch_id hashes to a different shard; discard
)

func (a *Aggregator) resolveBatch(batchID, correlationID, question string, contexts []domain.Passage, expectedCount int) (*batchState, resolveOutcome) {
	if !a.shard.Owns(batchID) {
		a.log.Warn("aggregator", "batch event misrouted to wrong shard, discarding", logger.Fields{
			CorrelationID: correlationID, BatchID: batchID,
		})
		return nil, resolvedMisrouted
	}

	a.mu.Lock()
	if b, ok := a.batches[batchID]; ok {
		a.mu.Unlock()
		return b, resolvedExisting
	}
	if a.dedup.Seen(batchID) {
		a.mu.Unlock()
		a.metrics.DuplicateEventsDiscarded.Inc()
		return nil, resolvedDuplicate
	}
	if a.maxOpen > 0 && len(a.batches) >= a.maxOpen {
		a.mu.Unlock()
		a.metrics.BackpressurePaused.Set(1)
		a.log.Warn("aggregator", "open batch cap reached, pausing intake", logger.Fields{
			CorrelationID: correlationID, BatchID: batchID,
			Details: map[string]interface{}{"max_open_batches": a.maxOpen},
		})
		return nil, resolvedBackpressure
	}
	a.metrics.BackpressurePaused.Set(0)

	deadline := time.Now().Add(a.batchTimeout)
	b := newBatchState(batchID, correlationID, question, contexts, expectedCount, deadline)
	a.batches[batchID] = b
	a.metrics.OpenBatches.Set(float64(len(a.batches)))
	a.mu.Unlock()

	a.shard.Register(context.Background(), batchID, a.batchTimeout+time.Minute)
	b.timer = time.AfterFunc(time.Until(deadline), func() { a.onDeadline(batchID) })
	return b, resolvedCreated
}

// popBatch removes batchID from the open-batches table and returns it.
// Used so retirement-by-completion and retirement-by-timeout can race
// safely: whichever goroutine pops the batch performs the retirement,
// the other finds it already gone and does nothing.
func (a *Aggregator) popBatch(batchID string) (*batchState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.batches[batchID]
	if ok {
		delete(a.batches, batchID)
		a.metrics.OpenBatches.Set(float64(len(a.batches)))
	}
	return b, ok
}

func (a *Aggregator) checkpointSnapshot(ctx context.Context, b *batchState) {
	if err := a.checkpoint.Upsert(ctx, b.snapshot()); err != nil {
		a.log.Warn("aggregator", "checkpoint upsert failed", logger.Fields{
			BatchID: b.batchID,
			Details: map[string]interface{}{"error": err.Error()},
		})
	}
}

func (a *Aggregator) handleAnswerGenerated(ctx context.Context, env events.Envelope) error {
	if a.halted.Load() {
		return domain.ErrAggregatorHalted
	}

	var payload events.AnswerGeneratedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		a.log.Error("aggregator", "failed to unmarshal answer.generated payload", logger.Fields{
			CorrelationID: env.CorrelationID, BatchID: env.BatchID,
			Details: map[string]interface{}{"error": err.Error()},
		})
		return nil
	}

	contexts := make([]domain.Passage, 0, len(payload.Contexts))
	for _, c := range payload.Contexts {
		contexts = append(contexts, domain.Passage{SourceID: c.SourceID, Text: c.Text})
	}

	b, outcome := a.resolveBatch(env.BatchID, env.CorrelationID, payload.Question, contexts, payload.ExpectedCount)
	switch outcome {
	case resolvedDuplicate, resolvedMisrouted:
		return nil
	case resolvedBackpressure:
		return domain.ErrAggregatorOverflow
	}
	b.fillFromAnswerEvent(payload.ExpectedCount, contexts, payload.Question)

	cand := domain.Candidate{
		CandidateIndex: payload.CandidateIndex,
		Text:           payload.Text,
		SamplingParams: domain.SamplingParams{Temperature: payload.Temperature, TopP: payload.TopP},
		AnswerID:       payload.AnswerID,
		CreatedAt:      env.Timestamp,
	}
	if !b.upsertAnswer(payload.AnswerID, cand) {
		return nil // duplicate delivery of the same answer_id, no-op (§4.E idempotence)
	}

	a.checkpointSnapshot(ctx, b)
	a.maybeRetire(ctx, b)
	return nil
}

func (a *Aggregator) handleVerificationCompleted(ctx context.Context, env events.Envelope) error {
	if a.halted.Load() {
		return domain.ErrAggregatorHalted
	}

	var payload events.VerificationCompletedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		a.log.Error("aggregator", "failed to unmarshal verification.completed payload", logger.Fields{
			CorrelationID: env.CorrelationID, BatchID: env.BatchID,
			Details: map[string]interface{}{"error": err.Error()},
		})
		return nil
	}

	// expected_count is unknown from a verification event alone; 0 marks
	// it unset until the corresponding answer.generated event fills it in.
	b, outcome := a.resolveBatch(env.BatchID, env.CorrelationID, "", nil, 0)
	switch outcome {
	case resolvedDuplicate, resolvedMisrouted:
		return nil
	case resolvedBackpressure:
		return domain.ErrAggregatorOverflow
	}

	score := domain.Score{
		AnswerID:     payload.AnswerID,
		Faithfulness: payload.Faithfulness,
		Relevancy:    payload.Relevancy,
		Overall:      payload.Overall,
		Confidence:   domain.Confidence(payload.Confidence),
		JudgeMode:    payload.JudgeMode,
		RewardHint:   payload.RewardHint,
		ScoredAt:     env.Timestamp,
	}
	a.metrics.JudgeInvocations.WithLabelValues(payload.JudgeMode).Inc()

	if !b.upsertScore(payload.AnswerID, score) {
		return nil // duplicate delivery, no-op (§8 S5)
	}

	a.checkpointSnapshot(ctx, b)
	a.maybeRetire(ctx, b)
	return nil
}

func (a *Aggregator) maybeRetire(ctx context.Context, b *batchState) {
	if a.halted.Load() {
		return // leave the batch in the open map; nothing retires once halted
	}
	if !b.checkComplete() {
		return
	}
	if popped, ok := a.popBatch(b.batchID); ok {
		a.retire(ctx, popped, "complete")
	}
}

func (a *Aggregator) onDeadline(batchID string) {
	if a.halted.Load() {
		return
	}
	popped, ok := a.popBatch(batchID)
	if !ok {
		return // already retired by completion
	}
	a.retire(context.Background(), popped, "timeout")
}

// retire implements the retirement step of §4.E: emit one SFT record per
// scored candidate, then hand the joined set to the DPO selector. Only
// candidates with both an answer and a score participate (§9 decision
// iii).
func (a *Aggregator) retire(ctx context.Context, b *batchState, trigger string) {
	if b.timer != nil {
		b.timer.Stop()
	}
	a.dedup.Mark(b.batchID)
	if err := a.checkpoint.Delete(ctx, b.batchID); err != nil {
		a.log.Warn("aggregator", "checkpoint delete failed", logger.Fields{
			BatchID: b.batchID, Details: map[string]interface{}{"error": err.Error()},
		})
	}

	candidates := b.retirementCandidates()
	contexts, question := b.contextsAndQuestion()
	a.metrics.BatchesRetired.WithLabelValues(trigger).Inc()

	for _, sc := range candidates {
		record := domain.SFTRecord{
			Question: question,
			Answer:   sc.Text,
			Contexts: contexts,
			Verification: domain.SFTVerification{
				Faithfulness: sc.Faithfulness,
				Relevancy:    sc.Relevancy,
				Overall:      sc.Overall,
				Confidence:   sc.Confidence,
			},
			Metadata: domain.SFTMetadata{
				BatchID:        b.batchID,
				CandidateIndex: sc.CandidateIndex,
				SamplingParams: sc.SamplingParams,
				JudgeMode:      sc.JudgeMode,
				RewardHint:     sc.RewardHint,
			},
			Timestamp: sc.ScoredAt,
		}
		if err := a.writeSFT(ctx, record); err != nil {
			a.log.Error("aggregator", "sft sink write failed after retries, halting consumer", logger.Fields{
				CorrelationID: b.correlationID, BatchID: b.batchID,
				Details: map[string]interface{}{"answer_id": sc.Candidate.AnswerID, "error": err.Error()},
			})
			a.halted.Store(true)
			a.mu.Lock()
			a.batches[b.batchID] = b // keep the half-retired batch for inspection
			a.mu.Unlock()
			return
		}
		a.metrics.SFTRecordsEmitted.Inc()

		if err := a.audit.RecordSFT(ctx, record); err != nil {
			a.log.Warn("aggregator", "sft audit mirror failed", logger.Fields{
				CorrelationID: b.correlationID, BatchID: b.batchID,
				Details: map[string]interface{}{"answer_id": sc.Candidate.AnswerID, "error": err.Error()},
			})
		}
	}

	a.log.Info("aggregator", "batch retired", logger.Fields{
		CorrelationID: b.correlationID, BatchID: b.batchID,
		Details: map[string]interface{}{"trigger": trigger, "scored_candidates": len(candidates)},
	})

	record, reason := a.selector.Select(b.batchID, question, candidates, contexts, trigger == "timeout")
	a.metrics.DPOGateOutcomes.WithLabelValues(string(reason)).Inc()
	a.logSelectorSummary()
	if reason != domain.ReasonNone {
		a.log.Info("aggregator", "dpo pair skipped", logger.Fields{
			CorrelationID: b.correlationID, BatchID: b.batchID,
			Details: map[string]interface{}{"reason": string(reason)},
		})
		return
	}

	if err := a.writeDPO(ctx, record); err != nil {
		a.log.Error("aggregator", "dpo sink write failed after retries, halting consumer", logger.Fields{
			CorrelationID: b.correlationID, BatchID: b.batchID,
			Details: map[string]interface{}{"error": err.Error()},
		})
		a.halted.Store(true)
		a.mu.Lock()
		a.batches[b.batchID] = b // keep the half-retired batch for inspection
		a.mu.Unlock()
		return
	}
	if err := a.audit.RecordDPO(ctx, record); err != nil {
		a.log.Warn("aggregator", "dpo audit mirror failed", logger.Fields{
			CorrelationID: b.correlationID, BatchID: b.batchID,
			Details: map[string]interface{}{"error": err.Error()},
		})
	}
	a.log.Info("aggregator", "dpo pair emitted", logger.Fields{
		CorrelationID: b.correlationID, BatchID: b.batchID,
		Details: map[string]interface{}{
			"chosen_index": record.Metadata.ChosenIndex, "rejected_index": record.Metadata.RejectedIndex,
			"score_difference": record.ScoreDifference,
		},
	})
}

// statsSummaryInterval mirrors the original dataset writer's habit of
// logging a running DPO gate summary every 10 pairs attempted (§11
// Supplemented features), surfaced here via the structured logger instead
// of stdout prints.
const statsSummaryInterval = 10

func (a *Aggregator) logSelectorSummary() {
	stats := a.selector.Snapshot()
	if stats.TotalAttempted == 0 || stats.TotalAttempted%statsSummaryInterval != 0 {
		return
	}
	a.log.Info("aggregator", "dpo gate summary", logger.Fields{
		Details: map[string]interface{}{
			"total_attempted":           stats.TotalAttempted,
			"pairs_created":             stats.PairsCreated,
			"rejected_insufficient":     stats.RejectedInsufficient,
			"rejected_score_diff_low":   stats.RejectedScoreDiffLow,
			"rejected_chosen_score_low": stats.RejectedChosenScoreLow,
			"rejected_verbatim":         stats.RejectedVerbatim,
			"rejected_evasive":          stats.RejectedEvasive,
		},
	})
}

// OpenBatchCount reports the number of batches currently awaiting
// retirement, mainly for tests and operator tooling.
func (a *Aggregator) OpenBatchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}
