package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/checkpoint"
	"github.com/pattabhia/rlvr-pdf-chat/internal/config"
	"github.com/pattabhia/rlvr-pdf-chat/internal/dedup"
	"github.com/pattabhia/rlvr-pdf-chat/internal/metrics"
	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/internal/selector"
	"github.com/pattabhia/rlvr-pdf-chat/internal/sink"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, logger.Fields) {}
func (nopLogger) Info(string, string, logger.Fields)  {}
func (nopLogger) Warn(string, string, logger.Fields)  {}
func (nopLogger) Error(string, string, logger.Fields) {}
func (nopLogger) Sync() error                         { return nil }

func newTestAggregator(t *testing.T, pipelineCfg config.PipelineConfig, gates config.GateConfig) *Aggregator {
	t.Helper()
	dir := t.TempDir()
	sftSink := sink.NewSFTSink(dir, sink.SyncOff)
	dpoSink := sink.NewDPOSink(dir, sink.SyncOff)
	sel := selector.New(gates)
	dd := dedup.NewMemoryDedup(time.Hour)
	cp := checkpoint.NewNoopStore()
	m := metrics.New(prometheus.NewRegistry())

	return New(nil, sftSink, dpoSink, sel, dd, cp, nil, nil, m, nopLogger{}, pipelineCfg)
}

func defaultPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		BatchTimeout:   time.Hour,
		MaxOpenBatches: 10,
	}
}

func defaultGateConfig() config.GateConfig {
	return config.GateConfig{
		MinScoreDiff:       0.2,
		MinChosenScore:     0.5,
		EnableVerbatimGate: true,
		EnableHedgingGate:  true,
	}
}

func answerEnvelope(t *testing.T, batchID, correlationID, answerID string, idx int, text string, temp float64, expectedCount int) events.Envelope {
	t.Helper()
	payload := events.AnswerGeneratedPayload{
		AnswerID:       answerID,
		CandidateIndex: idx,
		Question:       "What is a load balancer?",
		Text:           text,
		Temperature:    temp,
		ExpectedCount:  expectedCount,
	}
	env, err := events.NewEnvelope(events.AnswerGenerated, correlationID, batchID, payload)
	require.NoError(t, err)
	return env
}

func verificationEnvelope(t *testing.T, batchID, correlationID, answerID string, overall float64) events.Envelope {
	t.Helper()
	payload := events.VerificationCompletedPayload{
		AnswerID:     answerID,
		Faithfulness: overall,
		Relevancy:    overall,
		Overall:      overall,
		Confidence:   "high",
		JudgeMode:    "heuristic",
	}
	env, err := events.NewEnvelope(events.VerificationCompleted, correlationID, batchID, payload)
	require.NoError(t, err)
	return env
}

func TestAggregator_HappyPathEmitsSFTAndDPO(t *testing.T) {
	a := newTestAggregator(t, defaultPipelineConfig(), defaultGateConfig())
	ctx := context.Background()

	batchID, correlationID := "batch-1", "corr-1"

	require.NoError(t, a.handleAnswerGenerated(ctx, answerEnvelope(t, batchID, correlationID, "ans-1", 0, "A load balancer spreads traffic across servers.", 0.2, 2)))
	require.NoError(t, a.handleAnswerGenerated(ctx, answerEnvelope(t, batchID, correlationID, "ans-2", 1, "I'm not sure, could you clarify?", 1.0, 2)))

	require.NoError(t, a.handleVerificationCompleted(ctx, verificationEnvelope(t, batchID, correlationID, "ans-1", 0.9)))
	require.NoError(t, a.handleVerificationCompleted(ctx, verificationEnvelope(t, batchID, correlationID, "ans-2", 0.3)))

	assert.Equal(t, 0, a.OpenBatchCount(), "batch should have retired once both candidates were scored")
	assert.Equal(t, 1, a.selector.Snapshot().PairsCreated)
}

func TestAggregator_LowScoreDiffSkipsDPOButStillEmitsSFT(t *testing.T) {
	a := newTestAggregator(t, defaultPipelineConfig(), defaultGateConfig())
	ctx := context.Background()

	batchID, correlationID := "batch-2", "corr-2"

	require.NoError(t, a.handleAnswerGenerated(ctx, answerEnvelope(t, batchID, correlationID, "ans-1", 0, "answer one", 0.2, 2)))
	require.NoError(t, a.handleAnswerGenerated(ctx, answerEnvelope(t, batchID, correlationID, "ans-2", 1, "answer two", 1.0, 2)))

	require.NoError(t, a.handleVerificationCompleted(ctx, verificationEnvelope(t, batchID, correlationID, "ans-1", 0.81)))
	require.NoError(t, a.handleVerificationCompleted(ctx, verificationEnvelope(t, batchID, correlationID, "ans-2", 0.80)))

	assert.Equal(t, 0, a.OpenBatchCount())
	assert.Equal(t, 0, a.selector.Snapshot().PairsCreated)
	assert.Equal(t, 1, a.selector.Snapshot().RejectedScoreDiffLow)
}

func TestAggregator_VerificationBeforeAnswerStillCompletes(t *testing.T) {
	a := newTestAggregator(t, defaultPipelineConfig(), defaultGateConfig())
	ctx := context.Background()

	batchID, correlationID := "batch-3", "corr-3"

	// verification.completed arrives first for both candidates (§8 S4).
	require.NoError(t, a.handleVerificationCompleted(ctx, verificationEnvelope(t, batchID, correlationID, "ans-1", 0.9)))
	assert.Equal(t, 1, a.OpenBatchCount(), "batch should exist but be incomplete (expected_count unset)")

	require.NoError(t, a.handleVerificationCompleted(ctx, verificationEnvelope(t, batchID, correlationID, "ans-2", 0.3)))
	assert.Equal(t, 1, a.OpenBatchCount(), "still incomplete: expected_count is unknown until an answer event arrives")

	require.NoError(t, a.handleAnswerGenerated(ctx, answerEnvelope(t, batchID, correlationID, "ans-1", 0, "A load balancer spreads traffic across servers.", 0.2, 2)))
	require.NoError(t, a.handleAnswerGenerated(ctx, answerEnvelope(t, batchID, correlationID, "ans-2", 1, "I'm not sure, could you clarify?", 1.0, 2)))

	assert.Equal(t, 0, a.OpenBatchCount(), "batch should retire once both answers backfill expected_count")
}

func TestAggregator_DuplicateAnswerDeliveryIsIdempotent(t *testing.T) {
	a := newTestAggregator(t, defaultPipelineConfig(), defaultGateConfig())
	ctx := context.Background()

	batchID, correlationID := "batch-4", "corr-4"

	env := answerEnvelope(t, batchID, correlationID, "ans-1", 0, "A load balancer spreads traffic across servers.", 0.2, 1)
	require.NoError(t, a.handleAnswerGenerated(ctx, env))
	// redeliver the identical event (§8 S5, at-least-once delivery).
	require.NoError(t, a.handleAnswerGenerated(ctx, env))

	require.NoError(t, a.handleVerificationCompleted(ctx, verificationEnvelope(t, batchID, correlationID, "ans-1", 0.9)))
	// redeliver the identical verification event too.
	require.NoError(t, a.handleVerificationCompleted(ctx, verificationEnvelope(t, batchID, correlationID, "ans-1", 0.9)))

	assert.Equal(t, 0, a.OpenBatchCount(), "single candidate batch retires once answer+score are both present")
}

func TestAggregator_BackpressureRejectsNewBatchesAtCap(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.MaxOpenBatches = 1
	a := newTestAggregator(t, cfg, defaultGateConfig())
	ctx := context.Background()

	require.NoError(t, a.handleAnswerGenerated(ctx, answerEnvelope(t, "batch-a", "corr-a", "ans-1", 0, "text", 0.2, 2)))
	assert.Equal(t, 1, a.OpenBatchCount())

	err := a.handleAnswerGenerated(ctx, answerEnvelope(t, "batch-b", "corr-b", "ans-2", 0, "text", 0.2, 2))
	assert.Error(t, err, "a second distinct batch should be rejected once MAX_OPEN_BATCHES is reached")
}

func TestAggregator_IncompleteBatchRetiresOnDeadline(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.BatchTimeout = 10 * time.Millisecond
	a := newTestAggregator(t, cfg, defaultGateConfig())
	ctx := context.Background()

	batchID, correlationID := "batch-timeout", "corr-timeout"

	// only one candidate ever arrives; the batch never completes on its own.
	require.NoError(t, a.handleAnswerGenerated(ctx, answerEnvelope(t, batchID, correlationID, "ans-1", 0, "text", 0.2, 2)))
	assert.Equal(t, 1, a.OpenBatchCount())

	deadline := time.Now().Add(time.Second)
	for a.OpenBatchCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, a.OpenBatchCount(), "batch should retire on its deadline even though it never completed")
}
