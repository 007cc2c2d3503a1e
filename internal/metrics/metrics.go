// Package metrics exposes the pipeline's Prometheus collectors: the
// aggregator's open-batch backlog (§4.E backpressure), DPO gate outcomes
// (§7 reason codes), and judge fallback rate (§4.D).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the pipeline registers at startup.
type Metrics struct {
	// OpenBatches is the current count of batches awaiting retirement.
	OpenBatches prometheus.Gauge

	// BackpressurePaused is 1 while the aggregator has paused consumption
	// because MAX_OPEN_BATCHES was exceeded, 0 otherwise.
	BackpressurePaused prometheus.Gauge

	// BatchesRetired counts retirements by trigger (complete|timeout).
	BatchesRetired *prometheus.CounterVec

	// SFTRecordsEmitted counts SFT records written to the sink.
	SFTRecordsEmitted prometheus.Counter

	// DPOGateOutcomes counts DPO selector decisions by reason code,
	// including the empty reason for a pair that passed every gate.
	DPOGateOutcomes *prometheus.CounterVec

	// JudgeInvocations counts verifier scoring calls by mode (llm|heuristic).
	JudgeInvocations *prometheus.CounterVec

	// DroppedCandidates counts generator slots dropped by failure kind.
	DroppedCandidates *prometheus.CounterVec

	// DuplicateEventsDiscarded counts events discarded because their
	// batch_id had already retired (§4.E idempotence, §8 S4/S5).
	DuplicateEventsDiscarded prometheus.Counter
}

// New registers every collector against reg. Tests pass their own
// prometheus.NewRegistry(); bootstrap.NewContainer passes the registry that
// httpapi serves on /metrics, so only collectors registered there appear
// on that endpoint.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OpenBatches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_aggregator_open_batches",
			Help: "Number of batches currently open in the aggregator.",
		}),
		BackpressurePaused: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_aggregator_backpressure_paused",
			Help: "1 while the aggregator has paused bus consumption for backpressure.",
		}),
		BatchesRetired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_aggregator_batches_retired_total",
			Help: "Total batches retired, by trigger.",
		}, []string{"trigger"}),
		SFTRecordsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_sft_records_emitted_total",
			Help: "Total SFT records written to the sink.",
		}),
		DPOGateOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_dpo_gate_outcomes_total",
			Help: "Total DPO selector outcomes, by reason code (empty means a pair was emitted).",
		}, []string{"reason"}),
		JudgeInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_judge_invocations_total",
			Help: "Total verifier scoring calls, by judge mode.",
		}, []string{"mode"}),
		DroppedCandidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_generator_dropped_candidates_total",
			Help: "Total candidate slots dropped by generation failure kind.",
		}, []string{"reason"}),
		DuplicateEventsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_aggregator_duplicate_events_discarded_total",
			Help: "Total events discarded as duplicates of an already-retired batch.",
		}),
	}
}
