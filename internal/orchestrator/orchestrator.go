// Package orchestrator implements the ask_multi operation (§4.H): given a
// question, it retrieves contexts, fans out N generator calls under
// distinct sampling profiles, publishes one answer.generated event per
// successful candidate, and replies synchronously with the candidate list.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pattabhia/rlvr-pdf-chat/internal/config"
	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
	"github.com/pattabhia/rlvr-pdf-chat/internal/metrics"
	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/generator"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/retriever"

	"github.com/google/uuid"
)

// maxQuestionBytes enforces the §3 Question invariant: opaque UTF-8
// string at most 4 KiB.
const maxQuestionBytes = 4096

// ErrInvalidRequest is returned for malformed ask_multi input: empty or
// oversized questions, or a candidate count outside (0, MAX_N].
type ErrInvalidRequest struct{ Reason string }

func (e *ErrInvalidRequest) Error() string { return "invalid request: " + e.Reason }

// CandidateResult is one element of the synchronous ask_multi response
// (§6 Orchestrator API).
type CandidateResult struct {
	CandidateIndex int                   `json:"candidate_index"`
	Text           string                `json:"text"`
	AnswerID       string                `json:"answer_id"`
	SamplingParams domain.SamplingParams `json:"sampling_params"`
}

// Response is the synchronous reply to ask_multi (§6).
type Response struct {
	BatchID       string             `json:"batch_id"`
	CorrelationID string             `json:"correlation_id"`
	Candidates    []CandidateResult  `json:"candidates"`
}

// Orchestrator drives retrieval and generation for one question and
// publishes the resulting candidates onto the event bus (§4.H). It is
// the sole producer of answer.generated and the authority on
// expected_count (§9 decision iv): expected_count reflects the number of
// candidates that actually survived generation, not the request's N.
type Orchestrator struct {
	retriever retriever.Retriever
	generator generator.Generator
	schedule  generator.Schedule
	bus       bus.Bus
	log       logger.ILogger
	metrics   *metrics.Metrics

	retrievalTopK    int
	retrievalTimeout time.Duration
	generatorTimeout time.Duration
	publishTimeout   time.Duration
	maxCandidates    int
}

func New(
	r retriever.Retriever,
	g generator.Generator,
	schedule generator.Schedule,
	b bus.Bus,
	log logger.ILogger,
	cfg config.PipelineConfig,
	m *metrics.Metrics,
) *Orchestrator {
	if schedule == nil {
		schedule = generator.DefaultSchedule
	}
	return &Orchestrator{
		retriever:        r,
		generator:        g,
		schedule:         schedule,
		bus:              b,
		log:              log,
		metrics:          m,
		retrievalTopK:    cfg.RetrievalTopK,
		retrievalTimeout: cfg.RetrievalTimeout,
		generatorTimeout: cfg.GeneratorTimeout,
		publishTimeout:   cfg.PublishTimeout,
		maxCandidates:    cfg.MaxCandidates,
	}
}

// AskMulti implements §4.H ask_multi. ctx carries the single request-scoped
// deadline propagated into retrieval, generation and publish calls (§5
// Cancellation); once a candidate is published, cancelling ctx no longer
// reaches the verifier or aggregator (fire-and-forget from the bus).
func (o *Orchestrator) AskMulti(ctx context.Context, question string, n int) (Response, error) {
	if err := validateRequest(question, n, o.maxCandidates); err != nil {
		return Response{}, err
	}

	correlationID := uuid.NewString()
	batchID := uuid.NewString()

	retrieveCtx, cancel := context.WithTimeout(ctx, o.retrievalTimeout)
	contexts, err := o.retriever.Retrieve(retrieveCtx, question, o.retrievalTopK)
	cancel()
	if err != nil {
		o.log.Error("orchestrator", "retrieval failed", logger.Fields{
			CorrelationID: correlationID, BatchID: batchID,
			Details: map[string]interface{}{"error": err.Error()},
		})
		return Response{}, fmt.Errorf("retrieve contexts: %w", err)
	}

	type slot struct {
		index  int
		cand   domain.Candidate
		failed bool
	}
	slots := make([]slot, 0, n)

	for i := 0; i < n; i++ {
		params := o.schedule(i, n)

		genCtx, genCancel := context.WithTimeout(ctx, o.generatorTimeout)
		text, err := o.generator.Generate(genCtx, question, contexts, params)
		genCancel()
		if err != nil {
			o.metrics.DroppedCandidates.WithLabelValues(dropReason(err)).Inc()
			o.log.Warn("orchestrator", "candidate generation dropped", logger.Fields{
				CorrelationID: correlationID, BatchID: batchID,
				Details: map[string]interface{}{"candidate_index": i, "error": err.Error()},
			})
			continue
		}

		slots = append(slots, slot{
			index: i,
			cand: domain.Candidate{
				CandidateIndex: i,
				Text:           text,
				SamplingParams: params,
				AnswerID:       uuid.NewString(),
				CreatedAt:      time.Now(),
			},
		})
	}

	// expected_count reflects only the candidates that survived generation
	// (§4.B, §8 S3): a batch that drops below 2 still emits SFT records,
	// it just never reaches the DPO selector's minimum.
	expectedCount := len(slots)
	result := make([]CandidateResult, 0, expectedCount)

	for _, s := range slots {
		payload := events.AnswerGeneratedPayload{
			AnswerID:       s.cand.AnswerID,
			CandidateIndex: s.cand.CandidateIndex,
			Question:       question,
			Text:           s.cand.Text,
			Temperature:    s.cand.SamplingParams.Temperature,
			TopP:           s.cand.SamplingParams.TopP,
			ExpectedCount:  expectedCount,
		}
		for _, c := range contexts {
			payload.Contexts = append(payload.Contexts, struct {
				SourceID string `json:"source_id"`
				Text     string `json:"text"`
			}{SourceID: c.SourceID, Text: c.Text})
		}

		env, err := events.NewEnvelope(events.AnswerGenerated, correlationID, batchID, payload)
		if err != nil {
			o.log.Error("orchestrator", "failed to build answer.generated envelope", logger.Fields{
				CorrelationID: correlationID, BatchID: batchID,
				Details: map[string]interface{}{"answer_id": s.cand.AnswerID, "error": err.Error()},
			})
			continue
		}

		publishCtx, publishCancel := context.WithTimeout(ctx, o.publishTimeout)
		err = o.bus.Publish(publishCtx, bus.TopicAnswerGenerated, batchID, env)
		publishCancel()
		if err != nil {
			o.log.Error("orchestrator", "failed to publish answer.generated", logger.Fields{
				CorrelationID: correlationID, BatchID: batchID,
				Details: map[string]interface{}{"answer_id": s.cand.AnswerID, "error": err.Error()},
			})
			continue
		}

		result = append(result, CandidateResult{
			CandidateIndex: s.cand.CandidateIndex,
			Text:           s.cand.Text,
			AnswerID:       s.cand.AnswerID,
			SamplingParams: s.cand.SamplingParams,
		})
	}

	o.log.Info("orchestrator", "batch published", logger.Fields{
		CorrelationID: correlationID, BatchID: batchID,
		Details: map[string]interface{}{"requested": n, "published": len(result)},
	})

	return Response{
		BatchID:       batchID,
		CorrelationID: correlationID,
		Candidates:    result,
	}, nil
}

// dropReason classifies a generation failure for the dropped-candidates
// metric (§7), falling back to "other" for anything not one of the
// generator backend's own sentinel errors.
func dropReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrGenerationRefused):
		return "refused"
	default:
		return "other"
	}
}

func validateRequest(question string, n, maxN int) error {
	if utf8.RuneCountInString(question) == 0 {
		return &ErrInvalidRequest{Reason: "question must not be empty"}
	}
	if len(question) > maxQuestionBytes {
		return &ErrInvalidRequest{Reason: fmt.Sprintf("question exceeds %d bytes", maxQuestionBytes)}
	}
	if n <= 0 || n > maxN {
		return &ErrInvalidRequest{Reason: fmt.Sprintf("num_candidates must be in (0, %d]", maxN)}
	}
	return nil
}
