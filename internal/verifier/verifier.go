package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/judge"

	"golang.org/x/sync/semaphore"
)

// Verifier consumes answer.generated events and publishes
// verification.completed (§4.D). Each event is handled in isolation;
// judge calls are concurrency-bounded by a semaphore to protect the
// backend from an unbounded fan-out of verifier instances.
type Verifier struct {
	bus          bus.Bus
	judge        *judge.FallbackJudge
	sem          *semaphore.Weighted
	log          logger.ILogger
	maxTry       uint
	judgeTimeout time.Duration
	group        string
}

func New(b bus.Bus, j *judge.FallbackJudge, concurrency int, maxRetries int, judgeTimeout time.Duration, log logger.ILogger) *Verifier {
	return &Verifier{
		bus:          b,
		judge:        j,
		sem:          semaphore.NewWeighted(int64(concurrency)),
		log:          log,
		maxTry:       uint(maxRetries),
		judgeTimeout: judgeTimeout,
		group:        "verifier-worker",
	}
}

func (v *Verifier) Start(ctx context.Context) error {
	return v.bus.Subscribe(ctx, bus.TopicAnswerGenerated, v.group, v.handle)
}

func (v *Verifier) handle(ctx context.Context, env events.Envelope) error {
	var payload events.AnswerGeneratedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		// Poison message: cannot be retried into validity. Ack (return nil)
		// so it doesn't jam the queue.
		v.log.Error("verifier", "failed to unmarshal answer.generated payload", logger.Fields{
			CorrelationID: env.CorrelationID, BatchID: env.BatchID,
			Details: map[string]interface{}{"error": err.Error()},
		})
		return nil
	}

	if err := v.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer v.sem.Release(1)

	contexts := make([]string, 0, len(payload.Contexts))
	for _, c := range payload.Contexts {
		contexts = append(contexts, c.Text)
	}

	judgeCtx, judgeCancel := context.WithTimeout(ctx, v.judgeTimeout)
	result, err := v.judge.ScoreWithRetry(judgeCtx, v.maxTry, payload.Question, contexts, payload.Text)
	judgeCancel()
	if err != nil {
		v.log.Error("verifier", "judge scoring failed after retries", logger.Fields{
			CorrelationID: env.CorrelationID, BatchID: env.BatchID,
			Details: map[string]interface{}{"answer_id": payload.AnswerID, "error": err.Error()},
		})
		return err
	}

	outPayload := events.VerificationCompletedPayload{
		AnswerID:     payload.AnswerID,
		RequestID:    env.EventID,
		Faithfulness: result.Faithfulness,
		Relevancy:    result.Relevancy,
		Overall:      result.Overall,
		Confidence:   string(result.Confidence),
		JudgeMode:    result.Mode,
		RewardHint:   result.RewardHint,
	}

	outEnv, err := events.NewEnvelope(events.VerificationCompleted, env.CorrelationID, env.BatchID, outPayload)
	if err != nil {
		return fmt.Errorf("build verification.completed envelope: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := v.bus.Publish(publishCtx, bus.TopicVerificationCompleted, env.BatchID, outEnv); err != nil {
		return fmt.Errorf("publish verification.completed: %w", err)
	}

	v.log.Info("verifier", "scored candidate", logger.Fields{
		CorrelationID: env.CorrelationID, BatchID: env.BatchID,
		Details: map[string]interface{}{
			"answer_id": payload.AnswerID, "overall": result.Overall, "mode": result.Mode,
		},
	})
	return nil
}
