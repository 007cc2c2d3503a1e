package verifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus/memory"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/judge"

	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, logger.Fields) {}
func (nopLogger) Info(string, string, logger.Fields)  {}
func (nopLogger) Warn(string, string, logger.Fields)  {}
func (nopLogger) Error(string, string, logger.Fields) {}
func (nopLogger) Sync() error                         { return nil }

func TestVerifier_PublishesVerificationCompleted(t *testing.T) {
	b := memory.New(nopLogger{})
	defer b.Close()

	j := judge.NewFallbackJudge(judge.NewHeuristicJudge(), judge.NewHeuristicJudge())
	v := New(b, j, 2, 3, time.Second, nopLogger{})

	received := make(chan events.VerificationCompletedPayload, 1)
	err := b.Subscribe(context.Background(), bus.TopicVerificationCompleted, "test", func(ctx context.Context, env events.Envelope) error {
		var payload events.VerificationCompletedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return err
		}
		received <- payload
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, v.Start(context.Background()))

	payload := events.AnswerGeneratedPayload{
		AnswerID:      "ans-1",
		Question:      "What is a load balancer?",
		Text:          "A load balancer distributes traffic across backend servers.",
		ExpectedCount: 1,
	}
	env, err := events.NewEnvelope(events.AnswerGenerated, "corr-1", "batch-1", payload)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), bus.TopicAnswerGenerated, "batch-1", env))

	select {
	case got := <-received:
		require.Equal(t, "ans-1", got.AnswerID)
		require.Equal(t, "heuristic", got.JudgeMode)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for verification.completed")
	}
}
