package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/config"
	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
	"github.com/pattabhia/rlvr-pdf-chat/internal/metrics"
	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus/memory"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/events"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/generator"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/retriever"

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

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxCandidates:    8,
		RetrievalTopK:    3,
		RetrievalTimeout: time.Second,
		GeneratorTimeout: time.Second,
		PublishTimeout:   time.Second,
	}
}

func demoPassages() []domain.Passage {
	return []domain.Passage{
		{SourceID: "doc#1", Text: "A load balancer distributes incoming traffic across backend servers."},
	}
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestAskMulti_PublishesOneEventPerCandidate(t *testing.T) {
	b := memory.New(nopLogger{})
	defer b.Close()

	var received []events.Envelope
	done := make(chan struct{}, 3)
	err := b.Subscribe(context.Background(), bus.TopicAnswerGenerated, "test", func(ctx context.Context, env events.Envelope) error {
		received = append(received, env)
		done <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	o := New(retriever.NewStaticCorpus(demoPassages()), generator.NewMockGenerator(), generator.DefaultSchedule, b, nopLogger{}, testPipelineConfig(), testMetrics())

	resp, err := o.AskMulti(context.Background(), "What is a load balancer?", 3)
	require.NoError(t, err)
	assert.Len(t, resp.Candidates, 3)
	assert.NotEmpty(t, resp.BatchID)
	assert.NotEmpty(t, resp.CorrelationID)

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for published event")
		}
	}
	assert.Len(t, received, 3)
}

func TestAskMulti_RejectsEmptyQuestion(t *testing.T) {
	b := memory.New(nopLogger{})
	defer b.Close()

	o := New(retriever.NewStaticCorpus(demoPassages()), generator.NewMockGenerator(), generator.DefaultSchedule, b, nopLogger{}, testPipelineConfig(), testMetrics())

	_, err := o.AskMulti(context.Background(), "", 3)
	require.Error(t, err)

	var invalid *ErrInvalidRequest
	require.ErrorAs(t, err, &invalid)
}

func TestAskMulti_RejectsCandidateCountOutOfRange(t *testing.T) {
	b := memory.New(nopLogger{})
	defer b.Close()

	o := New(retriever.NewStaticCorpus(demoPassages()), generator.NewMockGenerator(), generator.DefaultSchedule, b, nopLogger{}, testPipelineConfig(), testMetrics())

	_, err := o.AskMulti(context.Background(), "question", 0)
	require.Error(t, err)

	_, err = o.AskMulti(context.Background(), "question", 100)
	require.Error(t, err)
}

func TestAskMulti_RejectsOversizedQuestion(t *testing.T) {
	b := memory.New(nopLogger{})
	defer b.Close()

	o := New(retriever.NewStaticCorpus(demoPassages()), generator.NewMockGenerator(), generator.DefaultSchedule, b, nopLogger{}, testPipelineConfig(), testMetrics())

	oversized := make([]byte, maxQuestionBytes+1)
	for i := range oversized {
		oversized[i] = 'a'
	}

	_, err := o.AskMulti(context.Background(), string(oversized), 3)
	require.Error(t, err)
}
