package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/pattabhia/rlvr-pdf-chat/pkg/llm"
)

type stubProvider struct {
	text string
	err  error
}

func (p stubProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.text, p.err
}

func (p stubProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.text, p.err
}

func TestLLMJudge_ParsesWellFormedResponse(t *testing.T) {
	j := NewLLMJudge(stubProvider{text: "faithfulness: 0.9, relevancy: 0.8"}, "test-model")

	f, r, err := j.Judge(context.Background(), "q", []string{"c"}, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != 0.9 || r != 0.8 {
		t.Errorf("got faithfulness=%v relevancy=%v, want 0.9 and 0.8", f, r)
	}
}

func TestLLMJudge_RejectsUnparseableResponse(t *testing.T) {
	j := NewLLMJudge(stubProvider{text: "I think this answer is pretty good overall."}, "test-model")

	_, _, err := j.Judge(context.Background(), "q", []string{"c"}, "a")
	if err == nil {
		t.Error("expected an error for an unparseable judge response")
	}
}

func TestLLMJudge_PropagatesProviderError(t *testing.T) {
	wantErr := errors.New("backend unavailable")
	j := NewLLMJudge(stubProvider{err: wantErr}, "test-model")

	_, _, err := j.Judge(context.Background(), "q", []string{"c"}, "a")
	if err == nil {
		t.Error("expected an error when the provider call fails")
	}
}

func TestLLMJudge_RejectsOutOfRangeScore(t *testing.T) {
	j := NewLLMJudge(stubProvider{text: "faithfulness: 1.5, relevancy: 0.5"}, "test-model")

	_, _, err := j.Judge(context.Background(), "q", []string{"c"}, "a")
	if err == nil {
		t.Error("expected an error for an out-of-range score")
	}
}
