package judge

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubJudge struct {
	faithfulness, relevancy float64
	err                     error
}

func (s stubJudge) Judge(ctx context.Context, question string, contexts []string, answer string) (float64, float64, error) {
	return s.faithfulness, s.relevancy, s.err
}

func TestFallbackJudge_UsesPrimaryWhenHealthy(t *testing.T) {
	fb := NewFallbackJudge(stubJudge{faithfulness: 0.9, relevancy: 0.8}, stubJudge{faithfulness: 0.1, relevancy: 0.1})

	result, err := fb.Score(context.Background(), "q", nil, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Mode != "llm" {
		t.Errorf("expected mode llm, got %q", result.Mode)
	}
	if math.Abs(result.Overall-0.85) > 1e-9 {
		t.Errorf("expected overall 0.85, got %v", result.Overall)
	}
}

func TestFallbackJudge_FallsBackOnPrimaryError(t *testing.T) {
	fb := NewFallbackJudge(
		stubJudge{err: errors.New("primary backend down")},
		stubJudge{faithfulness: 0.5, relevancy: 0.5},
	)

	result, err := fb.Score(context.Background(), "q", nil, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Mode != "heuristic" {
		t.Errorf("expected mode heuristic, got %q", result.Mode)
	}
}

func TestFallbackJudge_ReturnsErrorWhenBothFail(t *testing.T) {
	fb := NewFallbackJudge(
		stubJudge{err: errors.New("primary down")},
		stubJudge{err: errors.New("secondary down too")},
	)

	_, err := fb.Score(context.Background(), "q", nil, "a")
	if err == nil {
		t.Error("expected an error when both judges fail")
	}
}

func TestConfidenceFor(t *testing.T) {
	tests := []struct {
		name                    string
		faithfulness, relevancy float64
		want                    string
	}{
		{"both high", 0.9, 0.85, "high"},
		{"one low", 0.9, 0.5, "medium"},
		{"both low", 0.5, 0.4, "low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidenceFor(tt.faithfulness, tt.relevancy)
			if string(got) != tt.want {
				t.Errorf("confidenceFor(%v, %v) = %v, want %v", tt.faithfulness, tt.relevancy, got, tt.want)
			}
		})
	}
}
