package generator

import (
	"context"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
)

// Generator produces one candidate answer under the given sampling
// parameters (§4.B). The orchestrator calls it N times per batch with
// distinct SamplingParams drawn from a Schedule so candidates diverge.
type Generator interface {
	Generate(ctx context.Context, question string, contexts []domain.Passage, params domain.SamplingParams) (string, error)
}

// Schedule returns the sampling profile for the i-th of n candidates in a
// batch. The default schedule cycles temperature through {0.2, 0.7, 1.0}
// and perturbs top_p, so no two candidates in a small batch sample
// identically (§4.B).
type Schedule func(i, n int) domain.SamplingParams

var defaultTemperatures = []float64{0.2, 0.7, 1.0}

func DefaultSchedule(i, n int) domain.SamplingParams {
	temp := defaultTemperatures[i%len(defaultTemperatures)]
	topP := 0.9 - 0.05*float64(i%3)
	return domain.SamplingParams{Temperature: temp, TopP: topP}
}
