package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
)

// MockGenerator answers deterministically from the retrieved contexts,
// varying the wording with temperature so candidates in a batch diverge
// enough for the judge to produce real score variance. It stands in for
// the LLM generation backend the pipeline treats as an external
// collaborator (§1 Out of scope).
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (g *MockGenerator) Generate(ctx context.Context, question string, contexts []domain.Passage, params domain.SamplingParams) (string, error) {
	if len(contexts) == 0 {
		return "I don't see enough information to answer that.", nil
	}

	best := contexts[0]

	switch {
	case params.Temperature <= 0.3:
		return fmt.Sprintf("Based on the available context, %s", firstSentence(best.Text)), nil
	case params.Temperature <= 0.8:
		return fmt.Sprintf("%s In short: %s", firstSentence(best.Text), strings.ToLower(question)), nil
	default:
		return fmt.Sprintf("It's worth noting that the sources suggest: %s", firstSentence(best.Text)), nil
	}
}

func firstSentence(text string) string {
	if idx := strings.IndexAny(text, ".\n"); idx > 0 {
		return strings.TrimSpace(text[:idx+1])
	}
	return strings.TrimSpace(text)
}
