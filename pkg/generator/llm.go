package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/llm"
)

// LLMGenerator drives an llm.LLMProvider with a fixed prompt template
// built from the question and concatenated contexts.
type LLMGenerator struct {
	provider llm.LLMProvider
	model    string
}

func NewLLMGenerator(provider llm.LLMProvider, model string) *LLMGenerator {
	return &LLMGenerator{provider: provider, model: model}
}

func (g *LLMGenerator) Generate(ctx context.Context, question string, contexts []domain.Passage, params domain.SamplingParams) (string, error) {
	var sb strings.Builder
	for _, c := range contexts {
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}

	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s\nAnswer:", sb.String(), question)

	text, err := g.provider.Generate(ctx, prompt,
		llm.WithModel(g.model),
		llm.WithTemperature(params.Temperature),
		llm.WithTopP(params.TopP),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.ErrGenerationTimeout
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationRefused, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrGenerationRefused
	}
	return text, nil
}
