package judge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pattabhia/rlvr-pdf-chat/pkg/llm"
)

// LLMJudge prompts an LLM for two numeric rubric scores and parses the
// response defensively (§4.D mode 1). Any parse failure or out-of-range
// value is reported as an error so the caller can fall back to
// HeuristicJudge rather than silently trusting a malformed score.
type LLMJudge struct {
	provider llm.LLMProvider
	model    string
}

func NewLLMJudge(provider llm.LLMProvider, model string) *LLMJudge {
	return &LLMJudge{provider: provider, model: model}
}

var scorePattern = regexp.MustCompile(`(?i)faithfulness\s*[:=]\s*([01](?:\.\d+)?)\D+relevancy\s*[:=]\s*([01](?:\.\d+)?)`)

const judgePromptTemplate = `You are grading an answer for faithfulness to the given context and relevancy to the question.

Question: %s

Context:
%s

Answer: %s

Respond with exactly one line in the form:
faithfulness: <0-1>, relevancy: <0-1>`

func (j *LLMJudge) Judge(ctx context.Context, question string, contexts []string, answer string) (float64, float64, error) {
	prompt := fmt.Sprintf(judgePromptTemplate, question, strings.Join(contexts, "\n\n"), answer)

	raw, err := j.provider.Generate(ctx, prompt, llm.WithModel(j.model), llm.WithTemperature(0))
	if err != nil {
		return 0, 0, fmt.Errorf("judge backend call: %w", err)
	}

	matches := scorePattern.FindStringSubmatch(raw)
	if matches == nil {
		return 0, 0, fmt.Errorf("could not parse judge response: %q", raw)
	}

	faithfulness, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid faithfulness value: %w", err)
	}
	relevancy, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid relevancy value: %w", err)
	}

	if faithfulness < 0 || faithfulness > 1 || relevancy < 0 || relevancy > 1 {
		return 0, 0, fmt.Errorf("judge score out of range: faithfulness=%f relevancy=%f", faithfulness, relevancy)
	}

	return faithfulness, relevancy, nil
}
