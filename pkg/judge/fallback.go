package judge

import (
	"context"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"

	"github.com/cenkalti/backoff/v5"
)

// FallbackJudge tries primary (normally an LLMJudge) first and falls back
// to HeuristicJudge on error, tagging which mode produced the score (§4.D).
// Score tries primary exactly once; ScoreWithRetry gives primary several
// attempts with backoff before giving up on it for this call.
type FallbackJudge struct {
	primary   Judge
	secondary Judge
}

func NewFallbackJudge(primary, secondary Judge) *FallbackJudge {
	return &FallbackJudge{primary: primary, secondary: secondary}
}

// Result bundles a judge verdict with the mode that produced it.
// RewardHint is left nil by both HeuristicJudge and LLMJudge; it exists so
// a future judge backed by a verifiable-reward harness (out of scope here,
// §1) can populate it and have it flow through to the SFT/DPO records
// without any change downstream of FallbackJudge.
type Result struct {
	Faithfulness float64
	Relevancy    float64
	Overall      float64
	Confidence   domain.Confidence
	Mode         string
	RewardHint   *float64
}

func (j *FallbackJudge) Score(ctx context.Context, question string, contexts []string, answer string) (Result, error) {
	faithfulness, relevancy, err := j.primary.Judge(ctx, question, contexts, answer)
	mode := primaryModeLabel(j.primary)
	if err != nil {
		faithfulness, relevancy, err = j.secondary.Judge(ctx, question, contexts, answer)
		mode = "heuristic"
		if err != nil {
			return Result{}, err
		}
	}
	return buildResult(faithfulness, relevancy, mode), nil
}

// rawScore is the tuple backoff.Retry needs a concrete type for; it carries
// nothing beyond what Judge.Judge returns on success.
type rawScore struct {
	faithfulness, relevancy float64
}

// ScoreWithRetry retries the primary judge up to maxTries times with
// backoff before switching to the secondary (§4.D: "transient judge errors
// → retry 3x with backoff; persistent errors → switch to heuristic for
// this event"). The caller (internal/verifier) owns maxTries so it can be
// driven from config.
func (j *FallbackJudge) ScoreWithRetry(ctx context.Context, maxTries uint, question string, contexts []string, answer string) (Result, error) {
	raw, err := backoff.Retry(ctx, func() (rawScore, error) {
		f, r, err := j.primary.Judge(ctx, question, contexts, answer)
		if err != nil {
			return rawScore{}, err
		}
		return rawScore{faithfulness: f, relevancy: r}, nil
	}, backoff.WithMaxTries(maxTries))

	faithfulness, relevancy := raw.faithfulness, raw.relevancy
	mode := primaryModeLabel(j.primary)
	if err != nil {
		faithfulness, relevancy, err = j.secondary.Judge(ctx, question, contexts, answer)
		mode = "heuristic"
		if err != nil {
			return Result{}, err
		}
	}
	return buildResult(faithfulness, relevancy, mode), nil
}

func buildResult(faithfulness, relevancy float64, mode string) Result {
	overall := (faithfulness + relevancy) / 2
	return Result{
		Faithfulness: faithfulness,
		Relevancy:    relevancy,
		Overall:      overall,
		Confidence:   confidenceFor(faithfulness, relevancy),
		Mode:         mode,
	}
}

// primaryModeLabel reports what the primary judge actually is, so a
// deployment that configures HeuristicJudge as its own primary (no LLM
// backend at all, §9 decision) reports judge_mode=heuristic on success
// rather than the misleading "llm".
func primaryModeLabel(j Judge) string {
	if _, ok := j.(*HeuristicJudge); ok {
		return "heuristic"
	}
	return "llm"
}

// confidenceFor buckets a verdict by how much the judge trusts its own
// score: high if both dimensions clear 0.8, low if both are below 0.6,
// medium otherwise (§4.D).
func confidenceFor(faithfulness, relevancy float64) domain.Confidence {
	minScore := faithfulness
	if relevancy < minScore {
		minScore = relevancy
	}
	maxScore := faithfulness
	if relevancy > maxScore {
		maxScore = relevancy
	}

	switch {
	case minScore >= 0.8:
		return domain.ConfidenceHigh
	case maxScore < 0.6:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceMedium
	}
}
