package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
)

// StaticCorpus is a deterministic, in-memory Retriever over a fixed set of
// passages, scored by bag-of-words token overlap with the question. It
// stands in for the vector store the pipeline treats as an external
// collaborator (§1 Out of scope): enough to exercise the orchestrator and
// tests without a live embedding backend.
type StaticCorpus struct {
	passages []domain.Passage
}

func NewStaticCorpus(passages []domain.Passage) *StaticCorpus {
	return &StaticCorpus{passages: passages}
}

func (c *StaticCorpus) Retrieve(ctx context.Context, question string, k int) ([]domain.Passage, error) {
	qTokens := tokenSet(question)

	scored := make([]domain.Passage, len(c.passages))
	copy(scored, c.passages)
	for i := range scored {
		scored[i].Score = overlapScore(qTokens, tokenSet(scored[i].Text))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,!?;:\"'()")] = struct{}{}
	}
	return set
}

func overlapScore(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	hits := 0
	for t := range a {
		if _, ok := b[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}
