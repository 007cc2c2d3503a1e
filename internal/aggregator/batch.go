package aggregator

import (
	"sync"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/checkpoint"
	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
)

// batchState is the per-batch actor state described in §4.E. Each batch
// has its own mutex so independent batches progress without contending on
// a single global lock.
type batchState struct {
	mu sync.Mutex

	batchID       string
	correlationID string
	question      string
	contexts      []domain.Passage
	expectedCount int

	answers map[string]domain.Candidate
	scores  map[string]domain.Score

	firstSeenAt time.Time
	deadline    time.Time
	timer       *time.Timer
}

func newBatchState(batchID, correlationID, question string, contexts []domain.Passage, expectedCount int, deadline time.Time) *batchState {
	return &batchState{
		batchID:       batchID,
		correlationID: correlationID,
		question:      question,
		contexts:      contexts,
		expectedCount: expectedCount,
		answers:       make(map[string]domain.Candidate),
		scores:        make(map[string]domain.Score),
		firstSeenAt:   time.Now(),
		deadline:      deadline,
	}
}

// fillFromAnswerEvent fills in expected_count, contexts and question the
// first time an answer.generated event is seen for this batch. A
// verification.completed event can reach the aggregator first (§5
// Ordering guarantees: none across candidates) and creates the batch
// entry with these fields unset; isComplete treats expected_count==0 as
// incomplete until an answer event fills it in.
func (b *batchState) fillFromAnswerEvent(expectedCount int, contexts []domain.Passage, question string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.expectedCount == 0 {
		b.expectedCount = expectedCount
	}
	if b.contexts == nil {
		b.contexts = contexts
	}
	if b.question == "" {
		b.question = question
	}
}

// contextsAndQuestion returns the batch's retrieved passages and question
// text, read under lock since fillFromAnswerEvent may set them after
// creation.
func (b *batchState) contextsAndQuestion() ([]domain.Passage, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contexts, b.question
}

// isComplete implements the completion predicate from §4.E: both maps
// must reach expected_count and agree on their keyset.
func (b *batchState) isComplete() bool {
	if b.expectedCount == 0 {
		return false
	}
	if len(b.answers) != b.expectedCount || len(b.scores) != b.expectedCount {
		return false
	}
	for id := range b.answers {
		if _, ok := b.scores[id]; !ok {
			return false
		}
	}
	return true
}

// scoredCandidates returns the join of answers and scores present at
// retirement time — candidates missing either half are dropped (§9 open
// question iii: SFT emission covers only candidates with both an answer
// and a score).
func (b *batchState) scoredCandidates() []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, len(b.scores))
	for id, score := range b.scores {
		if cand, ok := b.answers[id]; ok {
			out = append(out, domain.ScoredCandidate{Candidate: cand, Score: score})
		}
	}
	return out
}

// upsertAnswer records a candidate from an answer.generated event. Returns
// false if answerID was already present (idempotent duplicate delivery).
func (b *batchState) upsertAnswer(answerID string, cand domain.Candidate) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.answers[answerID]; exists {
		return false
	}
	b.answers[answerID] = cand
	return true
}

// upsertScore records a score from a verification.completed event. Returns
// false if answerID was already scored (idempotent duplicate delivery,
// §8 S5).
func (b *batchState) upsertScore(answerID string, score domain.Score) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.scores[answerID]; exists {
		return false
	}
	b.scores[answerID] = score
	return true
}

func (b *batchState) checkComplete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isComplete()
}

func (b *batchState) snapshot() checkpoint.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return checkpoint.Snapshot{
		BatchID:       b.batchID,
		CorrelationID: b.correlationID,
		Question:      b.question,
		ExpectedCount: b.expectedCount,
		AnswersSeen:   len(b.answers),
		ScoresSeen:    len(b.scores),
		FirstSeenAt:   b.firstSeenAt,
		Deadline:      b.deadline,
	}
}

func (b *batchState) retirementCandidates() []domain.ScoredCandidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scoredCandidates()
}
