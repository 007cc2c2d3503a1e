package selector

import (
	"testing"

	"github.com/pattabhia/rlvr-pdf-chat/internal/config"
	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultGates() config.GateConfig {
	return config.GateConfig{
		MinScoreDiff:       0.3,
		MinChosenScore:     0.7,
		EnableVerbatimGate: true,
		EnableHedgingGate:  true,
	}
}

func candidate(index int, text string, overall, faithfulness float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{
		Candidate: domain.Candidate{CandidateIndex: index, Text: text},
		Score:     domain.Score{Overall: overall, Faithfulness: faithfulness},
	}
}

func TestSelect_HappyPath(t *testing.T) {
	s := New(defaultGates())

	candidates := []domain.ScoredCandidate{
		candidate(0, "A load balancer spreads traffic across backend servers to avoid overload.", 0.9, 0.9),
		candidate(1, "I'm not sure, could you please provide more details?", 0.4, 0.4),
	}

	record, reason := s.Select("batch-1", "What is a load balancer?", candidates, nil, false)

	require.Equal(t, domain.ReasonNone, reason)
	assert.Equal(t, candidates[0].Text, record.Chosen.Text)
	assert.Equal(t, candidates[1].Text, record.Rejected.Text)
	assert.InDelta(t, 0.5, record.ScoreDifference, 1e-9)
	assert.Equal(t, 1, s.Snapshot().PairsCreated)
}

func TestSelect_InsufficientCandidates(t *testing.T) {
	s := New(defaultGates())

	_, reason := s.Select("batch-2", "q", []domain.ScoredCandidate{candidate(0, "only one", 0.9, 0.9)}, nil, false)

	assert.Equal(t, domain.ReasonInsufficientCandidates, reason)
	assert.Equal(t, 1, s.Snapshot().RejectedInsufficient)
}

func TestSelect_TimedOutBatchReportsDistinctReason(t *testing.T) {
	s := New(defaultGates())

	_, reason := s.Select("batch-timeout", "q", []domain.ScoredCandidate{candidate(0, "only one", 0.9, 0.9)}, nil, true)

	assert.Equal(t, domain.ReasonBatchTimedOut, reason)
	assert.Equal(t, 1, s.Snapshot().RejectedInsufficient)
}

func TestSelect_ScoreDiffTooSmall(t *testing.T) {
	s := New(defaultGates())

	candidates := []domain.ScoredCandidate{
		candidate(0, "answer one", 0.85, 0.85),
		candidate(1, "answer two", 0.80, 0.80),
	}

	_, reason := s.Select("batch-3", "q", candidates, nil, false)

	assert.Equal(t, domain.ReasonScoreDiffTooSmall, reason)
	assert.Equal(t, 1, s.Snapshot().RejectedScoreDiffLow)
}

func TestSelect_ChosenScoreTooLow(t *testing.T) {
	s := New(defaultGates())

	candidates := []domain.ScoredCandidate{
		candidate(0, "answer one", 0.5, 0.5),
		candidate(1, "answer two", 0.1, 0.1),
	}

	_, reason := s.Select("batch-4", "q", candidates, nil, false)

	assert.Equal(t, domain.ReasonChosenScoreTooLow, reason)
	assert.Equal(t, 1, s.Snapshot().RejectedChosenScoreLow)
}

func TestSelect_VerbatimGate(t *testing.T) {
	s := New(defaultGates())

	passage := "A load balancer distributes incoming network traffic across multiple backend servers so no single server is overwhelmed"
	contexts := []domain.Passage{{SourceID: "doc#1", Text: passage}}

	candidates := []domain.ScoredCandidate{
		candidate(0, passage, 0.95, 0.95),
		candidate(1, "Something else entirely, written in different words.", 0.4, 0.4),
	}

	_, reason := s.Select("batch-5", "q", candidates, contexts, false)

	assert.Equal(t, domain.ReasonChosenIsVerbatim, reason)
	assert.Equal(t, 1, s.Snapshot().RejectedVerbatim)
}

func TestSelect_VerbatimGateDisabled(t *testing.T) {
	gates := defaultGates()
	gates.EnableVerbatimGate = false
	s := New(gates)

	passage := "A load balancer distributes incoming network traffic across multiple backend servers so no single server is overwhelmed"
	contexts := []domain.Passage{{SourceID: "doc#1", Text: passage}}

	candidates := []domain.ScoredCandidate{
		candidate(0, passage, 0.95, 0.95),
		candidate(1, "Something else entirely, written in different words.", 0.4, 0.4),
	}

	_, reason := s.Select("batch-6", "q", candidates, contexts, false)

	assert.Equal(t, domain.ReasonNone, reason)
}

func TestSelect_EvasiveGate(t *testing.T) {
	s := New(defaultGates())

	candidates := []domain.ScoredCandidate{
		candidate(0, "Unfortunately I don't have enough information available regarding this particular subject right now.", 0.9, 0.9),
		candidate(1, "Short answer.", 0.4, 0.4),
	}

	_, reason := s.Select("batch-7", "q", candidates, nil, false)

	assert.Equal(t, domain.ReasonChosenIsEvasive, reason)
	assert.Equal(t, 1, s.Snapshot().RejectedEvasive)
}

func TestSelect_HedgingButActionableIsNotEvasive(t *testing.T) {
	s := New(defaultGates())

	longActionable := "Unfortunately there is no single setting; you can configure the load balancer to use least-connections, " +
		"increase the health check interval, and consider enabling sticky sessions depending on your workload."

	candidates := []domain.ScoredCandidate{
		candidate(0, longActionable, 0.9, 0.9),
		candidate(1, "Short answer.", 0.4, 0.4),
	}

	_, reason := s.Select("batch-8", "q", candidates, nil, false)

	assert.Equal(t, domain.ReasonNone, reason)
}
