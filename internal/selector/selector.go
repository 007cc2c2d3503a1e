package selector

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/config"
	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
)

// Selector applies the DPO quality gates to a retired batch's scored
// candidates (§4.F) and tracks rejection-reason statistics. One Selector
// is shared across every open batch, so Stats is guarded by its own mutex
// independent of any per-batch lock.
type Selector struct {
	gates config.GateConfig

	mu    sync.Mutex
	stats Stats
}

// Stats counts gate outcomes across the process lifetime, mirroring the
// running tallies a preference-data writer logs periodically for operators.
type Stats struct {
	TotalAttempted         int
	PairsCreated           int
	RejectedInsufficient   int
	RejectedScoreDiffLow   int
	RejectedChosenScoreLow int
	RejectedVerbatim       int
	RejectedEvasive        int
}

func New(gates config.GateConfig) *Selector {
	return &Selector{gates: gates}
}

// Snapshot returns a copy of the running gate-outcome tallies, safe to
// read while Select runs concurrently for other batches.
func (s *Selector) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Select returns a DPORecord and ReasonNone if every gate passes, or a
// zero record and the rejection reason otherwise. candidates must already
// be restricted to those with both an answer and a score; contexts are the
// batch's retrieved passages, used only by the verbatim-copy gate. timedOut
// distinguishes a batch that never reached completion from one that
// completed with too few scored candidates to form a pair, both of which
// fail the same len(candidates) < 2 check but are operationally distinct
// (§4.E retirement trigger vs §4.F gate outcome).
func (s *Selector) Select(batchID, question string, candidates []domain.ScoredCandidate, contexts []domain.Passage, timedOut bool) (domain.DPORecord, domain.RejectReason) {
	s.bump(func(st *Stats) { st.TotalAttempted++ })

	if len(candidates) < 2 {
		s.bump(func(st *Stats) { st.RejectedInsufficient++ })
		if timedOut {
			return domain.DPORecord{}, domain.ReasonBatchTimedOut
		}
		return domain.DPORecord{}, domain.ReasonInsufficientCandidates
	}

	sorted := make([]domain.ScoredCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Overall != sorted[j].Overall {
			return sorted[i].Overall > sorted[j].Overall
		}
		if sorted[i].Faithfulness != sorted[j].Faithfulness {
			return sorted[i].Faithfulness > sorted[j].Faithfulness
		}
		return sorted[i].CandidateIndex < sorted[j].CandidateIndex
	})

	chosen := sorted[0]
	rejected := sorted[len(sorted)-1]
	scoreDiff := chosen.Overall - rejected.Overall

	if scoreDiff < s.gates.MinScoreDiff {
		s.bump(func(st *Stats) { st.RejectedScoreDiffLow++ })
		return domain.DPORecord{}, domain.ReasonScoreDiffTooSmall
	}
	if chosen.Overall < s.gates.MinChosenScore {
		s.bump(func(st *Stats) { st.RejectedChosenScoreLow++ })
		return domain.DPORecord{}, domain.ReasonChosenScoreTooLow
	}

	if s.gates.EnableVerbatimGate && isVerbatimCopy(chosen.Text, contextTexts(contexts)) {
		s.bump(func(st *Stats) { st.RejectedVerbatim++ })
		return domain.DPORecord{}, domain.ReasonChosenIsVerbatim
	}

	if s.gates.EnableHedgingGate && isEvasive(chosen.Text) {
		s.bump(func(st *Stats) { st.RejectedEvasive++ })
		return domain.DPORecord{}, domain.ReasonChosenIsEvasive
	}

	s.bump(func(st *Stats) { st.PairsCreated++ })
	return domain.DPORecord{
		Prompt:          question,
		Chosen:          domain.DPOSide{Text: chosen.Text, Score: chosen.Overall},
		Rejected:        domain.DPOSide{Text: rejected.Text, Score: rejected.Overall},
		ScoreDifference: scoreDiff,
		Metadata: domain.DPOMetadata{
			BatchID:       batchID,
			ChosenIndex:   chosen.CandidateIndex,
			RejectedIndex: rejected.CandidateIndex,
			CreatedAt:     time.Now(),
		},
	}, domain.ReasonNone
}

func (s *Selector) bump(f func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.stats)
}

func contextTexts(contexts []domain.Passage) []string {
	out := make([]string, len(contexts))
	for i, c := range contexts {
		out[i] = c.Text
	}
	return out
}

// verbatimThreshold is the token-identity ratio above which an answer is
// considered a copy-paste of a context passage rather than a synthesized
// answer (§4.F).
const verbatimThreshold = 0.95

func isVerbatimCopy(answer string, contexts []string) bool {
	answerTokens := strings.Fields(strings.ToLower(answer))
	if len(answerTokens) == 0 {
		return false
	}
	for _, ctx := range contexts {
		ctxTokens := strings.Fields(strings.ToLower(ctx))
		if len(ctxTokens) == 0 {
			continue
		}
		matched := 0
		ctxSet := make(map[string]int)
		for _, t := range ctxTokens {
			ctxSet[t]++
		}
		for _, t := range answerTokens {
			if ctxSet[t] > 0 {
				matched++
				ctxSet[t]--
			}
		}
		if float64(matched)/float64(len(answerTokens)) >= verbatimThreshold {
			return true
		}
	}
	return false
}

// hedgingPhrases and evasivePatterns supplement the verbatim gate with a
// broader evasiveness check, grounded on the original dataset writer's
// quality filter: an answer that hedges rather than commits to content
// should not be chosen even when it scores well.
var hedgingPhrases = []string{
	"unfortunately", "i don't see", "i do not see", "i cannot find",
	"i can't find", "there is no information", "could you please provide more",
	"i don't have enough", "i do not have enough",
}

var evasivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)i'?m not (sure|certain)`),
	regexp.MustCompile(`(?i)without (more|additional) (context|information)`),
}

var actionableIndicators = []string{
	"you can", "to ", "use ", "configure", "set ", "enable", "disable",
	"increase", "decrease", "consider", "recommend", "best practice", "should",
}

func isEvasive(answer string) bool {
	lower := strings.ToLower(answer)

	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			return !hasActionableContent(lower)
		}
	}
	for _, pattern := range evasivePatterns {
		if pattern.MatchString(answer) {
			return !hasActionableContent(lower)
		}
	}
	return false
}

func hasActionableContent(lowerAnswer string) bool {
	if len(lowerAnswer) < 50 {
		return false
	}
	for _, ind := range actionableIndicators {
		if strings.Contains(lowerAnswer, ind) {
			return true
		}
	}
	return false
}
