package domain

import "time"

// Passage is one retrieved context chunk backing a question (§3).
type Passage struct {
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// SamplingParams perturbs the generator across candidates in a batch so
// answers diverge enough for the judge to produce real score variance.
type SamplingParams struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
}

// Candidate is one generated answer within a batch (§3). CandidateIndex is
// unique within a batch; AnswerID is globally unique.
type Candidate struct {
	CandidateIndex int            `json:"candidate_index"`
	Text           string         `json:"text"`
	SamplingParams SamplingParams `json:"sampling_params"`
	AnswerID       string         `json:"answer_id"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Confidence buckets a scored candidate by how much the judge trusts its
// own score (three buckets, §4.D).
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score holds a judge's verdict on one candidate.
type Score struct {
	AnswerID      string     `json:"answer_id"`
	Faithfulness  float64    `json:"faithfulness"`
	Relevancy     float64    `json:"relevancy"`
	Overall       float64    `json:"overall"`
	Confidence    Confidence `json:"confidence"`
	JudgeMode     string     `json:"judge_mode"`
	RewardHint    *float64   `json:"reward_hint,omitempty"`
	ScoredAt      time.Time  `json:"scored_at"`
}

// ScoredCandidate is a Candidate joined with its Score, the unit the
// aggregator retires and the selector reads.
type ScoredCandidate struct {
	Candidate
	Score
}

// Batch is one question's in-flight fan-out/fan-in unit (§3).
type Batch struct {
	BatchID       string    `json:"batch_id"`
	CorrelationID string    `json:"correlation_id"`
	Question      string    `json:"question"`
	Contexts      []Passage `json:"contexts"`
	ExpectedCount int       `json:"expected_count"`
	CreatedAt     time.Time `json:"created_at"`
	Deadline      time.Time `json:"deadline"`
}

// SFTVerification mirrors the scoring block embedded in an SFTRecord.
type SFTVerification struct {
	Faithfulness float64    `json:"faithfulness"`
	Relevancy    float64    `json:"relevancy"`
	Overall      float64    `json:"overall"`
	Confidence   Confidence `json:"confidence"`
}

// SFTMetadata carries the provenance fields of an SFTRecord.
type SFTMetadata struct {
	BatchID        string         `json:"batch_id"`
	CandidateIndex int            `json:"candidate_index"`
	SamplingParams SamplingParams `json:"sampling_params"`
	JudgeMode      string         `json:"judge_mode"`
	RewardHint     *float64       `json:"reward_hint,omitempty"`
}

// SFTRecord is one supervised fine-tuning training example (§3), emitted
// once per scored candidate regardless of whether the batch yields a DPO
// pair.
type SFTRecord struct {
	Question     string          `json:"question"`
	Answer       string          `json:"answer"`
	Contexts     []Passage       `json:"contexts"`
	Verification SFTVerification `json:"verification"`
	Metadata     SFTMetadata     `json:"metadata"`
	Timestamp    time.Time       `json:"timestamp"`
}

// DPOSide is one half (chosen or rejected) of a preference pair.
type DPOSide struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// DPOMetadata carries the provenance fields of a DPORecord.
type DPOMetadata struct {
	BatchID       string    `json:"batch_id"`
	ChosenIndex   int       `json:"chosen_index"`
	RejectedIndex int       `json:"rejected_index"`
	CreatedAt     time.Time `json:"created_at"`
}

// DPORecord is at most one preference pair per batch (§3/§4.F).
type DPORecord struct {
	Prompt         string      `json:"prompt"`
	Chosen         DPOSide     `json:"chosen"`
	Rejected       DPOSide     `json:"rejected"`
	ScoreDifference float64    `json:"score_difference"`
	Metadata       DPOMetadata `json:"metadata"`
}

// RejectReason explains why a batch produced no DPO pair.
type RejectReason string

const (
	ReasonNone                 RejectReason = ""
	ReasonScoreDiffTooSmall    RejectReason = "score_diff_too_small"
	ReasonChosenScoreTooLow    RejectReason = "chosen_score_too_low"
	ReasonChosenIsVerbatim     RejectReason = "chosen_is_verbatim"
	ReasonChosenIsEvasive      RejectReason = "chosen_is_evasive"
	ReasonInsufficientCandidates RejectReason = "insufficient_candidates"
	ReasonBatchTimedOut        RejectReason = "batch_timed_out"
)
