package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the two logical topics the pipeline moves events
// through (§3, §4.C).
type EventType string

const (
	AnswerGenerated       EventType = "answer.generated"
	VerificationCompleted EventType = "verification.completed"
)

// Envelope is the wire format for every event on the bus (§3). Payload is
// kept as raw JSON so bus implementations never need to know the shape of
// a specific event type.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     EventType       `json:"event_type"`
	CorrelationID string          `json:"correlation_id"`
	BatchID       string          `json:"batch_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// AnswerGeneratedPayload is the payload carried by an answer.generated event.
type AnswerGeneratedPayload struct {
	AnswerID       string  `json:"answer_id"`
	CandidateIndex int     `json:"candidate_index"`
	Question       string  `json:"question"`
	Text           string  `json:"text"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p,omitempty"`
	Contexts       []struct {
		SourceID string `json:"source_id"`
		Text     string `json:"text"`
	} `json:"contexts"`
	ExpectedCount int `json:"expected_count"`
}

// VerificationCompletedPayload is the payload carried by a
// verification.completed event. RequestID references the upstream
// answer.generated event's EventID, per the worker's own correlation
// convention; AnswerID identifies the scored candidate.
type VerificationCompletedPayload struct {
	AnswerID     string   `json:"answer_id"`
	RequestID    string   `json:"request_id"`
	Faithfulness float64  `json:"faithfulness"`
	Relevancy    float64  `json:"relevancy"`
	Overall      float64  `json:"overall"`
	Confidence   string   `json:"confidence"`
	JudgeMode    string   `json:"judge_mode"`
	RewardHint   *float64 `json:"reward_hint,omitempty"`
}

// NewEnvelope marshals payload and stamps a fresh event_id/timestamp.
func NewEnvelope(eventType EventType, correlationID, batchID string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		CorrelationID: correlationID,
		BatchID:       batchID,
		Timestamp:     time.Now(),
		Payload:       raw,
	}, nil
}
