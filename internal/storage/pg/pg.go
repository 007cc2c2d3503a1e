// Package pg mirrors emitted SFT and DPO records into Postgres so an
// operator can query training data without tailing JSONL files (§10 of
// SPEC_FULL.md). The JSONL sinks remain the canonical training artifact
// (§4.G); this is a secondary, queryable index, not a replacement.
package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
)

// Store is the audit-mirror contract. Implementations must tolerate being
// skipped entirely: the pipeline's correctness does not depend on this
// mirror succeeding, only the JSONL sinks do.
type Store interface {
	RecordSFT(ctx context.Context, record domain.SFTRecord) error
	RecordDPO(ctx context.Context, record domain.DPORecord) error
}

// sftRecordRow is the gorm row backing one audited SFTRecord. Contexts and
// Metadata are stored as serialized JSON text rather than a schemaless
// column type: the shape is fixed and known at write time, nothing here
// queries into the blob.
type sftRecordRow struct {
	ID             string `gorm:"primaryKey"`
	BatchID        string `gorm:"index"`
	CandidateIndex int
	Question       string
	Answer         string
	ContextsJSON   string
	Faithfulness   float64
	Relevancy      float64
	Overall        float64
	Confidence     string
	JudgeMode      string
	Timestamp      time.Time
	CreatedAt      time.Time
}

// dpoRecordRow is the gorm row backing one audited DPORecord.
type dpoRecordRow struct {
	ID              string `gorm:"primaryKey"`
	BatchID         string `gorm:"index"`
	Prompt          string
	ChosenText      string
	ChosenScore     float64
	ChosenIndex     int
	RejectedText    string
	RejectedScore   float64
	RejectedIndex   int
	ScoreDifference float64
	CreatedAt       time.Time
}

// GormStore is the Postgres-backed Store, adapted from the teacher's
// pkg/database GORM bootstrap and internal/entity row shapes.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&sftRecordRow{}, &dpoRecordRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) RecordSFT(ctx context.Context, record domain.SFTRecord) error {
	contexts, err := json.Marshal(record.Contexts)
	if err != nil {
		return err
	}

	row := sftRecordRow{
		ID:             uuid.NewString(),
		BatchID:        record.Metadata.BatchID,
		CandidateIndex: record.Metadata.CandidateIndex,
		Question:       record.Question,
		Answer:         record.Answer,
		ContextsJSON:   string(contexts),
		Faithfulness:   record.Verification.Faithfulness,
		Relevancy:      record.Verification.Relevancy,
		Overall:        record.Verification.Overall,
		Confidence:     string(record.Verification.Confidence),
		JudgeMode:      record.Metadata.JudgeMode,
		Timestamp:      record.Timestamp,
		CreatedAt:      time.Now(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) RecordDPO(ctx context.Context, record domain.DPORecord) error {
	row := dpoRecordRow{
		ID:              uuid.NewString(),
		BatchID:         record.Metadata.BatchID,
		Prompt:          record.Prompt,
		ChosenText:      record.Chosen.Text,
		ChosenScore:     record.Chosen.Score,
		ChosenIndex:     record.Metadata.ChosenIndex,
		RejectedText:    record.Rejected.Text,
		RejectedScore:   record.Rejected.Score,
		RejectedIndex:   record.Metadata.RejectedIndex,
		ScoreDifference: record.ScoreDifference,
		CreatedAt:       record.Metadata.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// NoopStore discards records. Selected when no database connection is
// configured: the JSONL sinks alone remain authoritative.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) RecordSFT(ctx context.Context, record domain.SFTRecord) error { return nil }
func (NoopStore) RecordDPO(ctx context.Context, record domain.DPORecord) error { return nil }
