package checkpoint

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// batchCheckpoint is the gorm row backing one open-batch Snapshot.
type batchCheckpoint struct {
	BatchID       string `gorm:"primaryKey"`
	CorrelationID string
	Question      string
	ExpectedCount int
	AnswersSeen   int
	ScoresSeen    int
	FirstSeenAt   time.Time
	Deadline      time.Time
	UpdatedAt     time.Time
}

// GormStore persists open-batch checkpoints to a relational database
// (Postgres in production, per the teacher's driver choice). It is the
// durable counterpart to the in-memory aggregator table described in §4.E.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&batchCheckpoint{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Upsert(ctx context.Context, snap Snapshot) error {
	row := batchCheckpoint{
		BatchID:       snap.BatchID,
		CorrelationID: snap.CorrelationID,
		Question:      snap.Question,
		ExpectedCount: snap.ExpectedCount,
		AnswersSeen:   snap.AnswersSeen,
		ScoresSeen:    snap.ScoresSeen,
		FirstSeenAt:   snap.FirstSeenAt,
		Deadline:      snap.Deadline,
		UpdatedAt:     time.Now(),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, batchID string) error {
	return s.db.WithContext(ctx).Delete(&batchCheckpoint{}, "batch_id = ?", batchID).Error
}

func (s *GormStore) ListOpen(ctx context.Context) ([]Snapshot, error) {
	var rows []batchCheckpoint
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Snapshot, len(rows))
	for i, r := range rows {
		out[i] = Snapshot{
			BatchID:       r.BatchID,
			CorrelationID: r.CorrelationID,
			Question:      r.Question,
			ExpectedCount: r.ExpectedCount,
			AnswersSeen:   r.AnswersSeen,
			ScoresSeen:    r.ScoresSeen,
			FirstSeenAt:   r.FirstSeenAt,
			Deadline:      r.Deadline,
		}
	}
	return out, nil
}
