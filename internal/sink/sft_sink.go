package sink

import "github.com/pattabhia/rlvr-pdf-chat/internal/domain"

// SFTSink appends SFTRecords to training_data_YYYYMM.jsonl.
type SFTSink struct {
	*JSONLSink
}

func NewSFTSink(dir string, policy SyncPolicy) *SFTSink {
	return &SFTSink{JSONLSink: New(dir, "training_data", policy)}
}

func (s *SFTSink) Write(record domain.SFTRecord) error {
	return s.Append(record)
}
