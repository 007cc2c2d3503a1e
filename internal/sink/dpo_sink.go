package sink

import "github.com/pattabhia/rlvr-pdf-chat/internal/domain"

// DPOSink appends DPORecords to dpo_data_YYYYMM.jsonl.
type DPOSink struct {
	*JSONLSink
}

func NewDPOSink(dir string, policy SyncPolicy) *DPOSink {
	return &DPOSink{JSONLSink: New(dir, "dpo_data", policy)}
}

func (s *DPOSink) Write(record domain.DPORecord) error {
	return s.Append(record)
}
