package sink

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSFTSink_WritesOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	s := NewSFTSink(dir, SyncEvery)
	defer s.Close()

	for i := 0; i < 3; i++ {
		rec := domain.SFTRecord{
			Question:  "What is a load balancer?",
			Answer:    "It distributes traffic.",
			Timestamp: time.Now(),
			Metadata:  domain.SFTMetadata{CandidateIndex: i},
		}
		require.NoError(t, s.Write(rec))
	}

	partition := partitionFor(time.Now())
	path := filepath.Join(dir, "training_data_"+partition+".jsonl")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines++
		}
	}
	assert.Equal(t, 3, lines)
}

func TestDPOSink_AppendsToSeparateFile(t *testing.T) {
	dir := t.TempDir()
	s := NewDPOSink(dir, SyncEvery)
	defer s.Close()

	rec := domain.DPORecord{
		Prompt: "What is a load balancer?",
		Chosen: domain.DPOSide{Text: "good answer", Score: 0.9},
	}
	require.NoError(t, s.Write(rec))

	partition := partitionFor(time.Now())
	path := filepath.Join(dir, "dpo_data_"+partition+".jsonl")
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestJSONLSink_SecondInstanceCannotLockSamePartition(t *testing.T) {
	dir := t.TempDir()

	first := New(dir, "training_data", SyncEvery)
	require.NoError(t, first.Append(map[string]string{"a": "1"}))
	defer first.Close()

	second := New(dir, "training_data", SyncEvery)
	err := second.Append(map[string]string{"a": "2"})
	assert.Error(t, err, "a second writer should not be able to acquire the partition's exclusive lock")
}

func TestJSONLSink_CloseReleasesLockForNextWriter(t *testing.T) {
	dir := t.TempDir()

	first := New(dir, "training_data", SyncEvery)
	require.NoError(t, first.Append(map[string]string{"a": "1"}))
	require.NoError(t, first.Close())

	second := New(dir, "training_data", SyncEvery)
	defer second.Close()
	assert.NoError(t, second.Append(map[string]string{"a": "2"}))
}
