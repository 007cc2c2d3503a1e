package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// SyncPolicy controls how aggressively a sink flushes to durable storage
// after each append (§4.G).
type SyncPolicy string

const (
	SyncEvery SyncPolicy = "every"
	SyncBatch SyncPolicy = "batch"
	SyncOff   SyncPolicy = "off"
)

// batchFsyncInterval is how often SyncBatch fsyncs when writes are frequent.
const batchFsyncInterval = 50

// JSONLSink is an append-only, month-partitioned JSONL writer (§4.G).
// Each record is one JSON object followed by \n; writes are serialized by
// an in-process mutex and cross-process exclusivity is held via an
// advisory flock on the currently open partition file, so at most one
// writer owns a given partition at a time.
type JSONLSink struct {
	mu          sync.Mutex
	dir         string
	prefix      string
	policy      SyncPolicy
	file        *os.File
	partition   string
	writesSince int
}

func New(dir, prefix string, policy SyncPolicy) *JSONLSink {
	return &JSONLSink{dir: dir, prefix: prefix, policy: policy}
}

func partitionFor(t time.Time) string {
	return t.UTC().Format("200601")
}

// Append writes one record as a single JSON line, rotating to a new
// partition file when the UTC year-month changes.
func (s *JSONLSink) Append(record interface{}) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureFile(partitionFor(time.Now())); err != nil {
		return err
	}

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", s.file.Name(), err)
	}

	switch s.policy {
	case SyncEvery:
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("fsync %s: %w", s.file.Name(), err)
		}
	case SyncBatch:
		s.writesSince++
		if s.writesSince >= batchFsyncInterval {
			s.writesSince = 0
			if err := s.file.Sync(); err != nil {
				return fmt.Errorf("fsync %s: %w", s.file.Name(), err)
			}
		}
	case SyncOff:
		// no-op: durability traded for throughput, operator's choice.
	}

	return nil
}

func (s *JSONLSink) ensureFile(partition string) error {
	if s.file != nil && s.partition == partition {
		return nil
	}
	if s.file != nil {
		unix.Flock(int(s.file.Fd()), unix.LOCK_UN)
		s.file.Close()
		s.file = nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create sink dir %s: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.jsonl", s.prefix, partition))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open sink file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("acquire exclusive lock on %s: another writer owns this partition: %w", path, err)
	}

	s.file = f
	s.partition = partition
	s.writesSince = 0
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	unix.Flock(int(s.file.Fd()), unix.LOCK_UN)
	err := s.file.Close()
	s.file = nil
	return err
}
