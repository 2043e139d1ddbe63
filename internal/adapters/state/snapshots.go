// Package state persists stage snapshots and the workflow log. Snapshots
// are plain JSON files written atomically; the log has JSON and SQLite
// backends.
package state

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ormsift/ormsift/internal/core"
)

// FileSnapshotStore writes one snapshot file per stage under a run
// directory. Snapshot bytes are a pure function of the records, so two runs
// that produce the same records produce identical files.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates a snapshot store rooted at dir.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

// snapshotEnvelope wraps stage records with an integrity checksum.
type snapshotEnvelope struct {
	Version  int             `json:"version"`
	Stage    string          `json:"stage"`
	Checksum string          `json:"checksum"`
	Records  json.RawMessage `json:"records"`
}

// SaveStage persists the stage's records atomically and returns the path.
func (s *FileSnapshotStore) SaveStage(stage string, records []core.Record) (string, error) {
	recordBytes, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshaling records: %w", err)
	}

	envelope := snapshotEnvelope{
		Version:  1,
		Stage:    stage,
		Checksum: recordChecksum(recordBytes),
		Records:  recordBytes,
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}

	path := s.StagePath(stage)
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}

// LoadStage reads a stage snapshot back, verifying the checksum.
func (s *FileSnapshotStore) LoadStage(stage string) ([]core.Record, error) {
	data, err := os.ReadFile(s.StagePath(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrState(core.CodeSnapshotNotFound,
				fmt.Sprintf("no snapshot for stage %q", stage))
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("snapshot for stage %q is not valid JSON: %v", stage, err))
	}

	if recordChecksum(envelope.Records) != envelope.Checksum {
		return nil, core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("snapshot for stage %q failed checksum verification", stage))
	}

	var records []core.Record
	if err := json.Unmarshal(envelope.Records, &records); err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("snapshot records for stage %q undecodable: %v", stage, err))
	}
	return records, nil
}

// SaveStats persists per-stage statistics next to the snapshot.
func (s *FileSnapshotStore) SaveStats(stage string, stats any) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	path := filepath.Join(s.dir, stage+"_stats.json")
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// recordChecksum hashes the compact form so the stored indentation does
// not affect verification.
func recordChecksum(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:])
}

// HasStage reports whether a snapshot exists for the stage.
func (s *FileSnapshotStore) HasStage(stage string) bool {
	_, err := os.Stat(s.StagePath(stage))
	return err == nil
}

// StagePath returns the snapshot file path for a stage.
func (s *FileSnapshotStore) StagePath(stage string) string {
	return filepath.Join(s.dir, stage+".json")
}

// Dir returns the snapshot directory.
func (s *FileSnapshotStore) Dir() string {
	return s.dir
}

var _ core.SnapshotStore = (*FileSnapshotStore)(nil)
