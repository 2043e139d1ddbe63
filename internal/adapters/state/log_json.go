package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ormsift/ormsift/internal/core"
)

// JSONLogStore keeps the workflow log in a single JSON file, rewritten
// atomically on every append.
type JSONLogStore struct {
	path  string
	runID string
}

// NewJSONLogStore creates a JSON-backed log store for a run.
func NewJSONLogStore(path, runID string) *JSONLogStore {
	return &JSONLogStore{path: path, runID: runID}
}

// Append records a completed stage.
func (s *JSONLogStore) Append(rec core.StageRecord) error {
	log, err := s.Load()
	if err != nil {
		return err
	}
	if log == nil {
		log = &core.WorkflowLog{RunID: s.runID}
	}
	log.Stages = append(log.Stages, rec)
	log.Updated = time.Now().UTC()

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling workflow log: %w", err)
	}
	if err := atomicWriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing workflow log: %w", err)
	}
	return nil
}

// Load returns the workflow log, or nil when none exists yet.
func (s *JSONLogStore) Load() (*core.WorkflowLog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading workflow log: %w", err)
	}

	var log core.WorkflowLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("workflow log undecodable: %v", err))
	}
	return &log, nil
}

// Path returns the log file path.
func (s *JSONLogStore) Path() string {
	return s.path
}

var _ core.LogStore = (*JSONLogStore)(nil)
