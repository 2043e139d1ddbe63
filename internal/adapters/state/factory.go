package state

import (
	"fmt"
	"path/filepath"

	"github.com/ormsift/ormsift/internal/core"
)

// Log store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// NewLogStore creates a workflow log store in dir for the given run.
func NewLogStore(backend, dir, runID string) (core.LogStore, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONLogStore(filepath.Join(dir, "workflow_log.json"), runID), nil
	case BackendSQLite:
		return NewSQLiteLogStore(filepath.Join(dir, "workflow_log.db"), runID)
	default:
		return nil, core.ErrConfig(core.CodeInvalidConfig,
			fmt.Sprintf("unknown log backend %q (want %s or %s)", backend, BackendJSON, BackendSQLite))
	}
}

// Closeable is an optional interface for stores that need cleanup.
type Closeable interface {
	Close() error
}

// CloseLogStore safely closes a LogStore if it implements Closeable.
func CloseLogStore(s core.LogStore) error {
	if closeable, ok := s.(Closeable); ok {
		return closeable.Close()
	}
	return nil
}
