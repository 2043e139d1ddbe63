package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ormsift/ormsift/internal/core"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS stage_log (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL,
	name             TEXT NOT NULL,
	kind             TEXT NOT NULL,
	started_at       TEXT NOT NULL,
	duration_ms      INTEGER NOT NULL,
	input_records    INTEGER NOT NULL,
	output_records   INTEGER NOT NULL,
	modified_records INTEGER NOT NULL,
	deleted_records  INTEGER NOT NULL,
	persisted_path   TEXT NOT NULL,
	logged_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_log_run ON stage_log(run_id, id);

INSERT OR IGNORE INTO schema_migrations (version) VALUES (1);
`

// SQLiteLogStore keeps the workflow log in a SQLite database. Useful when
// many runs share one output directory and the log must survive partial
// file writes.
type SQLiteLogStore struct {
	dbPath string
	runID  string
	db     *sql.DB
	mu     sync.Mutex
}

// NewSQLiteLogStore opens (or creates) the log database for a run.
func NewSQLiteLogStore(dbPath, runID string) (*SQLiteLogStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening log database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying log schema: %w", err)
	}

	return &SQLiteLogStore{dbPath: dbPath, runID: runID, db: db}, nil
}

// Append records a completed stage.
func (s *SQLiteLogStore) Append(rec core.StageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO stage_log
			(run_id, name, kind, started_at, duration_ms,
			 input_records, output_records, modified_records, deleted_records,
			 persisted_path, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, rec.Name, string(rec.Kind), rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationMS, rec.InputCount, rec.OutputCount, rec.ModifiedCount,
		rec.DeletedCount, rec.PersistedPath, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting stage record: %w", err)
	}
	return nil
}

// Load returns this run's workflow log, or nil when no stage has completed.
func (s *SQLiteLogStore) Load() (*core.WorkflowLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT name, kind, started_at, duration_ms,
		       input_records, output_records, modified_records, deleted_records,
		       persisted_path, logged_at
		FROM stage_log WHERE run_id = ? ORDER BY id`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("querying stage log: %w", err)
	}
	defer rows.Close()

	log := &core.WorkflowLog{RunID: s.runID}
	for rows.Next() {
		var rec core.StageRecord
		var kind, startedAt, loggedAt string
		if err := rows.Scan(&rec.Name, &kind, &startedAt, &rec.DurationMS,
			&rec.InputCount, &rec.OutputCount, &rec.ModifiedCount, &rec.DeletedCount,
			&rec.PersistedPath, &loggedAt); err != nil {
			return nil, fmt.Errorf("scanning stage record: %w", err)
		}
		rec.Kind = core.StageKind(kind)
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, core.ErrState(core.CodeStateCorrupted,
				fmt.Sprintf("bad started_at in stage log: %v", err))
		}
		if updated, err := time.Parse(time.RFC3339Nano, loggedAt); err == nil && updated.After(log.Updated) {
			log.Updated = updated
		}
		log.Stages = append(log.Stages, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stage log: %w", err)
	}
	if len(log.Stages) == 0 {
		return nil, nil
	}
	return log, nil
}

// Close closes the database connection.
func (s *SQLiteLogStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ core.LogStore = (*SQLiteLogStore)(nil)
