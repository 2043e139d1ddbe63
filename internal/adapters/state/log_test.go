package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ormsift/ormsift/internal/core"
)

func stageRecord(name string, kind core.StageKind) core.StageRecord {
	return core.StageRecord{
		Name:          name,
		Kind:          kind,
		StartedAt:     time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		DurationMS:    1234,
		InputCount:    100,
		OutputCount:   98,
		ModifiedCount: 12,
		DeletedCount:  2,
		PersistedPath: "/tmp/out/" + name + ".json",
	}
}

// Both backends must satisfy the same contract.
func logStores(t *testing.T) map[string]core.LogStore {
	t.Helper()
	dir := t.TempDir()

	jsonStore := NewJSONLogStore(filepath.Join(dir, "log.json"), "run-1")
	sqliteStore, err := NewSQLiteLogStore(filepath.Join(dir, "log.db"), "run-1")
	if err != nil {
		t.Fatalf("NewSQLiteLogStore: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]core.LogStore{
		"json":   jsonStore,
		"sqlite": sqliteStore,
	}
}

func TestLogStoreEmptyLoad(t *testing.T) {
	for name, store := range logStores(t) {
		t.Run(name, func(t *testing.T) {
			log, err := store.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if log != nil {
				t.Errorf("expected nil log before any append, got %+v", log)
			}
		})
	}
}

func TestLogStoreAppendAndLoad(t *testing.T) {
	for name, store := range logStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Append(stageRecord(core.StageCleaning, core.StageKindCleaning)); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := store.Append(stageRecord(core.StageCompleteness, core.StageKindCheck)); err != nil {
				t.Fatalf("Append: %v", err)
			}

			log, err := store.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if log == nil || log.RunID != "run-1" {
				t.Fatalf("bad log: %+v", log)
			}
			if len(log.Stages) != 2 {
				t.Fatalf("expected 2 stages, got %d", len(log.Stages))
			}
			if log.Stages[0].Name != core.StageCleaning || log.Stages[1].Name != core.StageCompleteness {
				t.Errorf("stage order lost: %+v", log.Stages)
			}

			got := log.Stages[0]
			want := stageRecord(core.StageCleaning, core.StageKindCleaning)
			if got.DurationMS != want.DurationMS || got.DeletedCount != want.DeletedCount ||
				got.PersistedPath != want.PersistedPath || !got.StartedAt.Equal(want.StartedAt) {
				t.Errorf("record fields lost:\ngot  %+v\nwant %+v", got, want)
			}

			if last := log.Last(); last == nil || last.Name != core.StageCompleteness {
				t.Errorf("Last() wrong: %+v", last)
			}
			if found := log.Find(core.StageCleaning); found == nil || found.Kind != core.StageKindCleaning {
				t.Errorf("Find() wrong: %+v", found)
			}
		})
	}
}

func TestSQLiteLogIsolatesRuns(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "log.db")

	first, err := NewSQLiteLogStore(dbPath, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Append(stageRecord(core.StageCleaning, core.StageKindCleaning)); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := NewSQLiteLogStore(dbPath, "run-b")
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	log, err := second.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if log != nil {
		t.Errorf("run-b should not see run-a's stages: %+v", log)
	}
}

func TestNewLogStoreFactory(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewLogStore(BackendJSON, dir, "r"); err != nil {
		t.Errorf("json backend: %v", err)
	}
	s, err := NewLogStore(BackendSQLite, dir, "r")
	if err != nil {
		t.Errorf("sqlite backend: %v", err)
	}
	if err := CloseLogStore(s); err != nil {
		t.Errorf("CloseLogStore: %v", err)
	}
	if _, err := NewLogStore("cassandra", dir, "r"); err == nil {
		t.Error("unknown backend should fail")
	}
}
