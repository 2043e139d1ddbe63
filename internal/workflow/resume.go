package workflow

import (
	"fmt"

	"github.com/ormsift/ormsift/internal/core"
)

// ResumePoint names the stage a resumed run starts from and the snapshot
// that seeds its working set.
type ResumePoint struct {
	FromStage   string
	SourceStage string
	Records     []core.Record
}

// FindResumePoint locates the working set for resuming at fromStage: the
// snapshot of the latest completed stage that precedes it in pipeline
// order. The workflow log is consulted first; when it is missing or stale
// the snapshot files themselves decide.
func FindResumePoint(snapshots core.SnapshotStore, log core.LogStore, fromStage string) (*ResumePoint, error) {
	idx := core.StageIndex(fromStage)
	if idx < 0 {
		return nil, core.ErrState(core.CodeStageNotFound, fmt.Sprintf("unknown stage %q", fromStage))
	}
	if idx == 0 {
		return nil, core.ErrState(core.CodeStageNotFound,
			fmt.Sprintf("stage %q has no predecessor; run the pipeline from the start", fromStage))
	}

	source := sourceFromLog(log, idx)
	if source != "" && !snapshots.HasStage(source) {
		source = ""
	}
	if source == "" {
		source = sourceFromSnapshots(snapshots, idx)
	}
	if source == "" {
		return nil, core.ErrState(core.CodeSnapshotNotFound,
			fmt.Sprintf("no snapshot found for any stage before %q", fromStage))
	}

	records, err := snapshots.LoadStage(source)
	if err != nil {
		return nil, err
	}
	return &ResumePoint{FromStage: fromStage, SourceStage: source, Records: records}, nil
}

// sourceFromLog walks the workflow log newest-first for a completed stage
// preceding idx.
func sourceFromLog(log core.LogStore, idx int) string {
	if log == nil {
		return ""
	}
	wl, err := log.Load()
	if err != nil || wl == nil {
		return ""
	}
	for i := len(wl.Stages) - 1; i >= 0; i-- {
		if core.StageIndex(wl.Stages[i].Name) < idx {
			return wl.Stages[i].Name
		}
	}
	return ""
}

// sourceFromSnapshots scans the preceding stages in reverse pipeline order
// for the nearest persisted snapshot.
func sourceFromSnapshots(snapshots core.SnapshotStore, idx int) string {
	order := core.StageOrder()
	for i := idx - 1; i >= 0; i-- {
		if snapshots.HasStage(order[i]) {
			return order[i]
		}
	}
	return ""
}
