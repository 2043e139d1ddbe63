package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/fsutil"
)

// LoadDataset reads the input working set: a JSON array of records in the
// dataset wire format.
func LoadDataset(path string) ([]core.Record, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, core.ErrInput(fmt.Sprintf("reading dataset %s: %v", path, err))
	}
	var records []core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, core.ErrInput(fmt.Sprintf("parsing dataset %s: %v", path, err))
	}
	if len(records) == 0 {
		return nil, core.ErrInput(fmt.Sprintf("dataset %s holds no records", path))
	}
	return records, nil
}
