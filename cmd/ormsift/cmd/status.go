package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ormsift/ormsift/internal/adapters/state"
	"github.com/ormsift/ormsift/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress",
	Long:  "Show which stages have persisted snapshots and the recorded stage history.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	snaps, logStore, err := openStores(cfg, uuid.NewString())
	if err != nil {
		return err
	}
	defer func() { _ = state.CloseLogStore(logStore) }()

	fmt.Println("Stages:")
	for _, name := range core.StageOrder() {
		icon := "○"
		if snaps.HasStage(name) {
			icon = "✓"
		}
		fmt.Printf("  %s %s\n", icon, name)
	}
	fmt.Println()

	wl, err := logStore.Load()
	if err != nil {
		return err
	}
	if wl == nil || len(wl.Stages) == 0 {
		fmt.Println("No recorded run history.")
		return nil
	}

	fmt.Printf("Run %s (updated %s):\n", wl.RunID, wl.Updated.Format(time.RFC3339))
	for _, st := range wl.Stages {
		fmt.Printf("  %-24s in %4d  out %4d  modified %4d  deleted %4d  (%dms)\n",
			st.Name, st.InputCount, st.OutputCount, st.ModifiedCount, st.DeletedCount, st.DurationMS)
	}
	return nil
}
