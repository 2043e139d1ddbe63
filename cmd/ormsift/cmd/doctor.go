package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/ormsift/ormsift/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, endpoint, and system resources",
	Long:  "Verify the configuration validates, the generator endpoint answers, and the host has headroom for a concurrent run.",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	fmt.Println("Checking configuration...")
	cfg, _, err := loadConfig()
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return err
	}
	fmt.Println("  ✓ configuration valid")
	fmt.Println()

	fmt.Printf("Checking generator endpoint (%s)...\n", cfg.Generator.BaseURL)
	logger := newLogger(cfg)
	gen, err := newGenerator(cfg, logger)
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	endpointOK := true
	if err := gen.Ping(ctx); err != nil {
		endpointOK = false
		fmt.Printf("  ✗ %v\n", err)
	} else {
		fmt.Println("  ✓ endpoint reachable")
	}
	fmt.Println()

	fmt.Println("System resources:")
	printSystemInfo(ctx, cfg)

	if !endpointOK {
		return fmt.Errorf("generator endpoint unreachable")
	}
	return nil
}

// printSystemInfo reports host capacity against the configured concurrency,
// best-effort: a probe failure prints a warning line, never fails doctor.
func printSystemInfo(ctx context.Context, cfg *config.Config) {
	maxConcurrency := 0
	for name := range cfg.Stages {
		if c := cfg.Stage(name).Concurrency; c > maxConcurrency {
			maxConcurrency = c
		}
	}
	if maxConcurrency == 0 {
		maxConcurrency = config.DefaultStageConfig().Concurrency
	}

	if counts, err := cpu.CountsWithContext(ctx, true); err == nil {
		icon := "✓"
		if counts < maxConcurrency {
			icon = "⚠"
		}
		fmt.Printf("  %s %d logical CPUs (max stage concurrency %d)\n", icon, counts, maxConcurrency)
	} else {
		fmt.Printf("  ⚠ cpu probe failed: %v\n", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fmt.Printf("  ✓ memory: %.1f GB total, %.0f%% used\n",
			float64(vm.Total)/(1<<30), vm.UsedPercent)
	} else {
		fmt.Printf("  ⚠ memory probe failed: %v\n", err)
	}

	if du, err := disk.UsageWithContext(ctx, cfg.Workflow.OutputDir); err == nil {
		icon := "✓"
		if du.UsedPercent > 95 {
			icon = "⚠"
		}
		fmt.Printf("  %s disk at %s: %.0f%% used\n", icon, cfg.Workflow.OutputDir, du.UsedPercent)
	} else if du, err := disk.UsageWithContext(ctx, "."); err == nil {
		fmt.Printf("  ✓ disk: %.0f%% used\n", du.UsedPercent)
	}

	fmt.Printf("  ✓ %s/%s, %d goroutine workers available\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
}
