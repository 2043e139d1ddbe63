package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormsift/ormsift/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  "Write .ormsift.yaml with every tunable spelled out at its default.",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = ".ormsift.yaml"
	}
	if err := config.WriteDefault(path, initForce); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
