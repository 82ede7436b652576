// Package commands implements CLI command handlers for slotbench.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the slotbench command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "slotbench",
		Short: "Slot array stress and inspection tool",
		Long: `slotbench exercises a slot-array backed observer registry under concurrent load.

Commands:
  stress    Run concurrent subscribe/unsubscribe/publish traffic and check invariants
  config    Print the effective configuration
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file (default: ./slotbench.yaml or ./config/slotbench.yaml when present)")

	rootCmd.AddCommand(newStressCommand(&configPath))
	rootCmd.AddCommand(newConfigCommand(&configPath))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
