package main

import (
	"github.com/spf13/cobra"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "wdrc",
	Short: "wdrc - capture field-level changes of knowledge-base items",
	Long: "wdrc polls the recent-changes feed of a Wikibase replica, diffs the changed revisions, " +
		"and records label, description, alias, sitelink and statement changes in a local store.",
	SilenceUsage: true,
	Version:      version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to the configuration file")

	rootCmd.AddCommand(newBotCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newChangesCmd())
	rootCmd.AddCommand(newWatermarkCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newMCPCmd())
}
