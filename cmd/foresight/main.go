package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()
	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newConfigCmd(),
		// Simulation commands
		newSimulateCmd(),
		newStepCmd(),
		newBattleCmd(),
		newStateCmd(),
		newFieldCmd(),
		// Catalog
		newScenariosCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		// Servers
		newServeCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "foresight",
		Short: "Foresight - narrative resonance simulation of possible futures",
		Long: `foresight simulates how arguments and world news shift the probabilities
of a set of competing futures.

Each scenario carries keywords and a core logic. Arguments that mention a
scenario's keywords strengthen it, arguments that contradict its core logic
weaken it, and every step one future is realized and feeds back into the field.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: .foresight/config.yaml, then ~/.foresight/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override: info, debug or trace")

	return rootCmd
}
