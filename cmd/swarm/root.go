package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var settingsPath string

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Swarm - LLM worker orchestration engine",
	Long: `Swarm coordinates many independent LLM worker executions into
functional operations: map, filter, reduce, and bestOf, with retry,
verification, and bounded concurrency. Pipelines chain these operations
into multi-stage workflows declared in YAML.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling. An interrupt
// cancels the context; in-flight retries and gate waits observe it.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "swarm.yaml", "Path to the settings file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}
