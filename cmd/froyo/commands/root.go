package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/actiontracker/pkg/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "froyo",
		Short: "Froyo - converge declared resources and report every action",
		Long: `Froyo converges a tree of declared resources on the local node and keeps
an ordered record of every resource action: what ran, what changed, what
was skipped, what failed and what the run never reached.

Features:
  - Declarations in YAML or CUE
  - only_if / not_if guards written in Starlark
  - Why-run mode to preview changes
  - Run summaries in YAML or JSON
  - SQLite audit trail of past runs
  - Prometheus metrics and OpenTelemetry traces`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "run config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newConvergeCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}

// loadRunConfig loads the run config and applies the global flags.
func loadRunConfig() (*config.RunConfig, error) {
	cfg, err := config.LoadRunConfig(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Report.Format = "json"
	}
	return cfg, nil
}
