package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// serviceVersion is reported in traces.
	serviceVersion = "dev"
)

// errDrift is returned by check when the live service differs from the
// desired state.
var errDrift = errors.New("live state differs from desired state")

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error returned by Execute to a process exit code: 2 when
// check found differences, 1 otherwise.
func ExitCode(err error) int {
	if errors.Is(err, errDrift) {
		return 2
	}
	return 1
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	serviceVersion = version

	rootCmd := &cobra.Command{
		Use:   "ciadmin",
		Short: "ciadmin - declarative administration of CI deployment resources",
		Long: `ciadmin keeps the roles, hooks and worker types of a CI deployment in line
with a declarative description.

The desired state is written in CUE and may be extended by Starlark
generators. ciadmin lists the live resources it manages, computes the
creates, updates and deletes required to converge, checks the plan against
policy and applies it one call at a time, stopping at the first failure.

Features:
  - Typed desired state via CUE
  - Generated resources via Starlark
  - Rego policies evaluated before every apply
  - Run history in a local SQLite database
  - Prometheus metrics and OpenTelemetry traces`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path (default ciadmin.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
