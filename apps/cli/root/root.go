package root

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/runtime"
)

// rootCmd is the base command for the rentals admin CLI. Subcommands (db, payments, etc.) are attached here.
var rootCmd = &cobra.Command{
	Use:           "rentals",
	Short:         "Rentals admin CLI",
	Long:          "Administrative utilities for the lease and rent payment engine (schema bootstrap, schedule generation, late sweeps, reports).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

var options = runtime.FromEnv()

func init() {
	options.Bind(rootCmd)
}

// Execute runs the CLI; cancelling ctx aborts in-flight database work.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}

// Options returns the shared connection settings bound to the persistent flags.
func Options() *runtime.Options {
	return options
}
