package db

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/runtime"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/persistence"
)

// Command groups database helpers.
func Command(opts *runtime.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities",
	}

	cmd.AddCommand(bootstrapCommand(opts), historyCommand(opts))
	return cmd
}

func openPool(cmd *cobra.Command, opts *runtime.Options) (*pgxpool.Pool, error) {
	if strings.TrimSpace(opts.DatabaseURL) == "" {
		return nil, fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
	}
	pool, err := persistence.NewPool(cmd.Context(), persistence.PoolConfig{ConnString: opts.DatabaseURL, ApplicationName: "rentals-cli"})
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}
	return pool, nil
}

// bootstrapCommand applies pending migrations. Safe to re-run.
func bootstrapCommand(opts *runtime.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the rentals schema and apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := openPool(cmd, opts)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			applied, err := persistence.Migrate(cmd.Context(), pool, opts.DatabaseSchema)
			if err != nil {
				return fmt.Errorf("bootstrap schema: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "No pending migrations.")
			}
			for _, m := range applied {
				fmt.Fprintf(out, "Applied %s_%s\n", m.Version, m.Name)
			}
			fmt.Fprintf(out, "Schema %q ready.\n", opts.DatabaseSchema)
			return nil
		},
	}
}

func historyCommand(opts *runtime.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the migrations applied to the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := openPool(cmd, opts)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			records, err := persistence.MigrationHistory(cmd.Context(), pool, opts.DatabaseSchema)
			if err != nil {
				return fmt.Errorf("read migration history: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No migrations applied to %q.\n", opts.DatabaseSchema)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Version, r.Name, r.AppliedAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
