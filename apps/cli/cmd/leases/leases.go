package leases

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/runtime"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/requesttrace"
)

// Command groups lease contract maintenance.
func Command(opts *runtime.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leases",
		Short: "Lease contract maintenance",
	}

	cmd.AddCommand(expireCommand(opts))
	return cmd
}

func expireCommand(opts *runtime.Options) *cobra.Command {
	var asOf string

	c := &cobra.Command{
		Use:   "expire",
		Short: "Move active contracts whose end date has passed to expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := calendar.StartOfDay(time.Now().UTC())
			if strings.TrimSpace(asOf) != "" {
				parsed, err := httpapi.ParseDate("as-of", asOf)
				if err != nil {
					return err
				}
				now = parsed
			}

			eng, _, err := opts.Open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx := requesttrace.IntoContext(cmd.Context(), requesttrace.System("cli:leases-expire", uuid.NewString()))
			report, err := eng.Leases.ExpireDue(ctx, now)
			if err != nil {
				return fmt.Errorf("expire contracts: %w", err)
			}
			return runtime.PrintJSON(cmd.OutOrStdout(), report)
		},
	}

	c.Flags().StringVar(&asOf, "as-of", "", "Evaluation date as YYYY-MM-DD (defaults to today)")
	return c
}
