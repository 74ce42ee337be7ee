package stats

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/runtime"
	"github.com/zenGate-Global/palmyra-rentals/domains/statistics/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
)

// Command groups the collection reports.
func Command(opts *runtime.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Collection reports",
	}

	cmd.AddCommand(collectionCommand(opts))
	cmd.AddCommand(overdueCommand(opts))
	return cmd
}

type filterFlags struct {
	currency   string
	contractID string
	propertyID string
	tenantID   string
}

func (f *filterFlags) bind(c *cobra.Command) {
	c.Flags().StringVar(&f.currency, "report-currency", "", "Report currency (defaults to --currency)")
	c.Flags().StringVar(&f.contractID, "contract", "", "Only obligations of this contract")
	c.Flags().StringVar(&f.propertyID, "property", "", "Only obligations of this property")
	c.Flags().StringVar(&f.tenantID, "tenant", "", "Only obligations of this tenant")
}

func (f *filterFlags) filter() service.Filter {
	return service.Filter{
		Currency:   strings.TrimSpace(f.currency),
		ContractID: strings.TrimSpace(f.contractID),
		PropertyID: strings.TrimSpace(f.propertyID),
		TenantID:   strings.TrimSpace(f.tenantID),
	}
}

func collectionCommand(opts *runtime.Options) *cobra.Command {
	var (
		from, to string
		monthly  bool
		filters  filterFlags
	)

	c := &cobra.Command{
		Use:   "collection",
		Short: "Collection rate over a due date window [from, to)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := httpapi.ParseDate("from", from)
			if err != nil {
				return err
			}
			toDate, err := httpapi.ParseDate("to", to)
			if err != nil {
				return err
			}
			window := service.Window{From: fromDate, To: toDate}

			eng, _, err := opts.Open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer eng.Close()

			if monthly {
				buckets, err := eng.Statistics.MonthlyBreakdown(cmd.Context(), window, filters.filter())
				if err != nil {
					return fmt.Errorf("monthly breakdown: %w", err)
				}
				return runtime.PrintJSON(cmd.OutOrStdout(), buckets)
			}

			rate, err := eng.Statistics.CollectionRate(cmd.Context(), window, filters.filter())
			if err != nil {
				return fmt.Errorf("collection rate: %w", err)
			}
			return runtime.PrintJSON(cmd.OutOrStdout(), rate)
		},
	}

	c.Flags().StringVar(&from, "from", "", "First due date included (YYYY-MM-DD)")
	c.Flags().StringVar(&to, "to", "", "First due date excluded (YYYY-MM-DD)")
	c.Flags().BoolVar(&monthly, "monthly", false, "Break the window down per calendar month")
	filters.bind(c)
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}

func overdueCommand(opts *runtime.Options) *cobra.Command {
	var (
		asOf    string
		filters filterFlags
	)

	c := &cobra.Command{
		Use:   "overdue",
		Short: "Obligations past their grace period with money outstanding",
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

			items, err := eng.Statistics.OverduePayments(cmd.Context(), now, filters.filter())
			if err != nil {
				return fmt.Errorf("overdue payments: %w", err)
			}
			return printOverdue(cmd.OutOrStdout(), items)
		},
	}

	c.Flags().StringVar(&asOf, "as-of", "", "Evaluation date as YYYY-MM-DD (defaults to today)")
	filters.bind(c)
	return c
}

func printOverdue(w io.Writer, items []service.OverdueItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAYMENT\tCONTRACT\tTENANT\tDUE\tDAYS\tOUTSTANDING\tSTATUS")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s %s\t%s\n",
			it.Payment.ID, it.Payment.ContractID, it.Payment.TenantID,
			httpapi.FormatDate(it.Payment.DueDate), it.DaysOverdue,
			it.Outstanding.String(), it.Payment.Currency, it.Payment.Status)
	}
	return tw.Flush()
}
