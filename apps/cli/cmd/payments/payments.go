package payments

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/palmyra-rentals/apps/cli/cmd/runtime"
	"github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/requesttrace"
)

// Command groups rent schedule and ledger maintenance.
func Command(opts *runtime.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Rent schedule and ledger maintenance",
	}

	cmd.AddCommand(generateCommand(opts))
	cmd.AddCommand(generateMonthCommand(opts))
	cmd.AddCommand(evaluateLateCommand(opts))
	cmd.AddCommand(listCommand(opts))
	return cmd
}

func generateCommand(opts *runtime.Options) *cobra.Command {
	var (
		contractID string
		periods    int
	)

	c := &cobra.Command{
		Use:   "generate",
		Short: "Create the monthly obligations of a contract (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := opts.Open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer eng.Close()

			rows, err := eng.Payments.Generate(systemContext(cmd), contractID, periods)
			if err != nil {
				return fmt.Errorf("generate schedule: %w", err)
			}
			return printPayments(cmd.OutOrStdout(), rows)
		},
	}

	c.Flags().StringVar(&contractID, "contract", "", "Contract reference (LC-YYYY-XXXXXXXX)")
	c.Flags().IntVar(&periods, "periods", 12, "Number of monthly periods from the contract start")
	_ = c.MarkFlagRequired("contract")
	return c
}

func generateMonthCommand(opts *runtime.Options) *cobra.Command {
	var month string

	c := &cobra.Command{
		Use:   "generate-month",
		Short: "Create one month's obligation for every active contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, m, err := parseMonth(month)
			if err != nil {
				return err
			}
			eng, _, err := opts.Open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.Payments.GenerateMonth(systemContext(cmd), year, m)
			if err != nil {
				return fmt.Errorf("generate month: %w", err)
			}
			return runtime.PrintJSON(cmd.OutOrStdout(), report)
		},
	}

	c.Flags().StringVar(&month, "month", "", "Target month as YYYY-MM (defaults to the current month)")
	return c
}

func evaluateLateCommand(opts *runtime.Options) *cobra.Command {
	var asOf string

	c := &cobra.Command{
		Use:   "evaluate-late",
		Short: "Mark pending obligations past the grace period as late",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			eng, _, err := opts.Open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.Payments.EvaluateLateStatuses(systemContext(cmd), now)
			if err != nil {
				return fmt.Errorf("evaluate late statuses: %w", err)
			}
			return runtime.PrintJSON(cmd.OutOrStdout(), report)
		},
	}

	c.Flags().StringVar(&asOf, "as-of", "", "Evaluation date as YYYY-MM-DD (defaults to today)")
	return c
}

func listCommand(opts *runtime.Options) *cobra.Command {
	var (
		contractID string
		statuses   string
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List obligations ordered by due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := service.Filter{ContractID: strings.TrimSpace(contractID)}
			for _, raw := range strings.Split(statuses, ",") {
				if strings.TrimSpace(raw) == "" {
					continue
				}
				st, err := service.ParsePaymentStatus(strings.TrimSpace(raw))
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, st)
			}

			eng, _, err := opts.Open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer eng.Close()

			rows, err := eng.Payments.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list payments: %w", err)
			}
			return printPayments(cmd.OutOrStdout(), rows)
		},
	}

	c.Flags().StringVar(&contractID, "contract", "", "Only obligations of this contract")
	c.Flags().StringVar(&statuses, "status", "", "Comma separated statuses (pending,partial,paid,late)")
	return c
}

func printPayments(w io.Writer, rows []service.RentPayment) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONTRACT\tDUE\tAMOUNT\tPAID\tREMAINING\tSTATUS")
	for _, p := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\t%s\n",
			p.ID, p.ContractID, httpapi.FormatDate(p.DueDate),
			p.Amount.String(), p.Currency, p.AmountPaid.String(), p.RemainingAmount.String(), p.Status)
	}
	return tw.Flush()
}

// systemContext stamps audit fields of batch runs with the invoking command.
func systemContext(cmd *cobra.Command) context.Context {
	return requesttrace.IntoContext(cmd.Context(), requesttrace.System("cli:payments-"+cmd.Name(), uuid.NewString()))
}

func parseMonth(value string) (int, time.Month, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		now := time.Now().UTC()
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, fmt.Errorf("month must be YYYY-MM, got %q", value)
	}
	return t.Year(), t.Month(), nil
}

func parseAsOf(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return calendar.StartOfDay(time.Now().UTC()), nil
	}
	return httpapi.ParseDate("as-of", value)
}
