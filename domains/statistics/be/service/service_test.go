package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	leases "github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	paymentsrepo "github.com/zenGate-Global/palmyra-rentals/domains/payments/be/repo"
	payments "github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	"github.com/zenGate-Global/palmyra-rentals/domains/statistics/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
)

type contractsFn func(ctx context.Context, id string) (leases.LeaseContract, error)

func (f contractsFn) Get(ctx context.Context, id string) (leases.LeaseContract, error) { return f(ctx, id) }

func knownContract(_ context.Context, id string) (leases.LeaseContract, error) {
	if id != "LC-1" {
		return leases.LeaseContract{}, domainerr.NotFound(leases.Entity, id)
	}
	return leases.LeaseContract{ID: "LC-1", Currency: "XOF"}, nil
}

type seed struct {
	due    time.Time
	amount int64
	paid   int64
	status payments.PaymentStatus
	fee    int64
}

func newStats(t *testing.T, rows ...seed) service.Service {
	t.Helper()
	r := paymentsrepo.NewMemoryRepository()
	for _, s := range rows {
		p := payments.RentPayment{
			ID:              uuid.NewString(),
			ContractID:      "LC-1",
			PropertyID:      "prop-1",
			TenantID:        "ten-1",
			Currency:        "XOF",
			Amount:          decimal.NewFromInt(s.amount),
			AmountPaid:      decimal.NewFromInt(s.paid),
			RemainingAmount: decimal.NewFromInt(s.amount - s.paid),
			DueDate:         s.due,
			Status:          s.status,
		}
		if s.fee > 0 {
			fee := decimal.NewFromInt(s.fee)
			p.LateFee = &fee
		}
		_, created, err := r.CreateIfAbsent(context.Background(), p)
		require.NoError(t, err)
		require.True(t, created)
	}
	return service.New(r, contractsFn(knownContract), service.Config{Logger: zaptest.NewLogger(t)})
}

func quarter() service.Window {
	return service.Window{From: calendar.Date(2025, time.January, 1), To: calendar.Date(2025, time.April, 1)}
}

func TestCollectionRate(t *testing.T) {
	t.Parallel()

	stats := newStats(t,
		seed{calendar.Date(2025, time.January, 5), 100000, 100000, payments.StatusPaid, 0},
		seed{calendar.Date(2025, time.February, 5), 100000, 100000, payments.StatusPaid, 0},
		seed{calendar.Date(2025, time.March, 5), 100000, 0, payments.StatusPending, 0},
		seed{calendar.Date(2025, time.April, 5), 100000, 0, payments.StatusPending, 0},
	)

	rate, err := stats.CollectionRate(context.Background(), quarter(), service.Filter{})
	require.NoError(t, err)
	require.Equal(t, "XOF", rate.Currency)
	require.Equal(t, 3, rate.Count)
	require.True(t, rate.Expected.Equal(decimal.NewFromInt(300000)))
	require.True(t, rate.Collected.Equal(decimal.NewFromInt(200000)))
	require.Equal(t, "66.67", rate.Rate.StringFixed(2))
}

func TestCollectionRateEmptyWindowIsZero(t *testing.T) {
	t.Parallel()

	stats := newStats(t)
	rate, err := stats.CollectionRate(context.Background(), quarter(), service.Filter{Currency: "eur"})
	require.NoError(t, err)
	require.Equal(t, "EUR", rate.Currency)
	require.True(t, rate.Rate.IsZero())

	var validationErr *domainerr.ValidationError
	_, err = stats.CollectionRate(context.Background(), service.Window{From: calendar.Date(2025, time.April, 1), To: calendar.Date(2025, time.January, 1)}, service.Filter{})
	require.ErrorAs(t, err, &validationErr)
	_, err = stats.CollectionRate(context.Background(), quarter(), service.Filter{Currency: "ZZZ"})
	require.ErrorAs(t, err, &validationErr)
}

func TestMonthlyBreakdown(t *testing.T) {
	t.Parallel()

	stats := newStats(t,
		seed{calendar.Date(2025, time.January, 5), 100000, 100000, payments.StatusPaid, 0},
		seed{calendar.Date(2025, time.March, 5), 100000, 40000, payments.StatusPartial, 0},
	)

	buckets, err := stats.MonthlyBreakdown(context.Background(), quarter(), service.Filter{})
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	require.Equal(t, []string{"2025-01", "2025-02", "2025-03"}, []string{buckets[0].Month, buckets[1].Month, buckets[2].Month})

	require.True(t, buckets[0].Collected.Equal(decimal.NewFromInt(100000)))
	require.Zero(t, buckets[1].Count)
	require.True(t, buckets[1].Expected.IsZero())

	march := buckets[2]
	require.True(t, march.Partial.Equal(decimal.NewFromInt(100000)))
	require.True(t, march.Received.Equal(decimal.NewFromInt(40000)))
	for _, b := range buckets {
		require.True(t, b.Collected.Add(b.Pending).Add(b.Partial).Add(b.Late).Equal(b.Expected), b.Month)
	}
}

func TestOverduePayments(t *testing.T) {
	t.Parallel()

	stats := newStats(t,
		seed{calendar.Date(2025, time.January, 5), 100000, 0, payments.StatusLate, 5000},
		seed{calendar.Date(2025, time.February, 5), 100000, 0, payments.StatusPending, 0},
		seed{calendar.Date(2025, time.March, 5), 100000, 0, payments.StatusPending, 0},
		seed{calendar.Date(2025, time.April, 5), 100000, 30000, payments.StatusPartial, 0},
	)

	overdue, err := stats.OverduePayments(context.Background(), calendar.Date(2025, time.March, 8), service.Filter{})
	require.NoError(t, err)
	require.Len(t, overdue, 2, "March is still within its grace period")
	require.Equal(t, calendar.Date(2025, time.January, 5), overdue[0].Payment.DueDate)
	require.True(t, overdue[0].Outstanding.Equal(decimal.NewFromInt(105000)))
	require.Equal(t, 31, overdue[1].DaysOverdue)
}

func TestContractSummary(t *testing.T) {
	t.Parallel()

	stats := newStats(t,
		seed{calendar.Date(2025, time.January, 5), 100000, 100000, payments.StatusPaid, 0},
		seed{calendar.Date(2025, time.February, 5), 100000, 0, payments.StatusLate, 5000},
		seed{calendar.Date(2025, time.March, 5), 100000, 25000, payments.StatusPartial, 0},
	)

	summary, err := stats.ContractSummary(context.Background(), "LC-1")
	require.NoError(t, err)
	require.Equal(t, 3, summary.Obligations)
	require.True(t, summary.Received.Equal(decimal.NewFromInt(125000)))
	require.True(t, summary.Outstanding.Equal(decimal.NewFromInt(175000)))
	require.True(t, summary.LateFees.Equal(decimal.NewFromInt(5000)))
	require.Equal(t, 1, summary.ByStatus[payments.StatusLate])
	require.Equal(t, calendar.Date(2025, time.February, 5), *summary.NextDue)

	_, err = stats.ContractSummary(context.Background(), "LC-404")
	require.ErrorIs(t, err, domainerr.ErrNotFound)
}
