package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
)

func payment(contractID string, due time.Time) service.RentPayment {
	return service.RentPayment{
		ID:              uuid.NewString(),
		ContractID:      contractID,
		TenantID:        "ten-1",
		PropertyID:      "prop-1",
		Currency:        "XOF",
		Amount:          decimal.NewFromInt(100000),
		RemainingAmount: decimal.NewFromInt(100000),
		DueDate:         due,
		Status:          service.StatusPending,
	}
}

func TestMemoryRepositoryOneObligationPerMonth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRepository()

	first, created, err := r.CreateIfAbsent(ctx, payment("LC-1", calendar.Date(2025, time.March, 5)))
	require.NoError(t, err)
	require.True(t, created)
	require.EqualValues(t, 1, first.Version)

	again, created, err := r.CreateIfAbsent(ctx, payment("LC-1", calendar.Date(2025, time.March, 28)))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)

	_, created, err = r.CreateIfAbsent(ctx, payment("LC-2", calendar.Date(2025, time.March, 5)))
	require.NoError(t, err)
	require.True(t, created)

	found, err := r.FindByContractMonth(ctx, "LC-1", 2025, time.March)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)

	_, err = r.FindByContractMonth(ctx, "LC-1", 2025, time.April)
	require.ErrorIs(t, err, domainerr.ErrNotFound)
}

func TestMemoryRepositoryConcurrentCreateKeepsOneRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRepository()

	var wg sync.WaitGroup
	results := make(chan bool, 16)
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := r.CreateIfAbsent(ctx, payment("LC-1", calendar.Date(2025, time.May, 5)))
			if err != nil {
				errs <- err
				return
			}
			results <- created
		}()
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	createdCount := 0
	for created := range results {
		if created {
			createdCount++
		}
	}
	require.Equal(t, 1, createdCount)

	rows, err := r.List(ctx, service.Filter{ContractID: "LC-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestMemoryRepositoryOptimisticUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRepository()

	p := payment("LC-1", calendar.Date(2025, time.March, 5))
	p.Deposit = &service.SecurityDeposit{Amount: decimal.NewFromInt(200000), Status: service.DepositNone}
	created, _, err := r.CreateIfAbsent(ctx, p)
	require.NoError(t, err)

	stale := created
	created.Deposit.Status = service.DepositRequested
	updated, err := r.Update(ctx, created)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated.Version)

	_, err = r.Update(ctx, stale)
	require.ErrorIs(t, err, domainerr.ErrConflict)

	missing := payment("LC-9", calendar.Date(2025, time.March, 5))
	_, err = r.Update(ctx, missing)
	require.ErrorIs(t, err, domainerr.ErrNotFound)

	stored, err := r.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, service.DepositRequested, stored.Deposit.Status)

	// Callers mutating a returned copy must not reach the stored row.
	stored.Deposit.Status = service.DepositRefused
	again, err := r.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, service.DepositRequested, again.Deposit.Status)
}

func TestMemoryRepositoryListFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRepository()

	for m := time.January; m <= time.April; m++ {
		p := payment("LC-1", calendar.Date(2025, m, 5))
		if m == time.February {
			p.Status = service.StatusLate
		}
		_, _, err := r.CreateIfAbsent(ctx, p)
		require.NoError(t, err)
	}
	other := payment("LC-2", calendar.Date(2025, time.February, 1))
	other.Currency = "EUR"
	_, _, err := r.CreateIfAbsent(ctx, other)
	require.NoError(t, err)

	from := calendar.Date(2025, time.February, 1)
	to := calendar.Date(2025, time.April, 1)
	rows, err := r.List(ctx, service.Filter{DueFrom: &from, DueTo: &to})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "LC-2", rows[0].ContractID)
	require.True(t, rows[1].DueDate.Before(rows[2].DueDate))

	rows, err = r.List(ctx, service.Filter{Statuses: []service.PaymentStatus{service.StatusLate}})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = r.List(ctx, service.Filter{Currency: "EUR"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestMemoryRepositoryReturnsDetachedRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRepository()

	p := payment("LC-1", calendar.Date(2025, time.March, 5))
	paidOn := calendar.Date(2025, time.March, 3)
	fee := decimal.NewFromInt(5000)
	method := service.MethodCash
	waiver := "goodwill"
	p.PaidDate = &paidOn
	p.LateFee = &fee
	p.PaymentMethod = &method
	p.LateFeeWaiver = &waiver
	p.ReceiptKeys = []string{"rcpt-1"}
	p.Deposit = &service.SecurityDeposit{Amount: decimal.NewFromInt(200000), Status: service.DepositRequested, Notes: &waiver}
	_, _, err := r.CreateIfAbsent(ctx, p)
	require.NoError(t, err)

	// Edits to the caller's input must not reach the stored row.
	*p.PaidDate = calendar.Date(1999, time.January, 1)

	got, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	*got.PaidDate = calendar.Date(1999, time.January, 1)
	*got.LateFee = decimal.NewFromInt(1)
	*got.PaymentMethod = service.MethodCheck
	*got.LateFeeWaiver = "edited"
	got.ReceiptKeys[0] = "edited"
	*got.Deposit.Notes = "edited"

	listed, err := r.List(ctx, service.Filter{ContractID: "LC-1"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	*listed[0].PaidDate = calendar.Date(1999, time.January, 1)

	stored, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, calendar.Date(2025, time.March, 3), *stored.PaidDate)
	require.True(t, stored.LateFee.Equal(decimal.NewFromInt(5000)))
	require.Equal(t, service.MethodCash, *stored.PaymentMethod)
	require.Equal(t, "goodwill", *stored.LateFeeWaiver)
	require.Equal(t, []string{"rcpt-1"}, stored.ReceiptKeys)
	require.Equal(t, "goodwill", *stored.Deposit.Notes)
}
