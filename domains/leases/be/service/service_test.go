package service_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/palmyra-rentals/domains/leases/be/repo"
	"github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/events"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/requesttrace"
)

var fixedNow = time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc       *service.Service
	repo      *repo.MemoryRepository
	collector *events.Collector
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	r := repo.NewMemoryRepository()
	c := &events.Collector{}
	svc := service.New(r, service.Config{
		Publisher: c,
		Logger:    zaptest.NewLogger(t),
		Now:       func() time.Time { return fixedNow },
	})
	return fixture{svc: svc, repo: r, collector: c}
}

func property() service.PropertySnapshot {
	rooms := 3
	return service.PropertySnapshot{ID: "prop-1", Address: "12 rue des Palmiers, Dakar", Type: "apartment", Rooms: &rooms}
}

func tenants() []service.TenantSnapshot {
	return []service.TenantSnapshot{
		{ID: "ten-1", FullName: "Awa Diop", Email: "awa@example.com"},
		{ID: "ten-2", FullName: "Moussa Fall", Email: "moussa@example.com"},
	}
}

func createInput() service.CreateInput {
	return service.CreateInput{
		PropertyID:    "prop-1",
		TenantIDs:     []string{"ten-1"},
		StartDate:     calendar.Date(2025, time.January, 31),
		Duration:      calendar.Duration{Value: 1, Unit: calendar.Months},
		RentAmount:    decimal.NewFromInt(100000),
		DepositAmount: decimal.NewFromInt(200000),
		PaymentDueDay: 31,
	}
}

func TestCreateDerivesEndDateWithMonthClamp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := requesttrace.IntoContext(context.Background(), mustUser(t, "agent-7"))

	c, err := f.svc.Create(ctx, createInput(), property(), tenants())
	require.NoError(t, err)

	require.Regexp(t, regexp.MustCompile(`^LC-2025-[0-9A-F]{8}$`), c.ID)
	require.Equal(t, calendar.Date(2025, time.February, 28), c.EndDate)
	require.Equal(t, service.StatusActive, c.Status)
	require.Equal(t, service.TypeClassic, c.Type)
	require.Equal(t, "XOF", c.Currency)
	require.Equal(t, "agent-7", c.CreatedBy)
	require.Len(t, c.Tenants, 1)
	require.Equal(t, "Awa Diop", c.Tenants[0].FullName)
	require.False(t, c.IsColocation())
	require.Equal(t, []string{events.LeaseCreated}, f.collector.Types())
}

func TestCreateRoundsToCurrencyPrecision(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	in := createInput()
	in.Currency = "eur"
	in.RentAmount = decimal.RequireFromString("850.555")
	c, err := f.svc.Create(context.Background(), in, property(), tenants())
	require.NoError(t, err)
	require.Equal(t, "EUR", c.Currency)
	require.Equal(t, "850.56", c.RentAmount.StringFixed(2))
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*service.CreateInput)
		field  string
	}{
		{"no tenants", func(in *service.CreateInput) { in.TenantIDs = nil }, "tenantIds"},
		{"unknown tenant", func(in *service.CreateInput) { in.TenantIDs = []string{"ten-9"} }, "tenantIds"},
		{"duplicate tenant", func(in *service.CreateInput) { in.TenantIDs = []string{"ten-1", "ten-1"} }, "tenantIds"},
		{"zero rent", func(in *service.CreateInput) { in.RentAmount = decimal.Zero }, "rentAmount"},
		{"negative deposit", func(in *service.CreateInput) { in.DepositAmount = decimal.NewFromInt(-1) }, "depositAmount"},
		{"due day", func(in *service.CreateInput) { in.PaymentDueDay = 32 }, "paymentDueDay"},
		{"duration value", func(in *service.CreateInput) { in.Duration.Value = 0 }, "duration"},
		{"duration unit", func(in *service.CreateInput) { in.Duration.Unit = "weeks" }, "duration"},
		{"start date", func(in *service.CreateInput) { in.StartDate = time.Time{} }, "startDate"},
		{"currency", func(in *service.CreateInput) { in.Currency = "BTC" }, "currency"},
		{"property mismatch", func(in *service.CreateInput) { in.PropertyID = "prop-2" }, "property"},
		{"type", func(in *service.CreateInput) { in.Type = "seasonal" }, "type"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			in := createInput()
			tc.mutate(&in)
			_, err := f.svc.Create(context.Background(), in, property(), tenants())

			var validationErr *domainerr.ValidationError
			require.True(t, errors.As(err, &validationErr), "got %v", err)
			require.Contains(t, validationErr.Fields, tc.field)
			require.Empty(t, f.collector.Types())
		})
	}
}

func TestRenewChainsContracts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	in := createInput()
	in.TenantIDs = []string{"ten-1", "ten-2"}
	in.Duration = calendar.Duration{Value: 1, Unit: calendar.Years}
	in.StartDate = calendar.Date(2024, time.March, 1)
	original, err := f.svc.Create(ctx, in, property(), tenants())
	require.NoError(t, err)
	require.True(t, original.IsColocation())

	renewal, err := f.svc.Renew(ctx, service.RenewInput{ContractID: original.ID})
	require.NoError(t, err)

	require.NotEqual(t, original.ID, renewal.ID)
	require.NotNil(t, renewal.RenewedFrom)
	require.Equal(t, original.ID, *renewal.RenewedFrom)
	require.Equal(t, original.EndDate, renewal.StartDate)
	require.Equal(t, calendar.Date(2026, time.March, 1), renewal.EndDate)
	require.True(t, renewal.RentAmount.Equal(original.RentAmount))
	require.Equal(t, original.TenantIDs, renewal.TenantIDs)
	require.Equal(t, service.StatusActive, renewal.Status)

	stored, err := f.svc.Get(ctx, original.ID)
	require.NoError(t, err)
	require.Equal(t, service.StatusRenewed, stored.Status)
	require.Equal(t, renewal.ID, *stored.RenewedTo)

	_, err = f.svc.Renew(ctx, service.RenewInput{ContractID: original.ID})
	require.ErrorIs(t, err, domainerr.ErrInvalidTransition)

	require.Equal(t, []string{events.LeaseCreated, events.LeaseRenewed}, f.collector.Types())
}

func TestRenewOverrides(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.svc.Create(ctx, createInput(), property(), tenants())
	require.NoError(t, err)

	start := calendar.Date(2025, time.March, 10)
	duration := calendar.Duration{Value: 6, Unit: calendar.Months}
	rent := decimal.NewFromInt(120000)
	renewal, err := f.svc.Renew(ctx, service.RenewInput{
		ContractID: original.ID,
		StartDate:  &start,
		Duration:   &duration,
		RentAmount: &rent,
	})
	require.NoError(t, err)
	require.Equal(t, start, renewal.StartDate)
	require.Equal(t, calendar.Date(2025, time.September, 10), renewal.EndDate)
	require.True(t, renewal.RentAmount.Equal(rent))

	bad := decimal.NewFromInt(-5)
	_, err = f.svc.Renew(ctx, service.RenewInput{ContractID: renewal.ID, RentAmount: &bad})
	var validationErr *domainerr.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

// failingUpdateRepo lets the renewal insert succeed and rejects the flip of the original.
type failingUpdateRepo struct {
	*repo.MemoryRepository
}

func (r failingUpdateRepo) Update(context.Context, service.LeaseContract) (service.LeaseContract, error) {
	return service.LeaseContract{}, domainerr.ErrConflict
}

func TestRenewRemovesNewRecordWhenOriginalFlipFails(t *testing.T) {
	t.Parallel()

	mem := repo.NewMemoryRepository()
	seed := service.New(mem, service.Config{Now: func() time.Time { return fixedNow }})
	original, err := seed.Create(context.Background(), createInput(), property(), tenants())
	require.NoError(t, err)

	svc := service.New(failingUpdateRepo{mem}, service.Config{Now: func() time.Time { return fixedNow }})
	_, err = svc.Renew(context.Background(), service.RenewInput{ContractID: original.ID})
	require.ErrorIs(t, err, domainerr.ErrConflict)

	res, err := mem.List(context.Background(), service.ListOptions{})
	require.NoError(t, err)
	require.Len(t, res.Contracts, 1)
	require.Equal(t, service.StatusActive, res.Contracts[0].Status)
}

func TestTerminate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, createInput(), property(), tenants())
	require.NoError(t, err)

	_, err = f.svc.Terminate(ctx, service.TerminateInput{ContractID: c.ID})
	var validationErr *domainerr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "terminationDate")
	require.Contains(t, validationErr.Fields, "reason")

	_, err = f.svc.Terminate(ctx, service.TerminateInput{
		ContractID:      c.ID,
		TerminationDate: calendar.Date(2024, time.December, 1),
		Reason:          "tenant left",
	})
	require.ErrorAs(t, err, &validationErr)

	terminated, err := f.svc.Terminate(ctx, service.TerminateInput{
		ContractID:      c.ID,
		TerminationDate: calendar.Date(2025, time.February, 10),
		Reason:          " tenant left ",
	})
	require.NoError(t, err)
	require.Equal(t, service.StatusTerminated, terminated.Status)
	require.Equal(t, calendar.Date(2025, time.February, 10), *terminated.TerminatedAt)
	require.Equal(t, "tenant left", *terminated.TerminationReason)

	_, err = f.svc.Terminate(ctx, service.TerminateInput{
		ContractID:      c.ID,
		TerminationDate: calendar.Date(2025, time.February, 11),
		Reason:          "again",
	})
	require.ErrorIs(t, err, domainerr.ErrInvalidTransition)

	_, err = f.svc.Terminate(ctx, service.TerminateInput{
		ContractID:      "LC-0000-MISSING0",
		TerminationDate: calendar.Date(2025, time.February, 11),
		Reason:          "x",
	})
	require.ErrorIs(t, err, domainerr.ErrNotFound)
}

func TestExpireDue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	short, err := f.svc.Create(ctx, createInput(), property(), tenants())
	require.NoError(t, err)

	long := createInput()
	long.Duration = calendar.Duration{Value: 2, Unit: calendar.Years}
	kept, err := f.svc.Create(ctx, long, property(), tenants())
	require.NoError(t, err)

	report, err := f.svc.ExpireDue(ctx, calendar.Date(2025, time.March, 1))
	require.NoError(t, err)
	require.Equal(t, 1, report.Scanned)
	require.Equal(t, 1, report.Updated)

	expired, err := f.svc.Get(ctx, short.ID)
	require.NoError(t, err)
	require.Equal(t, service.StatusExpired, expired.Status)

	active, err := f.svc.ActiveContracts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, kept.ID, active[0].ID)

	// Running again finds nothing left to expire.
	report, err = f.svc.ExpireDue(ctx, calendar.Date(2025, time.March, 1))
	require.NoError(t, err)
	require.Zero(t, report.Updated)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, createInput(), property(), tenants())
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, c.ID))
	_, err = f.svc.Get(ctx, c.ID)
	require.ErrorIs(t, err, domainerr.ErrNotFound)
}

func TestContractStatusTransitions(t *testing.T) {
	t.Parallel()

	require.True(t, service.StatusActive.CanTransitionTo(service.StatusRenewed))
	require.True(t, service.StatusActive.CanTransitionTo(service.StatusTerminated))
	require.True(t, service.StatusActive.CanTransitionTo(service.StatusExpired))
	for _, terminal := range []service.ContractStatus{service.StatusRenewed, service.StatusTerminated, service.StatusExpired} {
		require.False(t, terminal.CanTransitionTo(service.StatusActive))
	}
	_, err := service.ParseContractStatus("archived")
	require.Error(t, err)
}

func mustUser(t *testing.T, id string) requesttrace.AuditInfo {
	t.Helper()
	audit, err := requesttrace.ForUser(id, "req-1")
	require.NoError(t, err)
	return audit
}
