package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	leases "github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	"github.com/zenGate-Global/palmyra-rentals/domains/payments/be/repo"
	"github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/events"
)

var fixedNow = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

// stubContracts serves contracts from a map.
type stubContracts struct {
	mu        sync.Mutex
	contracts map[string]leases.LeaseContract
}

func (s *stubContracts) add(c leases.LeaseContract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contracts == nil {
		s.contracts = map[string]leases.LeaseContract{}
	}
	s.contracts[c.ID] = c
}

func (s *stubContracts) Get(_ context.Context, id string) (leases.LeaseContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return leases.LeaseContract{}, domainerr.NotFound(leases.Entity, id)
	}
	return c, nil
}

func (s *stubContracts) ActiveContracts(context.Context) ([]leases.LeaseContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []leases.LeaseContract
	for _, c := range s.contracts {
		if c.Status == leases.StatusActive {
			out = append(out, c)
		}
	}
	return out, nil
}

type fixture struct {
	svc       *service.Service
	repo      *repo.MemoryRepository
	contracts *stubContracts
	collector *events.Collector
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	r := repo.NewMemoryRepository()
	contracts := &stubContracts{}
	c := &events.Collector{}
	svc := service.New(r, contracts, service.Config{
		Publisher: c,
		Logger:    zaptest.NewLogger(t),
		Now:       func() time.Time { return fixedNow },
	})
	return fixture{svc: svc, repo: r, contracts: contracts, collector: c}
}

// yearLease is a 12 month XOF lease starting on 1 January 2025, rent due on the 5th.
func yearLease(id string) leases.LeaseContract {
	return leases.LeaseContract{
		ID:            id,
		Type:          leases.TypeClassic,
		PropertyID:    "prop-1",
		TenantIDs:     []string{"ten-1", "ten-2"},
		StartDate:     calendar.Date(2025, time.January, 1),
		EndDate:       calendar.Date(2026, time.January, 1),
		Duration:      calendar.Duration{Value: 12, Unit: calendar.Months},
		Currency:      "XOF",
		RentAmount:    decimal.NewFromInt(100000),
		DepositAmount: decimal.NewFromInt(200000),
		PaymentDueDay: 5,
		Status:        leases.StatusActive,
	}
}

// scheduled registers c and generates its first n obligations.
func (f fixture) scheduled(t *testing.T, c leases.LeaseContract, n int) []service.RentPayment {
	t.Helper()
	f.contracts.add(c)
	rows, err := f.svc.Generate(context.Background(), c.ID, n)
	require.NoError(t, err)
	require.Len(t, rows, n)
	return rows
}

func requireBalanced(t *testing.T, p service.RentPayment) {
	t.Helper()
	require.True(t, p.AmountPaid.Add(p.RemainingAmount).Equal(p.Amount),
		"amount paid %s + remaining %s != amount %s", p.AmountPaid, p.RemainingAmount, p.Amount)
	require.False(t, p.RemainingAmount.IsNegative())
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
