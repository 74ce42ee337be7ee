package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	leases "github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/events"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/money"
)

// Defaults applied when Config leaves the policy fields unset.
const DefaultGracePeriodDays = 5

// DefaultLateFeeRate is the share of the rent charged as a late fee.
var DefaultLateFeeRate = decimal.RequireFromString("0.05")

// ContractSource is the read side of the lease contract manager that the
// schedule generator needs.
type ContractSource interface {
	Get(ctx context.Context, id string) (leases.LeaseContract, error)
	ActiveContracts(ctx context.Context) ([]leases.LeaseContract, error)
}

// Config carries policy and optional collaborators.
type Config struct {
	GracePeriodDays int
	LateFeeRate     decimal.Decimal
	Publisher       events.Publisher
	Logger          *zap.Logger
	Now             func() time.Time
}

// Service is the payment ledger. It generates schedules, records payments and
// runs the deposit refund workflow. Every payment status change goes through it.
type Service struct {
	repo      Repository
	contracts ContractSource
	events    events.Publisher
	logger    *zap.Logger
	now       func() time.Time
	grace     int
	feeRate   decimal.Decimal
	locks     *keyedMutex
}

// New constructs a Service with required dependencies.
func New(repo Repository, contracts ContractSource, cfg Config) *Service {
	if repo == nil {
		panic("rent payment repo is required")
	}
	if contracts == nil {
		panic("contract source is required")
	}
	s := &Service{
		repo:      repo,
		contracts: contracts,
		events:    cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Now,
		grace:     cfg.GracePeriodDays,
		feeRate:   cfg.LateFeeRate,
		locks:     newKeyedMutex(),
	}
	if s.events == nil {
		s.events = events.Discard{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.grace <= 0 {
		s.grace = DefaultGracePeriodDays
	}
	if !s.feeRate.IsPositive() {
		s.feeRate = DefaultLateFeeRate
	}
	return s
}

// GracePeriodDays returns the configured grace period.
func (s *Service) GracePeriodDays() int { return s.grace }

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id string) (RentPayment, error) {
	if strings.TrimSpace(id) == "" {
		return RentPayment{}, domainerr.Invalid("paymentId", "is required")
	}
	return s.repo.Get(ctx, id)
}

// ListByContract returns a contract's obligations in due date order.
func (s *Service) ListByContract(ctx context.Context, contractID string) ([]RentPayment, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, domainerr.Invalid("contractId", "is required")
	}
	return s.repo.List(ctx, Filter{ContractID: contractID})
}

// List returns payments matching f in due date order.
func (s *Service) List(ctx context.Context, f Filter) ([]RentPayment, error) {
	return s.repo.List(ctx, f)
}

// mutate loads a payment under its lock, applies fn to a private copy, checks
// the amount invariants and writes the result. fn returns false to leave the
// row untouched. Nothing is written when fn or the invariant check fails.
func (s *Service) mutate(ctx context.Context, id, op string, fn func(p *RentPayment, cur money.Currency) (bool, error)) (RentPayment, bool, error) {
	if strings.TrimSpace(id) == "" {
		return RentPayment{}, false, domainerr.Invalid("paymentId", "is required")
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return RentPayment{}, false, err
	}
	cur, err := money.Lookup(current.Currency)
	if err != nil {
		return RentPayment{}, false, domainerr.Invariant(Entity, id, err.Error())
	}

	next := current.Clone()
	changed, err := fn(&next, cur)
	if err != nil {
		return RentPayment{}, false, err
	}
	if !changed {
		return current, false, nil
	}
	if err := checkInvariants(next); err != nil {
		logging.FromContextOr(ctx, s.logger).Error("payment invariant violated",
			zap.String("payment_id", id),
			zap.String("operation", op),
			zap.Error(err),
		)
		return RentPayment{}, false, err
	}
	next.UpdatedAt = s.now()

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return RentPayment{}, false, fmt.Errorf("%s %s: %w", op, id, err)
	}
	return updated, true, nil
}

func (s *Service) publish(ctx context.Context, eventType string, p RentPayment, summary string, payload any) {
	refs := []events.Ref{events.Payment(p.ID), events.Contract(p.ContractID), events.Property(p.PropertyID)}
	if p.TenantID != "" {
		refs = append(refs, events.Tenant(p.TenantID))
	}
	s.events.Publish(ctx, events.New(eventType, summary, payload, refs...))
}

func formatAmount(p RentPayment, d decimal.Decimal) string {
	if cur, err := money.Lookup(p.Currency); err == nil {
		return cur.Format(d)
	}
	return d.String() + " " + p.Currency
}
