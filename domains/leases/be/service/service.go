package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/batch"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/events"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/money"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/requesttrace"
)

const createAttempts = 3

// Config carries the optional collaborators of the contract manager.
type Config struct {
	Publisher       events.Publisher
	Logger          *zap.Logger
	Now             func() time.Time
	DefaultCurrency string
}

// Service creates, renews, terminates and expires lease contracts. It owns
// every contract status change.
type Service struct {
	repo            Repository
	events          events.Publisher
	logger          *zap.Logger
	now             func() time.Time
	defaultCurrency string
}

// New constructs a Service with required dependencies.
func New(repo Repository, cfg Config) *Service {
	if repo == nil {
		panic("lease contract repo is required")
	}
	s := &Service{
		repo:            repo,
		events:          cfg.Publisher,
		logger:          cfg.Logger,
		now:             cfg.Now,
		defaultCurrency: cfg.DefaultCurrency,
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
	if s.defaultCurrency == "" {
		s.defaultCurrency = money.XOF.Code
	}
	return s
}

// CreateInput is the intake request for a new lease.
type CreateInput struct {
	Type          ContractType
	PropertyID    string
	TenantIDs     []string
	StartDate     time.Time
	Duration      calendar.Duration
	Currency      string
	RentAmount    decimal.Decimal
	DepositAmount decimal.Decimal
	PaymentDueDay int
	Clauses       string
}

// RenewInput describes a renewal. Nil fields are carried over from the original.
type RenewInput struct {
	ContractID string
	StartDate  *time.Time
	Duration   *calendar.Duration
	RentAmount *decimal.Decimal
	Clauses    *string
}

// TerminateInput ends an active lease early.
type TerminateInput struct {
	ContractID      string
	TerminationDate time.Time
	Reason          string
}

// Create validates the intake, derives the end date and stores an active contract.
func (s *Service) Create(ctx context.Context, input CreateInput, property PropertySnapshot, tenants []TenantSnapshot) (LeaseContract, error) {
	currency, err := s.validateCreate(&input, property, tenants)
	if err != nil {
		return LeaseContract{}, err
	}

	now := s.now()
	start := calendar.StartOfDay(input.StartDate)
	c := LeaseContract{
		Type:          input.Type,
		PropertyID:    input.PropertyID,
		Property:      property,
		TenantIDs:     append([]string(nil), input.TenantIDs...),
		Tenants:       pickTenants(input.TenantIDs, tenants),
		StartDate:     start,
		EndDate:       calendar.AddDuration(start, input.Duration),
		Duration:      input.Duration,
		Currency:      currency.Code,
		RentAmount:    currency.Round(input.RentAmount),
		DepositAmount: currency.Round(input.DepositAmount),
		PaymentDueDay: input.PaymentDueDay,
		Clauses:       strings.TrimSpace(input.Clauses),
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     requesttrace.ActorFromContext(ctx),
	}

	created, err := s.insert(ctx, c)
	if err != nil {
		return LeaseContract{}, err
	}

	s.publish(ctx, events.LeaseCreated, created, fmt.Sprintf("lease %s created for property %s", created.ID, created.PropertyID), nil)
	return created, nil
}

// Renew spawns a new active contract continuing original and flips the
// original to renewed. The new record is written first; if flipping the
// original fails it is removed again.
func (s *Service) Renew(ctx context.Context, input RenewInput) (LeaseContract, error) {
	if strings.TrimSpace(input.ContractID) == "" {
		return LeaseContract{}, domainerr.Invalid("contractId", "is required")
	}

	original, err := s.repo.Get(ctx, input.ContractID)
	if err != nil {
		return LeaseContract{}, err
	}
	if err := transitionError(original, "renew", StatusRenewed); err != nil {
		return LeaseContract{}, err
	}

	currency, err := money.Lookup(original.Currency)
	if err != nil {
		return LeaseContract{}, domainerr.Invariant(Entity, original.ID, err.Error())
	}

	fields := domainerr.FieldErrors{}
	start := original.EndDate
	if input.StartDate != nil {
		if input.StartDate.IsZero() {
			fields.Add("startDate", "must be a valid date")
		} else {
			start = calendar.StartOfDay(*input.StartDate)
			if start.Before(original.StartDate) {
				fields.Add("startDate", "must not precede the original start date")
			}
		}
	}
	duration := original.Duration
	if input.Duration != nil {
		if err := input.Duration.Validate(); err != nil {
			fields.Add("duration", err.Error())
		}
		duration = *input.Duration
	}
	rent := original.RentAmount
	if input.RentAmount != nil {
		rent = currency.Round(*input.RentAmount)
		if !rent.IsPositive() {
			fields.Add("rentAmount", "must be greater than zero")
		}
	}
	clauses := original.Clauses
	if input.Clauses != nil {
		clauses = strings.TrimSpace(*input.Clauses)
	}
	if err := fields.OrNil(); err != nil {
		return LeaseContract{}, err
	}

	now := s.now()
	next := original.Clone()
	next.ID = ""
	next.StartDate = start
	next.EndDate = calendar.AddDuration(start, duration)
	next.Duration = duration
	next.RentAmount = rent
	next.Clauses = clauses
	next.Status = StatusActive
	next.RenewedFrom = &original.ID
	next.RenewedTo = nil
	next.TerminatedAt = nil
	next.TerminationReason = nil
	next.Version = 0
	next.CreatedAt = now
	next.UpdatedAt = now
	next.CreatedBy = requesttrace.ActorFromContext(ctx)

	renewal, err := s.insert(ctx, next)
	if err != nil {
		return LeaseContract{}, err
	}

	original.Status = StatusRenewed
	original.RenewedTo = &renewal.ID
	original.UpdatedAt = now
	if _, err := s.repo.Update(ctx, original); err != nil {
		if delErr := s.repo.Delete(ctx, renewal.ID); delErr != nil {
			logging.FromContextOr(ctx, s.logger).Error("remove orphaned renewal",
				zap.String("contract_id", renewal.ID),
				zap.String("renewed_from", original.ID),
				zap.Error(delErr),
			)
		}
		return LeaseContract{}, fmt.Errorf("flip original contract %s to renewed: %w", original.ID, err)
	}

	s.publish(ctx, events.LeaseRenewed, renewal, fmt.Sprintf("lease %s renewed as %s", original.ID, renewal.ID),
		map[string]string{"renewedFrom": original.ID})
	return renewal, nil
}

// Terminate ends an active contract. Its payments are left untouched.
func (s *Service) Terminate(ctx context.Context, input TerminateInput) (LeaseContract, error) {
	fields := domainerr.FieldErrors{}
	if strings.TrimSpace(input.ContractID) == "" {
		fields.Add("contractId", "is required")
	}
	if input.TerminationDate.IsZero() {
		fields.Add("terminationDate", "is required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		fields.Add("reason", "is required")
	}
	if err := fields.OrNil(); err != nil {
		return LeaseContract{}, err
	}

	c, err := s.repo.Get(ctx, input.ContractID)
	if err != nil {
		return LeaseContract{}, err
	}
	if err := transitionError(c, "terminate", StatusTerminated); err != nil {
		return LeaseContract{}, err
	}
	date := calendar.StartOfDay(input.TerminationDate)
	if date.Before(c.StartDate) {
		return LeaseContract{}, domainerr.Invalid("terminationDate", "must not precede the contract start date")
	}

	c.Status = StatusTerminated
	c.TerminatedAt = &date
	c.TerminationReason = &reason
	c.UpdatedAt = s.now()

	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return LeaseContract{}, err
	}

	s.publish(ctx, events.LeaseTerminated, updated, fmt.Sprintf("lease %s terminated: %s", updated.ID, reason),
		map[string]string{"terminatedAt": date.Format(time.DateOnly), "reason": reason})
	return updated, nil
}

// Get returns a contract by id.
func (s *Service) Get(ctx context.Context, id string) (LeaseContract, error) {
	return s.repo.Get(ctx, id)
}

// List contracts with optional filters.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	return s.repo.List(ctx, opts)
}

// Delete hard-removes a contract. Reserved for administrators.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContextOr(ctx, s.logger).Warn("lease contract deleted",
		zap.String("contract_id", id),
		zap.String("actor", requesttrace.ActorFromContext(ctx)),
	)
	return nil
}

// ActiveContracts returns every active contract, walking all pages.
func (s *Service) ActiveContracts(ctx context.Context) ([]LeaseContract, error) {
	status := StatusActive
	return s.collect(ctx, ListOptions{Status: &status})
}

// ExpireDue flips active contracts whose end date has passed to expired. A row
// that fails is logged and the batch continues.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (batch.Report, error) {
	status := StatusActive
	due, err := s.collect(ctx, ListOptions{Status: &status, EndsBefore: &now})
	if err != nil {
		return batch.Report{}, err
	}

	logger := logging.FromContextOr(ctx, s.logger)
	var report batch.Report
	for _, c := range due {
		report.Scanned++
		if !c.EndDate.Before(now) || c.Status != StatusActive {
			report.Skipped++
			continue
		}
		c.Status = StatusExpired
		c.UpdatedAt = s.now()
		updated, err := s.repo.Update(ctx, c)
		if err != nil {
			logger.Error("expire lease contract", zap.String("contract_id", c.ID), zap.Error(err))
			report.Fail(c.ID, err)
			continue
		}
		report.Updated++
		s.publish(ctx, events.LeaseExpired, updated, fmt.Sprintf("lease %s expired", updated.ID), nil)
	}

	logger.Info("lease expiry finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) collect(ctx context.Context, opts ListOptions) ([]LeaseContract, error) {
	opts.PageSize = 200
	var out []LeaseContract
	for page := 1; ; page++ {
		opts.Page = page
		res, err := s.repo.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Contracts...)
		if page >= res.TotalPages {
			return out, nil
		}
	}
}

// insert assigns a reference and stores c, retrying on the rare reference collision.
func (s *Service) insert(ctx context.Context, c LeaseContract) (LeaseContract, error) {
	var lastErr error
	for i := 0; i < createAttempts; i++ {
		c.ID = NewReference(c.CreatedAt)
		created, err := s.repo.Create(ctx, c)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, domainerr.ErrConflict) {
			return LeaseContract{}, err
		}
		lastErr = err
	}
	return LeaseContract{}, lastErr
}

func (s *Service) validateCreate(input *CreateInput, property PropertySnapshot, tenants []TenantSnapshot) (money.Currency, error) {
	fields := domainerr.FieldErrors{}

	if input.Type == "" {
		input.Type = TypeClassic
	}
	if !input.Type.Valid() {
		fields.Add("type", "must be one of classic, furnished, commercial, other")
	}

	input.PropertyID = strings.TrimSpace(input.PropertyID)
	switch {
	case input.PropertyID == "":
		fields.Add("propertyId", "is required")
	case property.ID != input.PropertyID:
		fields.Add("property", "snapshot does not match propertyId")
	}

	if len(input.TenantIDs) == 0 {
		fields.Add("tenantIds", "at least one tenant is required")
	}
	known := make(map[string]bool, len(tenants))
	for _, t := range tenants {
		known[t.ID] = true
	}
	seen := make(map[string]bool, len(input.TenantIDs))
	for _, id := range input.TenantIDs {
		switch {
		case id == "":
			fields.Add("tenantIds", "must not contain empty ids")
		case seen[id]:
			fields.Add("tenantIds", fmt.Sprintf("tenant %s listed twice", id))
		case !known[id]:
			fields.Add("tenantIds", fmt.Sprintf("tenant %s is unknown", id))
		}
		seen[id] = true
	}

	if input.StartDate.IsZero() {
		fields.Add("startDate", "is required")
	}
	if err := input.Duration.Validate(); err != nil {
		fields.Add("duration", err.Error())
	}
	if input.PaymentDueDay < 1 || input.PaymentDueDay > 31 {
		fields.Add("paymentDueDay", "must be between 1 and 31")
	}

	code := input.Currency
	if strings.TrimSpace(code) == "" {
		code = s.defaultCurrency
	}
	currency, err := money.Lookup(code)
	if err != nil {
		fields.Add("currency", err.Error())
	} else {
		if !currency.Round(input.RentAmount).IsPositive() {
			fields.Add("rentAmount", "must be greater than zero")
		}
		if input.DepositAmount.IsNegative() {
			fields.Add("depositAmount", "must not be negative")
		}
	}

	return currency, fields.OrNil()
}

func (s *Service) publish(ctx context.Context, eventType string, c LeaseContract, summary string, payload any) {
	refs := []events.Ref{events.Contract(c.ID), events.Property(c.PropertyID)}
	for _, id := range c.TenantIDs {
		refs = append(refs, events.Tenant(id))
	}
	s.events.Publish(ctx, events.New(eventType, summary, payload, refs...))
}

func pickTenants(ids []string, snapshots []TenantSnapshot) []TenantSnapshot {
	byID := make(map[string]TenantSnapshot, len(snapshots))
	for _, t := range snapshots {
		byID[t.ID] = t
	}
	out := make([]TenantSnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// NewReference builds a human-readable contract reference such as LC-2025-9F3A01BC.
func NewReference(at time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("LC-%d-%s", at.Year(), short)
}
