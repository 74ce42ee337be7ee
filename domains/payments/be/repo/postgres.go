package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/money"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/persistence"
)

// PostgresRepository implements the payment repository on top of PaymentStore.
type PostgresRepository struct {
	store *persistence.PaymentStore
}

// NewPostgresRepository constructs a repository backed by PaymentStore.
func NewPostgresRepository(store *persistence.PaymentStore) *PostgresRepository {
	if store == nil {
		panic("payment store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, p service.RentPayment) (service.RentPayment, bool, error) {
	rec, err := toRecord(p)
	if err != nil {
		return service.RentPayment{}, false, err
	}
	out, created, err := r.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		return service.RentPayment{}, false, mapError(err, p.ID)
	}
	if !created {
		existing, err := r.FindByContractMonth(ctx, p.ContractID, p.DueDate.Year(), p.DueDate.Month())
		return existing, false, err
	}
	stored, err := toServicePayment(out)
	return stored, true, err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (service.RentPayment, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return service.RentPayment{}, domainerr.NotFound(service.Entity, id)
	}
	rec, err := r.store.Get(ctx, pid)
	if err != nil {
		return service.RentPayment{}, mapError(err, id)
	}
	return toServicePayment(rec)
}

func (r *PostgresRepository) FindByContractMonth(ctx context.Context, contractID string, year int, month time.Month) (service.RentPayment, error) {
	rec, err := r.store.FindByContractMonth(ctx, contractID, year, month)
	if err != nil {
		return service.RentPayment{}, mapError(err, fmt.Sprintf("%s@%04d-%02d", contractID, year, int(month)))
	}
	return toServicePayment(rec)
}

func (r *PostgresRepository) Update(ctx context.Context, p service.RentPayment) (service.RentPayment, error) {
	rec, err := toRecord(p)
	if err != nil {
		return service.RentPayment{}, err
	}
	out, err := r.store.Update(ctx, rec)
	if err != nil {
		return service.RentPayment{}, mapError(err, p.ID)
	}
	return toServicePayment(out)
}

func (r *PostgresRepository) List(ctx context.Context, f service.Filter) ([]service.RentPayment, error) {
	filter := persistence.PaymentFilter{
		ContractID: optional(f.ContractID),
		TenantID:   optional(f.TenantID),
		PropertyID: optional(f.PropertyID),
		Currency:   optional(f.Currency),
		DueFrom:    f.DueFrom,
		DueTo:      f.DueTo,
	}
	for _, st := range f.Statuses {
		filter.Statuses = append(filter.Statuses, string(st))
	}

	rows, err := r.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]service.RentPayment, 0, len(rows))
	for _, rec := range rows {
		p, err := toServicePayment(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toRecord(p service.RentPayment) (persistence.PaymentRecord, error) {
	pid, err := uuid.Parse(p.ID)
	if err != nil {
		return persistence.PaymentRecord{}, fmt.Errorf("payment id %q: %w", p.ID, err)
	}
	rec := persistence.PaymentRecord{
		PaymentID:       pid,
		ContractID:      p.ContractID,
		TenantID:        p.TenantID,
		PropertyID:      p.PropertyID,
		Currency:        p.Currency,
		Amount:          p.Amount,
		AmountPaid:      p.AmountPaid,
		RemainingAmount: p.RemainingAmount,
		DueDate:         p.DueDate,
		PaidDate:        p.PaidDate,
		LateFee:         p.LateFee,
		PenaltyApplied:  p.PenaltyApplied,
		IsPartial:       p.IsPartial,
		Description:     p.Description,
		PreviousAmount:  p.PreviousAmount,
		RevisionNote:    p.RevisionNote,
		RevisedAt:       p.RevisedAt,
		LateFeeWaiver:   p.LateFeeWaiver,
		ReceiptKeys:     p.ReceiptKeys,
		Status:          string(p.Status),
		Version:         p.Version,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.PaymentMethod != nil {
		m := string(*p.PaymentMethod)
		rec.PaymentMethod = &m
	}
	if p.Deposit != nil {
		raw, err := json.Marshal(p.Deposit)
		if err != nil {
			return persistence.PaymentRecord{}, fmt.Errorf("encode deposit of %s: %w", p.ID, err)
		}
		rec.Deposit = raw
	}
	return rec, nil
}

func toServicePayment(rec persistence.PaymentRecord) (service.RentPayment, error) {
	status, err := service.ParsePaymentStatus(rec.Status)
	if err != nil {
		return service.RentPayment{}, err
	}
	currency, err := money.Lookup(rec.Currency)
	if err != nil {
		return service.RentPayment{}, fmt.Errorf("payment %s: %w", rec.PaymentID, err)
	}

	p := service.RentPayment{
		ID:              rec.PaymentID.String(),
		ContractID:      rec.ContractID,
		TenantID:        rec.TenantID,
		PropertyID:      rec.PropertyID,
		Currency:        currency.Code,
		Amount:          currency.Round(rec.Amount),
		AmountPaid:      currency.Round(rec.AmountPaid),
		RemainingAmount: currency.Round(rec.RemainingAmount),
		DueDate:         rec.DueDate,
		PaidDate:        rec.PaidDate,
		PenaltyApplied:  rec.PenaltyApplied,
		IsPartial:       rec.IsPartial,
		Description:     rec.Description,
		RevisionNote:    rec.RevisionNote,
		RevisedAt:       rec.RevisedAt,
		LateFeeWaiver:   rec.LateFeeWaiver,
		ReceiptKeys:     rec.ReceiptKeys,
		Status:          status,
		Version:         rec.Version,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
	if rec.LateFee != nil {
		fee := currency.Round(*rec.LateFee)
		p.LateFee = &fee
	}
	if rec.PreviousAmount != nil {
		prev := currency.Round(*rec.PreviousAmount)
		p.PreviousAmount = &prev
	}
	if rec.PaymentMethod != nil {
		m := service.PaymentMethod(*rec.PaymentMethod)
		p.PaymentMethod = &m
	}
	if len(rec.Deposit) > 0 {
		var d service.SecurityDeposit
		if err := json.Unmarshal(rec.Deposit, &d); err != nil {
			return service.RentPayment{}, fmt.Errorf("decode deposit of %s: %w", rec.PaymentID, err)
		}
		p.Deposit = &d
	}
	return p, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return domainerr.NotFound(service.Entity, id)
	case errors.Is(err, persistence.ErrVersionMismatch), errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", domainerr.ErrConflict, err)
	default:
		return err
	}
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
