package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/money"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/persistence"
)

// PostgresRepository implements the contract repository on top of ContractStore.
type PostgresRepository struct {
	store *persistence.ContractStore
}

// NewPostgresRepository constructs a repository backed by ContractStore.
func NewPostgresRepository(store *persistence.ContractStore) *PostgresRepository {
	if store == nil {
		panic("contract store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, c service.LeaseContract) (service.LeaseContract, error) {
	rec, err := toRecord(c)
	if err != nil {
		return service.LeaseContract{}, err
	}
	out, err := r.store.Create(ctx, rec)
	if err != nil {
		return service.LeaseContract{}, mapError(err, c.ID)
	}
	return toServiceContract(out)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (service.LeaseContract, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return service.LeaseContract{}, mapError(err, id)
	}
	return toServiceContract(rec)
}

func (r *PostgresRepository) Update(ctx context.Context, c service.LeaseContract) (service.LeaseContract, error) {
	rec, err := toRecord(c)
	if err != nil {
		return service.LeaseContract{}, err
	}
	out, err := r.store.Update(ctx, rec)
	if err != nil {
		return service.LeaseContract{}, mapError(err, c.ID)
	}
	return toServiceContract(out)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return mapError(r.store.Delete(ctx, id), id)
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	page, size := normalizePage(opts.Page, opts.PageSize)

	filter := persistence.ContractFilter{
		PropertyID: opts.PropertyID,
		TenantID:   opts.TenantID,
		EndsBefore: opts.EndsBefore,
	}
	if opts.Status != nil {
		s := string(*opts.Status)
		filter.Status = &s
	}

	rows, total, err := r.store.List(ctx, filter, size, (page-1)*size)
	if err != nil {
		return service.ListResult{}, err
	}

	contracts := make([]service.LeaseContract, 0, len(rows))
	for _, rec := range rows {
		c, err := toServiceContract(rec)
		if err != nil {
			return service.ListResult{}, err
		}
		contracts = append(contracts, c)
	}

	return service.ListResult{
		Contracts:  contracts,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

func toRecord(c service.LeaseContract) (persistence.ContractRecord, error) {
	property, err := json.Marshal(c.Property)
	if err != nil {
		return persistence.ContractRecord{}, fmt.Errorf("encode property snapshot: %w", err)
	}
	tenants, err := json.Marshal(c.Tenants)
	if err != nil {
		return persistence.ContractRecord{}, fmt.Errorf("encode tenant snapshots: %w", err)
	}

	return persistence.ContractRecord{
		ContractID:        c.ID,
		ContractType:      string(c.Type),
		PropertyID:        c.PropertyID,
		Property:          property,
		TenantIDs:         c.TenantIDs,
		Tenants:           tenants,
		StartDate:         c.StartDate,
		EndDate:           c.EndDate,
		DurationValue:     c.Duration.Value,
		DurationUnit:      string(c.Duration.Unit),
		Currency:          c.Currency,
		RentAmount:        c.RentAmount,
		DepositAmount:     c.DepositAmount,
		PaymentDueDay:     c.PaymentDueDay,
		Clauses:           c.Clauses,
		Status:            string(c.Status),
		RenewedFrom:       c.RenewedFrom,
		RenewedTo:         c.RenewedTo,
		TerminatedAt:      c.TerminatedAt,
		TerminationReason: c.TerminationReason,
		Version:           c.Version,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		CreatedBy:         c.CreatedBy,
	}, nil
}

func toServiceContract(rec persistence.ContractRecord) (service.LeaseContract, error) {
	status, err := service.ParseContractStatus(rec.Status)
	if err != nil {
		return service.LeaseContract{}, err
	}
	currency, err := money.Lookup(rec.Currency)
	if err != nil {
		return service.LeaseContract{}, fmt.Errorf("contract %s: %w", rec.ContractID, err)
	}

	c := service.LeaseContract{
		ID:                rec.ContractID,
		Type:              service.ContractType(rec.ContractType),
		PropertyID:        rec.PropertyID,
		TenantIDs:         rec.TenantIDs,
		StartDate:         rec.StartDate,
		EndDate:           rec.EndDate,
		Duration:          calendar.Duration{Value: rec.DurationValue, Unit: calendar.Unit(rec.DurationUnit)},
		Currency:          currency.Code,
		RentAmount:        currency.Round(rec.RentAmount),
		DepositAmount:     currency.Round(rec.DepositAmount),
		PaymentDueDay:     rec.PaymentDueDay,
		Clauses:           rec.Clauses,
		Status:            status,
		RenewedFrom:       rec.RenewedFrom,
		RenewedTo:         rec.RenewedTo,
		TerminatedAt:      rec.TerminatedAt,
		TerminationReason: rec.TerminationReason,
		Version:           rec.Version,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
		CreatedBy:         rec.CreatedBy,
	}
	if err := json.Unmarshal(rec.Property, &c.Property); err != nil {
		return service.LeaseContract{}, fmt.Errorf("decode property snapshot of %s: %w", rec.ContractID, err)
	}
	if err := json.Unmarshal(rec.Tenants, &c.Tenants); err != nil {
		return service.LeaseContract{}, fmt.Errorf("decode tenant snapshots of %s: %w", rec.ContractID, err)
	}
	return c, nil
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
