package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
)

// Entity is the name used in errors and event refs for lease contracts.
const Entity = "lease_contract"

// ContractType classifies the lease.
type ContractType string

const (
	TypeClassic    ContractType = "classic"
	TypeFurnished  ContractType = "furnished"
	TypeCommercial ContractType = "commercial"
	TypeOther      ContractType = "other"
)

// Valid reports whether t is a known contract type.
func (t ContractType) Valid() bool {
	switch t {
	case TypeClassic, TypeFurnished, TypeCommercial, TypeOther:
		return true
	}
	return false
}

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	StatusActive     ContractStatus = "active"
	StatusExpired    ContractStatus = "expired"
	StatusTerminated ContractStatus = "terminated"
	StatusRenewed    ContractStatus = "renewed"
)

// contractTransitions lists every legal status change. Anything absent is terminal.
var contractTransitions = map[ContractStatus][]ContractStatus{
	StatusActive: {StatusRenewed, StatusTerminated, StatusExpired},
}

// CanTransitionTo reports whether s may move to next.
func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	for _, allowed := range contractTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseContractStatus converts a stored or requested status string.
func ParseContractStatus(s string) (ContractStatus, error) {
	switch st := ContractStatus(s); st {
	case StatusActive, StatusExpired, StatusTerminated, StatusRenewed:
		return st, nil
	}
	return "", fmt.Errorf("unknown contract status %q", s)
}

// PropertySnapshot is the property directory entry captured when the contract is signed.
type PropertySnapshot struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Type    string   `json:"type"`
	Surface *float64 `json:"surface,omitempty"`
	Rooms   *int     `json:"rooms,omitempty"`
}

// TenantSnapshot is the tenant directory entry captured when the contract is signed.
type TenantSnapshot struct {
	ID       string  `json:"id"`
	FullName string  `json:"fullName"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
}

// LeaseContract is the domain view of a lease. Renewals are new records linked
// through RenewedFrom/RenewedTo so the history of a tenancy stays intact.
type LeaseContract struct {
	ID                string
	Type              ContractType
	PropertyID        string
	Property          PropertySnapshot
	TenantIDs         []string
	Tenants           []TenantSnapshot
	StartDate         time.Time
	EndDate           time.Time
	Duration          calendar.Duration
	Currency          string
	RentAmount        decimal.Decimal
	DepositAmount     decimal.Decimal
	PaymentDueDay     int
	Clauses           string
	Status            ContractStatus
	RenewedFrom       *string
	RenewedTo         *string
	TerminatedAt      *time.Time
	TerminationReason *string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CreatedBy         string
}

// IsColocation reports whether several tenants share the lease.
func (c LeaseContract) IsColocation() bool {
	return len(c.TenantIDs) > 1
}

// LeadTenantID is the tenant billed for the contract's obligations.
func (c LeaseContract) LeadTenantID() string {
	if len(c.TenantIDs) == 0 {
		return ""
	}
	return c.TenantIDs[0]
}

// IsRenewal reports whether the contract continues an earlier one.
func (c LeaseContract) IsRenewal() bool {
	return c.RenewedFrom != nil && *c.RenewedFrom != ""
}

// Clone returns a copy that shares no slices or pointers with c.
func (c LeaseContract) Clone() LeaseContract {
	out := c
	out.TenantIDs = append([]string(nil), c.TenantIDs...)
	out.Tenants = append([]TenantSnapshot(nil), c.Tenants...)
	out.RenewedFrom = clonePtr(c.RenewedFrom)
	out.RenewedTo = clonePtr(c.RenewedTo)
	out.TerminatedAt = clonePtr(c.TerminatedAt)
	out.TerminationReason = clonePtr(c.TerminationReason)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ListOptions controls filtering and pagination.
type ListOptions struct {
	Status     *ContractStatus
	PropertyID *string
	TenantID   *string
	EndsBefore *time.Time
	Page       int
	PageSize   int
}

// ListResult wraps a page of contracts with pagination metadata.
type ListResult struct {
	Contracts  []LeaseContract
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Repository abstracts contract persistence. Update is an optimistic write: it
// fails with domainerr.ErrConflict when the stored Version differs from c.Version,
// and returns the record with its Version incremented.
type Repository interface {
	Create(ctx context.Context, c LeaseContract) (LeaseContract, error)
	Get(ctx context.Context, id string) (LeaseContract, error)
	Update(ctx context.Context, c LeaseContract) (LeaseContract, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) (ListResult, error)
}

func transitionError(c LeaseContract, op string, next ContractStatus) error {
	if c.Status.CanTransitionTo(next) {
		return nil
	}
	return domainerr.InvalidTransition(Entity, c.ID, op, string(c.Status))
}
