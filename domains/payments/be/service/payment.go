package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
)

// Entity is the name used in errors and event refs for rent payments.
const Entity = "rent_payment"

// PaymentStatus is the lifecycle state of one rent obligation.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
	StatusLate    PaymentStatus = "late"
)

// ParsePaymentStatus converts a stored or requested status string.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case StatusPending, StatusPartial, StatusPaid, StatusLate:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// PaymentMethod is how a tenant paid.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCheck        PaymentMethod = "check"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCash, MethodMobileMoney, MethodCheck, MethodOther:
		return true
	}
	return false
}

// DepositStatus is the state of the security deposit refund workflow.
type DepositStatus string

const (
	DepositNone      DepositStatus = "none"
	DepositRequested DepositStatus = "requested"
	DepositApproved  DepositStatus = "approved"
	DepositRefunded  DepositStatus = "refunded"
	DepositRefused   DepositStatus = "refused"
)

// depositTransitions lists every legal deposit status change. Refunded and
// refused are terminal.
var depositTransitions = map[DepositStatus][]DepositStatus{
	DepositNone:      {DepositRequested},
	DepositRequested: {DepositApproved, DepositRefused},
	DepositApproved:  {DepositRefunded, DepositRefused},
}

// CanTransitionTo reports whether s may move to next.
func (s DepositStatus) CanTransitionTo(next DepositStatus) bool {
	for _, allowed := range depositTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Ledger operations, used in errors, logs and the source-state table below.
const (
	opRecordPayment = "recordPayment"
	opMarkUnpaid    = "markUnpaid"
	opApplyLateFee  = "applyLateFee"
	opWaiveLateFee  = "waiveLateFee"
	opMarkLate      = "markLate"
	opReviseRent    = "reviseRent"
)

// allowedFrom lists the payment states each ledger operation may start from.
// The resulting state is derived from the amounts by the operation itself.
var allowedFrom = map[string][]PaymentStatus{
	opRecordPayment: {StatusPending, StatusPartial, StatusLate},
	opMarkUnpaid:    {StatusPartial, StatusPaid, StatusLate},
	opApplyLateFee:  {StatusPending, StatusLate},
	opWaiveLateFee:  {StatusPending, StatusPartial, StatusPaid, StatusLate},
	opMarkLate:      {StatusPending},
	opReviseRent:    {StatusPending, StatusPartial, StatusLate},
}

// SecurityDeposit is the one-time held sum and its refund workflow. It lives on
// the payment row that holds it.
type SecurityDeposit struct {
	Amount         decimal.Decimal  `json:"amount"`
	Status         DepositStatus    `json:"status"`
	RequestReason  *string          `json:"requestReason,omitempty"`
	RequestedAt    *time.Time       `json:"requestedAt,omitempty"`
	RequestedBy    *string          `json:"requestedBy,omitempty"`
	ApprovedAt     *time.Time       `json:"approvedAt,omitempty"`
	ApprovedBy     *string          `json:"approvedBy,omitempty"`
	RefundAmount   *decimal.Decimal `json:"refundAmount,omitempty"`
	WithheldAmount *decimal.Decimal `json:"withheldAmount,omitempty"`
	RefundDate     *time.Time       `json:"refundDate,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
	RefusalReason  *string          `json:"refusalReason,omitempty"`
	RefusedAt      *time.Time       `json:"refusedAt,omitempty"`
	RefusedBy      *string          `json:"refusedBy,omitempty"`
}

// RentPayment is one billing period's obligation on a contract.
type RentPayment struct {
	ID              string
	ContractID      string
	TenantID        string
	PropertyID      string
	Currency        string
	Amount          decimal.Decimal
	AmountPaid      decimal.Decimal
	RemainingAmount decimal.Decimal
	DueDate         time.Time
	PaidDate        *time.Time
	PaymentMethod   *PaymentMethod
	LateFee         *decimal.Decimal
	PenaltyApplied  bool
	IsPartial       bool
	Description     *string
	PreviousAmount  *decimal.Decimal
	RevisionNote    *string
	RevisedAt       *time.Time
	LateFeeWaiver   *string
	ReceiptKeys     []string
	Status          PaymentStatus
	Deposit         *SecurityDeposit
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasLateFee reports whether a non-zero late fee is assessed.
func (p RentPayment) HasLateFee() bool {
	return p.LateFee != nil && p.LateFee.IsPositive()
}

// HasReceipt reports whether a receipt with the idempotency key was already applied.
func (p RentPayment) HasReceipt(key string) bool {
	for _, k := range p.ReceiptKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no pointers or slices with p.
func (p RentPayment) Clone() RentPayment {
	out := p
	out.PaidDate = clonePtr(p.PaidDate)
	out.PaymentMethod = clonePtr(p.PaymentMethod)
	out.LateFee = clonePtr(p.LateFee)
	out.Description = clonePtr(p.Description)
	out.PreviousAmount = clonePtr(p.PreviousAmount)
	out.RevisionNote = clonePtr(p.RevisionNote)
	out.RevisedAt = clonePtr(p.RevisedAt)
	out.LateFeeWaiver = clonePtr(p.LateFeeWaiver)
	out.ReceiptKeys = append([]string(nil), p.ReceiptKeys...)
	if p.Deposit != nil {
		d := p.Deposit.clone()
		out.Deposit = &d
	}
	return out
}

func (d SecurityDeposit) clone() SecurityDeposit {
	out := d
	out.RequestReason = clonePtr(d.RequestReason)
	out.RequestedAt = clonePtr(d.RequestedAt)
	out.RequestedBy = clonePtr(d.RequestedBy)
	out.ApprovedAt = clonePtr(d.ApprovedAt)
	out.ApprovedBy = clonePtr(d.ApprovedBy)
	out.RefundAmount = clonePtr(d.RefundAmount)
	out.WithheldAmount = clonePtr(d.WithheldAmount)
	out.RefundDate = clonePtr(d.RefundDate)
	out.Notes = clonePtr(d.Notes)
	out.RefusalReason = clonePtr(d.RefusalReason)
	out.RefusedAt = clonePtr(d.RefusedAt)
	out.RefusedBy = clonePtr(d.RefusedBy)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// checkInvariants guards the amount and status relations every stored row must satisfy.
func checkInvariants(p RentPayment) error {
	fail := func(detail string) error { return domainerr.Invariant(Entity, p.ID, detail) }

	switch {
	case p.AmountPaid.IsNegative():
		return fail("amount paid is negative")
	case p.RemainingAmount.IsNegative():
		return fail("remaining amount is negative")
	case !p.AmountPaid.Add(p.RemainingAmount).Equal(p.Amount):
		return fail(fmt.Sprintf("amount paid %s + remaining %s != amount %s", p.AmountPaid, p.RemainingAmount, p.Amount))
	}

	settled := p.RemainingAmount.IsZero() && p.PaidDate != nil
	if (p.Status == StatusPaid) != settled {
		return fail(fmt.Sprintf("status %s inconsistent with remaining %s", p.Status, p.RemainingAmount))
	}
	inProgress := p.AmountPaid.IsPositive() && p.AmountPaid.LessThan(p.Amount)
	if (p.Status == StatusPartial) != inProgress {
		return fail(fmt.Sprintf("status %s inconsistent with amount paid %s", p.Status, p.AmountPaid))
	}
	if p.IsPartial != inProgress {
		return fail("partial flag out of sync with amounts")
	}
	return nil
}

func requireFrom(p RentPayment, op string) error {
	for _, st := range allowedFrom[op] {
		if p.Status == st {
			return nil
		}
	}
	return domainerr.InvalidTransition(Entity, p.ID, op, string(p.Status))
}

// Filter narrows payment listings. DueTo is exclusive; empty fields match everything.
type Filter struct {
	ContractID string
	TenantID   string
	PropertyID string
	Currency   string
	Statuses   []PaymentStatus
	DueFrom    *time.Time
	DueTo      *time.Time
}

// Matches reports whether p passes the filter.
func (f Filter) Matches(p RentPayment) bool {
	if f.ContractID != "" && p.ContractID != f.ContractID {
		return false
	}
	if f.TenantID != "" && p.TenantID != f.TenantID {
		return false
	}
	if f.PropertyID != "" && p.PropertyID != f.PropertyID {
		return false
	}
	if f.Currency != "" && p.Currency != f.Currency {
		return false
	}
	if f.DueFrom != nil && p.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && !p.DueDate.Before(*f.DueTo) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, st := range f.Statuses {
			if p.Status == st {
				return true
			}
		}
		return false
	}
	return true
}

// Repository abstracts payment persistence. Rows are unique per contract and
// calendar month of the due date. Update is an optimistic write that fails with
// domainerr.ErrConflict when the stored Version differs from p.Version.
type Repository interface {
	// CreateIfAbsent stores p unless the contract already has an obligation due
	// in the same month; the boolean reports whether p was written.
	CreateIfAbsent(ctx context.Context, p RentPayment) (RentPayment, bool, error)
	Get(ctx context.Context, id string) (RentPayment, error)
	FindByContractMonth(ctx context.Context, contractID string, year int, month time.Month) (RentPayment, error)
	Update(ctx context.Context, p RentPayment) (RentPayment, error)
	// List returns matching rows ordered by due date, then id.
	List(ctx context.Context, f Filter) ([]RentPayment, error)
}
