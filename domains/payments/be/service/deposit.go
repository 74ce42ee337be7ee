package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/events"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/money"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/requesttrace"
)

// RefundInput completes an approved deposit refund. Whatever is not refunded
// is recorded as withheld.
type RefundInput struct {
	Amount decimal.Decimal
	Date   time.Time
	Notes  string
}

// RequestRefund opens the refund workflow on the payment holding the deposit.
func (s *Service) RequestRefund(ctx context.Context, id, reason string) (RentPayment, error) {
	reason = strings.TrimSpace(reason)
	updated, err := s.moveDeposit(ctx, id, "requestRefund", DepositRequested, func(d *SecurityDeposit, _ money.Currency, now time.Time, actor string) error {
		if reason != "" {
			d.RequestReason = &reason
		}
		d.RequestedAt = &now
		d.RequestedBy = &actor
		return nil
	})
	if err != nil {
		return RentPayment{}, err
	}
	s.publish(ctx, events.DepositRefundRequested, updated,
		fmt.Sprintf("refund of %s deposit requested", formatAmount(updated, updated.Deposit.Amount)),
		map[string]string{"reason": reason})
	return updated, nil
}

// ApproveRefund approves a requested refund.
func (s *Service) ApproveRefund(ctx context.Context, id string) (RentPayment, error) {
	updated, err := s.moveDeposit(ctx, id, "approveRefund", DepositApproved, func(d *SecurityDeposit, _ money.Currency, now time.Time, actor string) error {
		d.ApprovedAt = &now
		d.ApprovedBy = &actor
		return nil
	})
	if err != nil {
		return RentPayment{}, err
	}
	s.publish(ctx, events.DepositRefundApproved, updated,
		fmt.Sprintf("refund of %s deposit approved", formatAmount(updated, updated.Deposit.Amount)), nil)
	return updated, nil
}

// RefundDeposit records the refund of an approved deposit. The refund may be
// partial but never exceeds the deposit.
func (s *Service) RefundDeposit(ctx context.Context, id string, input RefundInput) (RentPayment, error) {
	fields := domainerr.FieldErrors{}
	if input.Amount.IsNegative() {
		fields.Add("refundAmount", "must not be negative")
	}
	if input.Date.IsZero() {
		fields.Add("refundDate", "is required")
	}
	if err := fields.OrNil(); err != nil {
		return RentPayment{}, err
	}
	notes := strings.TrimSpace(input.Notes)

	updated, err := s.moveDeposit(ctx, id, "refundDeposit", DepositRefunded, func(d *SecurityDeposit, cur money.Currency, _ time.Time, _ string) error {
		refund := cur.Round(input.Amount)
		if refund.GreaterThan(d.Amount) {
			return domainerr.Invalid("refundAmount", "must not exceed the deposit of "+cur.Format(d.Amount))
		}
		withheld := d.Amount.Sub(refund)
		date := calendar.StartOfDay(input.Date)
		d.RefundAmount = &refund
		d.WithheldAmount = &withheld
		d.RefundDate = &date
		if notes != "" {
			d.Notes = &notes
		}
		return nil
	})
	if err != nil {
		return RentPayment{}, err
	}
	d := updated.Deposit
	s.publish(ctx, events.DepositRefunded, updated,
		fmt.Sprintf("deposit refunded: %s returned, %s withheld", formatAmount(updated, *d.RefundAmount), formatAmount(updated, *d.WithheldAmount)),
		map[string]string{
			"deposit":    d.Amount.String(),
			"refunded":   d.RefundAmount.String(),
			"withheld":   d.WithheldAmount.String(),
			"refundDate": d.RefundDate.Format(time.DateOnly),
			"currency":   updated.Currency,
		})
	return updated, nil
}

// RefuseRefund closes a requested or approved refund without paying it out.
func (s *Service) RefuseRefund(ctx context.Context, id, reason string) (RentPayment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return RentPayment{}, domainerr.Invalid("reason", "is required")
	}
	updated, err := s.moveDeposit(ctx, id, "refuseRefund", DepositRefused, func(d *SecurityDeposit, _ money.Currency, now time.Time, actor string) error {
		d.RefusalReason = &reason
		d.RefusedAt = &now
		d.RefusedBy = &actor
		return nil
	})
	if err != nil {
		return RentPayment{}, err
	}
	s.publish(ctx, events.DepositRefundRefused, updated,
		fmt.Sprintf("deposit refund refused: %s", reason), map[string]string{"reason": reason})
	return updated, nil
}

// moveDeposit runs one deposit workflow step under the payment lock.
func (s *Service) moveDeposit(ctx context.Context, id, op string, next DepositStatus, fn func(d *SecurityDeposit, cur money.Currency, now time.Time, actor string) error) (RentPayment, error) {
	actor := requesttrace.ActorFromContext(ctx)
	updated, _, err := s.mutate(ctx, id, op, func(p *RentPayment, cur money.Currency) (bool, error) {
		if p.Deposit == nil {
			return false, domainerr.Invalid("deposit", "payment does not hold a security deposit")
		}
		if !p.Deposit.Status.CanTransitionTo(next) {
			return false, domainerr.InvalidTransition(Entity, p.ID, op, "deposit "+string(p.Deposit.Status))
		}
		if err := fn(p.Deposit, cur, s.now(), actor); err != nil {
			return false, err
		}
		p.Deposit.Status = next
		return true, nil
	})
	return updated, err
}
