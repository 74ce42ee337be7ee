package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// RecordPaymentInput is one receipt against an obligation. Amount is what was
// received this time; receipts accumulate. A repeated non-empty
// IdempotencyKey is acknowledged without counting the amount again.
type RecordPaymentInput struct {
	Method         PaymentMethod
	Amount         decimal.Decimal
	PaidDate       *time.Time
	IdempotencyKey string
}

// ReviseInput changes the rent of obligations due on or after EffectiveDate.
type ReviseInput struct {
	NewAmount     decimal.Decimal
	EffectiveDate time.Time
	Reason        string
}

// RecordPayment applies a receipt. The obligation becomes paid once the
// cumulative amount reaches the rent, partial otherwise. Overpayment is capped
// at the rent and logged.
func (s *Service) RecordPayment(ctx context.Context, id string, input RecordPaymentInput) (RentPayment, error) {
	fields := domainerr.FieldErrors{}
	if !input.Method.Valid() {
		fields.Add("paymentMethod", "must be one of bank_transfer, cash, mobile_money, check, other")
	}
	if !input.Amount.IsPositive() {
		fields.Add("amount", "must be greater than zero")
	}
	if input.PaidDate != nil && input.PaidDate.IsZero() {
		fields.Add("paidDate", "must be a valid date")
	}
	if err := fields.OrNil(); err != nil {
		return RentPayment{}, err
	}
	key := strings.TrimSpace(input.IdempotencyKey)

	var overpaid decimal.Decimal
	updated, changed, err := s.mutate(ctx, id, opRecordPayment, func(p *RentPayment, cur money.Currency) (bool, error) {
		if key != "" && p.HasReceipt(key) {
			return false, nil
		}
		if err := requireFrom(*p, opRecordPayment); err != nil {
			return false, err
		}
		received := cur.Round(input.Amount)
		if !received.IsPositive() {
			return false, domainerr.Invalid("amount", "rounds to zero in "+cur.Code)
		}

		method := input.Method
		p.PaymentMethod = &method
		cumulative := p.AmountPaid.Add(received)
		if cumulative.GreaterThanOrEqual(p.Amount) {
			overpaid = cumulative.Sub(p.Amount)
			paidOn := calendar.StartOfDay(s.now())
			if input.PaidDate != nil {
				paidOn = calendar.StartOfDay(*input.PaidDate)
			}
			p.AmountPaid = p.Amount
			p.RemainingAmount = decimal.Zero
			p.PaidDate = &paidOn
			p.IsPartial = false
			p.Status = StatusPaid
		} else {
			p.AmountPaid = cumulative
			p.RemainingAmount = p.Amount.Sub(cumulative)
			p.PaidDate = nil
			p.IsPartial = true
			p.Status = StatusPartial
		}
		if key != "" {
			p.ReceiptKeys = append(p.ReceiptKeys, key)
		}
		return true, nil
	})
	if err != nil || !changed {
		return updated, err
	}

	if overpaid.IsPositive() {
		logging.FromContextOr(ctx, s.logger).Warn("overpayment capped at rent amount",
			zap.String("payment_id", updated.ID),
			zap.String("excess", overpaid.String()),
			zap.String("currency", updated.Currency),
		)
	}

	payload := map[string]string{
		"amount":      input.Amount.String(),
		"amountPaid":  updated.AmountPaid.String(),
		"remaining":   updated.RemainingAmount.String(),
		"method":      string(input.Method),
		"recordedBy":  requesttrace.ActorFromContext(ctx),
		"receiptDate": s.now().Format(time.DateOnly),
	}
	if updated.Status == StatusPaid {
		s.publish(ctx, events.PaymentReceived, updated,
			fmt.Sprintf("%s received for %s", formatAmount(updated, updated.AmountPaid), calendar.MonthKey(updated.DueDate)), payload)
	} else {
		s.publish(ctx, events.PaymentPartial, updated,
			fmt.Sprintf("partial payment, %s outstanding for %s", formatAmount(updated, updated.RemainingAmount), calendar.MonthKey(updated.DueDate)), payload)
	}
	return updated, nil
}

// MarkUnpaid reverses recorded receipts, e.g. after a bounced transfer. The
// obligation returns to late when a late fee is assessed, pending otherwise.
func (s *Service) MarkUnpaid(ctx context.Context, id string) (RentPayment, error) {
	var reversed decimal.Decimal
	updated, _, err := s.mutate(ctx, id, opMarkUnpaid, func(p *RentPayment, _ money.Currency) (bool, error) {
		if err := requireFrom(*p, opMarkUnpaid); err != nil {
			return false, err
		}
		reversed = p.AmountPaid
		p.AmountPaid = decimal.Zero
		p.RemainingAmount = p.Amount
		p.PaidDate = nil
		p.PaymentMethod = nil
		p.ReceiptKeys = nil
		p.IsPartial = false
		if p.HasLateFee() {
			p.Status = StatusLate
		} else {
			p.Status = StatusPending
		}
		return true, nil
	})
	if err != nil {
		return RentPayment{}, err
	}

	logging.FromContextOr(ctx, s.logger).Warn("payment reversed",
		zap.String("payment_id", updated.ID),
		zap.String("reversed", reversed.String()),
		zap.String("actor", requesttrace.ActorFromContext(ctx)),
	)
	s.publish(ctx, events.PaymentReversed, updated,
		fmt.Sprintf("%s reversed for %s", formatAmount(updated, reversed), calendar.MonthKey(updated.DueDate)),
		map[string]string{"reversed": reversed.String(), "status": string(updated.Status)})
	return updated, nil
}

// ApplyLateFee assesses round(amount * rate) on a pending or late obligation.
// A zero rate uses the configured default. The status is left unchanged.
func (s *Service) ApplyLateFee(ctx context.Context, id string, rate decimal.Decimal) (RentPayment, error) {
	if rate.IsZero() {
		rate = s.feeRate
	}
	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return RentPayment{}, domainerr.Invalid("rate", "must be greater than 0 and at most 1")
	}

	updated, _, err := s.mutate(ctx, id, opApplyLateFee, func(p *RentPayment, cur money.Currency) (bool, error) {
		if err := requireFrom(*p, opApplyLateFee); err != nil {
			return false, err
		}
		fee := cur.Percent(p.Amount, rate)
		p.LateFee = &fee
		p.PenaltyApplied = true
		p.LateFeeWaiver = nil
		return true, nil
	})
	if err != nil {
		return RentPayment{}, err
	}

	s.publish(ctx, events.PaymentLateFeeApplied, updated,
		fmt.Sprintf("late fee of %s applied", formatAmount(updated, *updated.LateFee)),
		map[string]string{"lateFee": updated.LateFee.String(), "rate": rate.String()})
	return updated, nil
}

// WaiveLateFee clears an assessed late fee and records why.
func (s *Service) WaiveLateFee(ctx context.Context, id, reason string) (RentPayment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return RentPayment{}, domainerr.Invalid("reason", "is required")
	}

	var waived decimal.Decimal
	updated, _, err := s.mutate(ctx, id, opWaiveLateFee, func(p *RentPayment, _ money.Currency) (bool, error) {
		if err := requireFrom(*p, opWaiveLateFee); err != nil {
			return false, err
		}
		if !p.HasLateFee() {
			return false, domainerr.InvalidTransition(Entity, p.ID, opWaiveLateFee, "no late fee")
		}
		waived = *p.LateFee
		p.LateFee = nil
		p.PenaltyApplied = false
		p.LateFeeWaiver = &reason
		return true, nil
	})
	if err != nil {
		return RentPayment{}, err
	}

	s.publish(ctx, events.PaymentLateFeeWaived, updated,
		fmt.Sprintf("late fee of %s waived: %s", formatAmount(updated, waived), reason),
		map[string]string{"waived": waived.String(), "reason": reason, "waivedBy": requesttrace.ActorFromContext(ctx)})
	return updated, nil
}

// EvaluateLateStatuses flips pending obligations whose grace period has elapsed
// at now to late, assessing the default fee where none exists yet. Rows that
// fail are logged and skipped.
func (s *Service) EvaluateLateStatuses(ctx context.Context, now time.Time) (batch.Report, error) {
	cutoff := now.AddDate(0, 0, -s.grace)
	candidates, err := s.repo.List(ctx, Filter{Statuses: []PaymentStatus{StatusPending}, DueTo: &cutoff})
	if err != nil {
		return batch.Report{}, err
	}

	logger := logging.FromContextOr(ctx, s.logger)
	var report batch.Report
	for _, c := range candidates {
		report.Scanned++
		updated, changed, err := s.mutate(ctx, c.ID, opMarkLate, func(p *RentPayment, cur money.Currency) (bool, error) {
			if p.Status != StatusPending || !calendar.PastGrace(p.DueDate, s.grace, now) {
				return false, nil
			}
			p.Status = StatusLate
			// A waived fee stays waived; only ApplyLateFee reassesses it.
			if p.LateFee == nil && p.LateFeeWaiver == nil {
				fee := cur.Percent(p.Amount, s.feeRate)
				p.LateFee = &fee
				p.PenaltyApplied = true
			}
			return true, nil
		})
		if err != nil {
			logger.Error("mark payment late", zap.String("payment_id", c.ID), zap.Error(err))
			report.Fail(c.ID, err)
			continue
		}
		if !changed {
			report.Skipped++
			continue
		}
		report.Updated++
		fee := decimal.Zero
		if updated.LateFee != nil {
			fee = *updated.LateFee
		}
		s.publish(ctx, events.PaymentLate, updated,
			fmt.Sprintf("rent for %s is late, fee %s", calendar.MonthKey(updated.DueDate), formatAmount(updated, fee)),
			map[string]string{"dueDate": updated.DueDate.Format(time.DateOnly), "lateFee": fee.String()})
	}

	logger.Info("late evaluation finished",
		zap.Time("as_of", now),
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// ReviseRent changes the amount of one unsettled obligation due on or after the
// effective date. Amounts already received are kept.
func (s *Service) ReviseRent(ctx context.Context, id string, input ReviseInput) (RentPayment, error) {
	reason, err := validateRevision(input)
	if err != nil {
		return RentPayment{}, err
	}
	effective := calendar.StartOfDay(input.EffectiveDate)

	var previous decimal.Decimal
	updated, _, err := s.mutate(ctx, id, opReviseRent, func(p *RentPayment, cur money.Currency) (bool, error) {
		if err := requireFrom(*p, opReviseRent); err != nil {
			return false, err
		}
		if p.DueDate.Before(effective) {
			return false, domainerr.Invalid("effectiveDate", "obligation is due before the effective date")
		}
		amount := cur.Round(input.NewAmount)
		if !amount.IsPositive() {
			return false, domainerr.Invalid("newAmount", "must be greater than zero")
		}
		if amount.LessThan(p.AmountPaid) {
			return false, domainerr.Invalid("newAmount", "must not be below the amount already paid")
		}

		previous = p.Amount
		now := s.now()
		p.PreviousAmount = &previous
		p.RevisionNote = &reason
		p.RevisedAt = &now
		p.Amount = amount
		p.RemainingAmount = amount.Sub(p.AmountPaid)
		switch {
		case p.RemainingAmount.IsZero():
			paidOn := calendar.StartOfDay(now)
			p.PaidDate = &paidOn
			p.IsPartial = false
			p.Status = StatusPaid
		case p.AmountPaid.IsPositive():
			p.IsPartial = true
			p.Status = StatusPartial
		}
		return true, nil
	})
	if err != nil {
		return RentPayment{}, err
	}

	s.publish(ctx, events.PaymentRentRevised, updated,
		fmt.Sprintf("rent for %s revised from %s to %s", calendar.MonthKey(updated.DueDate),
			formatAmount(updated, previous), formatAmount(updated, updated.Amount)),
		map[string]string{"previousAmount": previous.String(), "newAmount": updated.Amount.String(), "reason": reason})
	return updated, nil
}

// ReviseContractRent revises every unsettled obligation of a contract due on
// or after the effective date.
func (s *Service) ReviseContractRent(ctx context.Context, contractID string, input ReviseInput) (batch.Report, error) {
	if _, err := validateRevision(input); err != nil {
		return batch.Report{}, err
	}
	rows, err := s.ListByContract(ctx, contractID)
	if err != nil {
		return batch.Report{}, err
	}

	effective := calendar.StartOfDay(input.EffectiveDate)
	logger := logging.FromContextOr(ctx, s.logger)
	var report batch.Report
	for _, p := range rows {
		report.Scanned++
		if p.Status == StatusPaid || p.DueDate.Before(effective) {
			report.Skipped++
			continue
		}
		if _, err := s.ReviseRent(ctx, p.ID, input); err != nil {
			var validationErr *domainerr.ValidationError
			if errors.As(err, &validationErr) || errors.Is(err, domainerr.ErrInvalidTransition) {
				report.Skipped++
				logger.Info("rent revision skipped", zap.String("payment_id", p.ID), zap.Error(err))
				continue
			}
			logger.Error("revise rent", zap.String("payment_id", p.ID), zap.Error(err))
			report.Fail(p.ID, err)
			continue
		}
		report.Updated++
	}
	return report, nil
}

func validateRevision(input ReviseInput) (string, error) {
	fields := domainerr.FieldErrors{}
	if !input.NewAmount.IsPositive() {
		fields.Add("newAmount", "must be greater than zero")
	}
	if input.EffectiveDate.IsZero() {
		fields.Add("effectiveDate", "is required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		fields.Add("reason", "is required")
	}
	return reason, fields.OrNil()
}
