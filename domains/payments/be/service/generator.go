package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	leases "github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/batch"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/events"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/requesttrace"
)

// Generate materializes up to periods monthly obligations for an active
// contract, starting with the month of its start date. Months that already
// have a row are skipped, so running it again never duplicates anything.
// Generation stops at the first due date after the contract end date.
func (s *Service) Generate(ctx context.Context, contractID string, periods int) ([]RentPayment, error) {
	fields := domainerr.FieldErrors{}
	if contractID == "" {
		fields.Add("contractId", "is required")
	}
	if periods < 1 {
		fields.Add("periods", "must be at least 1")
	}
	if err := fields.OrNil(); err != nil {
		return nil, err
	}

	c, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.Status != leases.StatusActive {
		return nil, domainerr.InvalidTransition(leases.Entity, c.ID, "generateSchedule", string(c.Status))
	}

	var created []RentPayment
	for i := 0; i < periods; i++ {
		p, ok, err := s.generatePeriod(ctx, c, i)
		if err != nil {
			return created, err
		}
		if p == nil {
			break
		}
		if ok {
			created = append(created, *p)
		}
	}

	logging.FromContextOr(ctx, s.logger).Info("payment schedule generated",
		zap.String("contract_id", c.ID),
		zap.Int("periods", periods),
		zap.Int("created", len(created)),
	)
	return created, nil
}

// GenerateMonth creates the obligation due in the given month for every active
// contract covering it. A contract that fails is recorded in the report and the
// batch continues.
func (s *Service) GenerateMonth(ctx context.Context, year int, month time.Month) (batch.Report, error) {
	if month < time.January || month > time.December {
		return batch.Report{}, domainerr.Invalid("month", "must be between 1 and 12")
	}
	contracts, err := s.contracts.ActiveContracts(ctx)
	if err != nil {
		return batch.Report{}, err
	}

	logger := logging.FromContextOr(ctx, s.logger)
	var report batch.Report
	for _, c := range contracts {
		report.Scanned++
		offset := (year-c.StartDate.Year())*12 + int(month) - int(c.StartDate.Month())
		if offset < 0 {
			report.Skipped++
			continue
		}
		rowCtx := logging.With(ctx, s.logger, zap.String("contract_id", c.ID))
		p, ok, err := s.generatePeriod(rowCtx, c, offset)
		if err != nil {
			logging.FromContextOr(rowCtx, logger).Error("generate monthly obligation", zap.Error(err))
			report.Fail(c.ID, err)
			continue
		}
		if p == nil || !ok {
			report.Skipped++
			continue
		}
		report.Updated++
	}

	logger.Info("monthly generation finished",
		zap.String("month", fmt.Sprintf("%04d-%02d", year, int(month))),
		zap.Int("scanned", report.Scanned),
		zap.Int("created", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// generatePeriod creates the obligation for the i-th month of c. It returns a
// nil payment when the period falls after the contract end date, and false
// when a row for that month already exists.
func (s *Service) generatePeriod(ctx context.Context, c leases.LeaseContract, i int) (*RentPayment, bool, error) {
	due := calendar.SnapDay(calendar.AddMonths(c.StartDate, i), c.PaymentDueDay)
	if due.After(c.EndDate) {
		return nil, false, nil
	}

	existing, err := s.repo.FindByContractMonth(ctx, c.ID, due.Year(), due.Month())
	switch {
	case err == nil:
		return &existing, false, nil
	case !errors.Is(err, domainerr.ErrNotFound):
		return nil, false, err
	}

	now := s.now()
	description := "Rent " + calendar.MonthKey(due)
	p := RentPayment{
		ID:              uuid.NewString(),
		ContractID:      c.ID,
		TenantID:        c.LeadTenantID(),
		PropertyID:      c.PropertyID,
		Currency:        c.Currency,
		Amount:          c.RentAmount,
		RemainingAmount: c.RentAmount,
		DueDate:         due,
		Description:     &description,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if i == 0 && !c.IsRenewal() && c.DepositAmount.IsPositive() {
		p.Deposit = &SecurityDeposit{Amount: c.DepositAmount, Status: DepositNone}
	}
	if err := checkInvariants(p); err != nil {
		return nil, false, err
	}

	stored, created, err := s.repo.CreateIfAbsent(ctx, p)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.publish(ctx, events.PaymentScheduled, stored,
			fmt.Sprintf("%s due %s on lease %s", formatAmount(stored, stored.Amount), calendar.MonthKey(due), c.ID),
			map[string]string{
				"dueDate":     due.Format(time.DateOnly),
				"amount":      stored.Amount.String(),
				"currency":    stored.Currency,
				"scheduledBy": requesttrace.ActorFromContext(ctx),
			})
	}
	return &stored, created, nil
}
