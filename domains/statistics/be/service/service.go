package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	leases "github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	payments "github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/calendar"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/money"
)

var hundred = decimal.NewFromInt(100)

// PaymentReader is the read side of the payment ledger.
type PaymentReader interface {
	List(ctx context.Context, f payments.Filter) ([]payments.RentPayment, error)
}

// ContractReader resolves contracts for per-contract summaries.
type ContractReader interface {
	Get(ctx context.Context, id string) (leases.LeaseContract, error)
}

// Window selects obligations by due date. To is exclusive.
type Window struct {
	From time.Time
	To   time.Time
}

// Filter narrows the projected payments. An empty Currency means the
// configured default; amounts in different currencies are never summed.
type Filter struct {
	Currency   string
	ContractID string
	PropertyID string
	TenantID   string
}

// CollectionRate compares cash received with rent expected.
type CollectionRate struct {
	Currency  string          `json:"currency"`
	Expected  decimal.Decimal `json:"expected"`
	Collected decimal.Decimal `json:"collected"`
	Rate      decimal.Decimal `json:"rate"`
	Count     int             `json:"count"`
}

// MonthBucket aggregates the obligations due in one calendar month. The
// status sub-totals add up to Expected; Received is the cash actually paid.
type MonthBucket struct {
	Month     string          `json:"month"`
	Expected  decimal.Decimal `json:"expected"`
	Received  decimal.Decimal `json:"received"`
	Collected decimal.Decimal `json:"collected"`
	Pending   decimal.Decimal `json:"pending"`
	Partial   decimal.Decimal `json:"partial"`
	Late      decimal.Decimal `json:"late"`
	Count     int             `json:"count"`
}

// OverdueItem is an unpaid obligation past its grace period.
type OverdueItem struct {
	Payment     payments.RentPayment
	DaysOverdue int
	Outstanding decimal.Decimal
}

// ContractSummary totals the obligations of one contract.
type ContractSummary struct {
	ContractID  string
	Currency    string
	Obligations int
	Expected    decimal.Decimal
	Received    decimal.Decimal
	Outstanding decimal.Decimal
	LateFees    decimal.Decimal
	ByStatus    map[payments.PaymentStatus]int
	NextDue     *time.Time
}

// Config carries policy and optional collaborators.
type Config struct {
	GracePeriodDays int
	DefaultCurrency string
	Logger          *zap.Logger
}

// Service defines the read-only reporting operations.
type Service interface {
	CollectionRate(ctx context.Context, w Window, f Filter) (CollectionRate, error)
	MonthlyBreakdown(ctx context.Context, w Window, f Filter) ([]MonthBucket, error)
	OverduePayments(ctx context.Context, now time.Time, f Filter) ([]OverdueItem, error)
	ContractSummary(ctx context.Context, contractID string) (ContractSummary, error)
}

type service struct {
	payments        PaymentReader
	contracts       ContractReader
	grace           int
	defaultCurrency string
	logger          *zap.Logger
}

// New constructs a statistics Service over the payment ledger.
func New(p PaymentReader, c ContractReader, cfg Config) Service {
	if p == nil {
		panic("payment reader is required")
	}
	if c == nil {
		panic("contract reader is required")
	}
	s := &service{
		payments:        p,
		contracts:       c,
		grace:           cfg.GracePeriodDays,
		defaultCurrency: cfg.DefaultCurrency,
		logger:          cfg.Logger,
	}
	if s.grace <= 0 {
		s.grace = payments.DefaultGracePeriodDays
	}
	if s.defaultCurrency == "" {
		s.defaultCurrency = money.XOF.Code
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *service) CollectionRate(ctx context.Context, w Window, f Filter) (CollectionRate, error) {
	currency, rows, err := s.load(ctx, w, f)
	if err != nil {
		return CollectionRate{}, err
	}

	out := CollectionRate{Currency: currency.Code, Expected: decimal.Zero, Collected: decimal.Zero, Rate: decimal.Zero}
	for _, p := range rows {
		out.Expected = out.Expected.Add(p.Amount)
		out.Collected = out.Collected.Add(p.AmountPaid)
		out.Count++
	}
	if out.Expected.IsPositive() {
		out.Rate = out.Collected.Div(out.Expected).Mul(hundred).Round(2)
	}
	return out, nil
}

func (s *service) MonthlyBreakdown(ctx context.Context, w Window, f Filter) ([]MonthBucket, error) {
	_, rows, err := s.load(ctx, w, f)
	if err != nil {
		return nil, err
	}

	var buckets []MonthBucket
	index := map[string]int{}
	for m := calendar.Date(w.From.Year(), w.From.Month(), 1); m.Before(w.To); m = calendar.AddMonths(m, 1) {
		key := calendar.MonthKey(m)
		index[key] = len(buckets)
		buckets = append(buckets, MonthBucket{
			Month:     key,
			Expected:  decimal.Zero,
			Received:  decimal.Zero,
			Collected: decimal.Zero,
			Pending:   decimal.Zero,
			Partial:   decimal.Zero,
			Late:      decimal.Zero,
		})
	}

	for _, p := range rows {
		i, ok := index[calendar.MonthKey(p.DueDate)]
		if !ok {
			continue
		}
		b := &buckets[i]
		b.Count++
		b.Expected = b.Expected.Add(p.Amount)
		b.Received = b.Received.Add(p.AmountPaid)
		switch p.Status {
		case payments.StatusPaid:
			b.Collected = b.Collected.Add(p.Amount)
		case payments.StatusPartial:
			b.Partial = b.Partial.Add(p.Amount)
		case payments.StatusLate:
			b.Late = b.Late.Add(p.Amount)
		default:
			b.Pending = b.Pending.Add(p.Amount)
		}
	}
	return buckets, nil
}

func (s *service) OverduePayments(ctx context.Context, now time.Time, f Filter) ([]OverdueItem, error) {
	if now.IsZero() {
		return nil, domainerr.Invalid("asOf", "is required")
	}
	currency, err := s.currency(f)
	if err != nil {
		return nil, domainerr.Invalid("currency", err.Error())
	}
	rows, err := s.payments.List(ctx, s.paymentFilter(f, currency, nil, nil,
		payments.StatusPending, payments.StatusLate))
	if err != nil {
		return nil, err
	}

	var out []OverdueItem
	for _, p := range rows {
		if p.Status == payments.StatusPending && !calendar.PastGrace(p.DueDate, s.grace, now) {
			continue
		}
		outstanding := p.RemainingAmount
		if p.LateFee != nil {
			outstanding = outstanding.Add(*p.LateFee)
		}
		out = append(out, OverdueItem{
			Payment:     p,
			DaysOverdue: int(now.Sub(p.DueDate).Hours() / 24),
			Outstanding: outstanding,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Payment, out[j].Payment
		if a.DueDate.Equal(b.DueDate) {
			return a.ID < b.ID
		}
		return a.DueDate.Before(b.DueDate)
	})

	logging.FromContextOr(ctx, s.logger).Debug("overdue payments computed",
		zap.Time("as_of", now),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func (s *service) ContractSummary(ctx context.Context, contractID string) (ContractSummary, error) {
	if strings.TrimSpace(contractID) == "" {
		return ContractSummary{}, domainerr.Invalid("contractId", "is required")
	}
	c, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return ContractSummary{}, err
	}
	rows, err := s.payments.List(ctx, payments.Filter{ContractID: c.ID})
	if err != nil {
		return ContractSummary{}, err
	}

	out := ContractSummary{
		ContractID:  c.ID,
		Currency:    c.Currency,
		Expected:    decimal.Zero,
		Received:    decimal.Zero,
		Outstanding: decimal.Zero,
		LateFees:    decimal.Zero,
		ByStatus:    map[payments.PaymentStatus]int{},
	}
	for _, p := range rows {
		out.Obligations++
		out.ByStatus[p.Status]++
		out.Expected = out.Expected.Add(p.Amount)
		out.Received = out.Received.Add(p.AmountPaid)
		out.Outstanding = out.Outstanding.Add(p.RemainingAmount)
		if p.LateFee != nil {
			out.LateFees = out.LateFees.Add(*p.LateFee)
		}
		if p.Status != payments.StatusPaid && out.NextDue == nil {
			due := p.DueDate
			out.NextDue = &due
		}
	}
	return out, nil
}

func (s *service) load(ctx context.Context, w Window, f Filter) (money.Currency, []payments.RentPayment, error) {
	fields := domainerr.FieldErrors{}
	if w.From.IsZero() {
		fields.Add("from", "is required")
	}
	if w.To.IsZero() {
		fields.Add("to", "is required")
	} else if !w.To.After(w.From) {
		fields.Add("to", "must be after from")
	}
	currency, err := s.currency(f)
	if err != nil {
		fields.Add("currency", err.Error())
	}
	if err := fields.OrNil(); err != nil {
		return money.Currency{}, nil, err
	}

	rows, err := s.payments.List(ctx, s.paymentFilter(f, currency, &w.From, &w.To))
	if err != nil {
		return money.Currency{}, nil, err
	}
	return currency, rows, nil
}

func (s *service) currency(f Filter) (money.Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(f.Currency))
	if code == "" {
		code = s.defaultCurrency
	}
	return money.Lookup(code)
}

func (s *service) paymentFilter(f Filter, currency money.Currency, from, to *time.Time, statuses ...payments.PaymentStatus) payments.Filter {
	return payments.Filter{
		ContractID: f.ContractID,
		TenantID:   f.TenantID,
		PropertyID: f.PropertyID,
		Currency:   currency.Code,
		Statuses:   statuses,
		DueFrom:    from,
		DueTo:      to,
	}
}
