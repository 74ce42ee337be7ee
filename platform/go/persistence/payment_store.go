package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PaymentRecord represents a rent_payments row. Deposit holds the security
// deposit workflow as JSON and is nil on rows that carry no deposit.
type PaymentRecord struct {
	PaymentID       uuid.UUID        `db:"payment_id"`
	ContractID      string           `db:"contract_id"`
	TenantID        string           `db:"tenant_id"`
	PropertyID      string           `db:"property_id"`
	Currency        string           `db:"currency"`
	Amount          decimal.Decimal  `db:"amount"`
	AmountPaid      decimal.Decimal  `db:"amount_paid"`
	RemainingAmount decimal.Decimal  `db:"remaining_amount"`
	DueDate         time.Time        `db:"due_date"`
	PaidDate        *time.Time       `db:"paid_date"`
	PaymentMethod   *string          `db:"payment_method"`
	LateFee         *decimal.Decimal `db:"late_fee"`
	PenaltyApplied  bool             `db:"penalty_applied"`
	IsPartial       bool             `db:"is_partial"`
	Description     *string          `db:"description"`
	PreviousAmount  *decimal.Decimal `db:"previous_amount"`
	RevisionNote    *string          `db:"revision_note"`
	RevisedAt       *time.Time       `db:"revised_at"`
	LateFeeWaiver   *string          `db:"late_fee_waiver"`
	ReceiptKeys     []string         `db:"receipt_keys"`
	Status          string           `db:"status"`
	Deposit         []byte           `db:"deposit"`
	Version         int64            `db:"version"`
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
}

// PaymentFilter narrows PaymentStore.List. DueTo is exclusive.
type PaymentFilter struct {
	ContractID *string
	TenantID   *string
	PropertyID *string
	Currency   *string
	Statuses   []string
	DueFrom    *time.Time
	DueTo      *time.Time
}

// PaymentStore provides access to the rent_payments table.
type PaymentStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPaymentStore creates a store; assumes Bootstrap already created the table.
func NewPaymentStore(pool *pgxpool.Pool, schema string) (*PaymentStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if schema == "" {
		schema = DefaultSchema
	}
	return &PaymentStore{pool: pool, table: pgx.Identifier{schema, "rent_payments"}.Sanitize()}, nil
}

const paymentColumns = `payment_id, contract_id, tenant_id, property_id, currency,
        amount::text, amount_paid::text, remaining_amount::text, due_date, paid_date,
        payment_method, late_fee::text, penalty_applied, is_partial, description,
        previous_amount::text, revision_note, revised_at, late_fee_waiver, receipt_keys,
        status, deposit, version, created_at, updated_at`

// InsertIfAbsent stores rec unless the contract already has an obligation in
// the same calendar month. The boolean reports whether a row was written.
func (s *PaymentStore) InsertIfAbsent(ctx context.Context, rec PaymentRecord) (PaymentRecord, bool, error) {
	if rec.PaymentID == uuid.Nil {
		return PaymentRecord{}, false, errors.New("payment id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (
            payment_id, contract_id, tenant_id, property_id, currency,
            amount, amount_paid, remaining_amount, due_date, due_year, due_month,
            paid_date, payment_method, late_fee, penalty_applied, is_partial, description,
            previous_amount, revision_note, revised_at, late_fee_waiver, receipt_keys,
            status, deposit, version, created_at, updated_at
        ) VALUES (
            $1,$2,$3,$4,$5,$6::text::numeric,$7::text::numeric,$8::text::numeric,$9,$10,$11,
            $12,$13,$14::text::numeric,$15,$16,$17,$18::text::numeric,$19,$20,$21,COALESCE($22::text[], '{}'),
            $23,$24,1,$25,$26
        )
        ON CONFLICT ON CONSTRAINT rent_payments_contract_month_unique DO NOTHING
        RETURNING %s
    `, s.table, paymentColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.PaymentID, rec.ContractID, rec.TenantID, rec.PropertyID, rec.Currency,
		rec.Amount.String(), rec.AmountPaid.String(), rec.RemainingAmount.String(),
		rec.DueDate, rec.DueDate.Year(), int(rec.DueDate.Month()),
		rec.PaidDate, rec.PaymentMethod, decimalText(rec.LateFee), rec.PenaltyApplied, rec.IsPartial, rec.Description,
		decimalText(rec.PreviousAmount), rec.RevisionNote, rec.RevisedAt, rec.LateFeeWaiver, rec.ReceiptKeys,
		rec.Status, rec.Deposit, rec.CreatedAt, rec.UpdatedAt,
	)

	out, err := scanPaymentRecord(row)
	if errors.Is(err, ErrNotFound) {
		return PaymentRecord{}, false, nil
	}
	if err != nil {
		return PaymentRecord{}, false, mapUnique(err)
	}
	return out, true, nil
}

// Get returns a payment by id.
func (s *PaymentStore) Get(ctx context.Context, id uuid.UUID) (PaymentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE payment_id = $1`, paymentColumns, s.table)
	return scanPaymentRecord(s.pool.QueryRow(ctx, query, id))
}

// FindByContractMonth returns the contract's obligation for the given month.
func (s *PaymentStore) FindByContractMonth(ctx context.Context, contractID string, year int, month time.Month) (PaymentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE contract_id = $1 AND due_year = $2 AND due_month = $3`,
		paymentColumns, s.table)
	return scanPaymentRecord(s.pool.QueryRow(ctx, query, contractID, year, int(month)))
}

// Update writes the mutable columns of rec when the stored version equals rec.Version.
func (s *PaymentStore) Update(ctx context.Context, rec PaymentRecord) (PaymentRecord, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PaymentRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(`
        UPDATE %s SET
            amount = $2::text::numeric, amount_paid = $3::text::numeric, remaining_amount = $4::text::numeric,
            paid_date = $5, payment_method = $6, late_fee = $7::text::numeric,
            penalty_applied = $8, is_partial = $9, description = $10,
            previous_amount = $11::text::numeric, revision_note = $12, revised_at = $13,
            late_fee_waiver = $14, receipt_keys = COALESCE($15::text[], '{}'), status = $16, deposit = $17,
            updated_at = $18, version = version + 1
        WHERE payment_id = $1 AND version = $19
        RETURNING %s
    `, s.table, paymentColumns)

	row := tx.QueryRow(ctx, query,
		rec.PaymentID, rec.Amount.String(), rec.AmountPaid.String(), rec.RemainingAmount.String(),
		rec.PaidDate, rec.PaymentMethod, decimalText(rec.LateFee),
		rec.PenaltyApplied, rec.IsPartial, rec.Description,
		decimalText(rec.PreviousAmount), rec.RevisionNote, rec.RevisedAt,
		rec.LateFeeWaiver, rec.ReceiptKeys, rec.Status, rec.Deposit,
		rec.UpdatedAt, rec.Version,
	)

	out, err := scanPaymentRecord(row)
	if errors.Is(err, ErrNotFound) {
		var exists bool
		existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE payment_id = $1)`, s.table)
		if qerr := tx.QueryRow(ctx, existsQuery, rec.PaymentID).Scan(&exists); qerr != nil {
			return PaymentRecord{}, qerr
		}
		if exists {
			return PaymentRecord{}, ErrVersionMismatch
		}
		return PaymentRecord{}, ErrNotFound
	}
	if err != nil {
		return PaymentRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return PaymentRecord{}, err
	}
	return out, nil
}

// List returns every payment matching filter ordered by due date, then id.
func (s *PaymentStore) List(ctx context.Context, filter PaymentFilter) ([]PaymentRecord, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ContractID != nil {
		add("contract_id = $%d", *filter.ContractID)
	}
	if filter.TenantID != nil {
		add("tenant_id = $%d", *filter.TenantID)
	}
	if filter.PropertyID != nil {
		add("property_id = $%d", *filter.PropertyID)
	}
	if filter.Currency != nil {
		add("currency = $%d", *filter.Currency)
	}
	if len(filter.Statuses) > 0 {
		add("status = ANY($%d)", filter.Statuses)
	}
	if filter.DueFrom != nil {
		add("due_date >= $%d", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		add("due_date < $%d", *filter.DueTo)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY due_date, payment_id`, paymentColumns, s.table, clause)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaymentRecord
	for rows.Next() {
		rec, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanPaymentRecord(row pgx.Row) (PaymentRecord, error) {
	var rec PaymentRecord
	var amount, paid, remaining string
	var lateFee, previous *string
	if err := row.Scan(&rec.PaymentID, &rec.ContractID, &rec.TenantID, &rec.PropertyID, &rec.Currency,
		&amount, &paid, &remaining, &rec.DueDate, &rec.PaidDate,
		&rec.PaymentMethod, &lateFee, &rec.PenaltyApplied, &rec.IsPartial, &rec.Description,
		&previous, &rec.RevisionNote, &rec.RevisedAt, &rec.LateFeeWaiver, &rec.ReceiptKeys,
		&rec.Status, &rec.Deposit, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRecord{}, ErrNotFound
		}
		return PaymentRecord{}, err
	}

	var err error
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return PaymentRecord{}, fmt.Errorf("parse amount: %w", err)
	}
	if rec.AmountPaid, err = decimal.NewFromString(paid); err != nil {
		return PaymentRecord{}, fmt.Errorf("parse amount paid: %w", err)
	}
	if rec.RemainingAmount, err = decimal.NewFromString(remaining); err != nil {
		return PaymentRecord{}, fmt.Errorf("parse remaining amount: %w", err)
	}
	if rec.LateFee, err = parseOptionalDecimal(lateFee); err != nil {
		return PaymentRecord{}, fmt.Errorf("parse late fee: %w", err)
	}
	if rec.PreviousAmount, err = parseOptionalDecimal(previous); err != nil {
		return PaymentRecord{}, fmt.Errorf("parse previous amount: %w", err)
	}
	return rec, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
