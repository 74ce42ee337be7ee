package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DefaultSchema is the schema Bootstrap creates when none is configured.
const DefaultSchema = "rentals"

// ContractRecord represents a lease_contracts row. Snapshots are kept as raw JSON.
type ContractRecord struct {
	ContractID        string          `db:"contract_id"`
	ContractType      string          `db:"contract_type"`
	PropertyID        string          `db:"property_id"`
	Property          []byte          `db:"property"`
	TenantIDs         []string        `db:"tenant_ids"`
	Tenants           []byte          `db:"tenants"`
	StartDate         time.Time       `db:"start_date"`
	EndDate           time.Time       `db:"end_date"`
	DurationValue     int             `db:"duration_value"`
	DurationUnit      string          `db:"duration_unit"`
	Currency          string          `db:"currency"`
	RentAmount        decimal.Decimal `db:"rent_amount"`
	DepositAmount     decimal.Decimal `db:"deposit_amount"`
	PaymentDueDay     int             `db:"payment_due_day"`
	Clauses           string          `db:"clauses"`
	Status            string          `db:"status"`
	RenewedFrom       *string         `db:"renewed_from"`
	RenewedTo         *string         `db:"renewed_to"`
	TerminatedAt      *time.Time      `db:"terminated_at"`
	TerminationReason *string         `db:"termination_reason"`
	Version           int64           `db:"version"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
	CreatedBy         string          `db:"created_by"`
}

// ContractFilter narrows ContractStore.List.
type ContractFilter struct {
	Status     *string
	PropertyID *string
	TenantID   *string
	EndsBefore *time.Time
}

// ContractStore provides access to the lease_contracts table.
type ContractStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewContractStore creates a store; assumes Bootstrap already created the table.
func NewContractStore(pool *pgxpool.Pool, schema string) (*ContractStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if schema == "" {
		schema = DefaultSchema
	}
	return &ContractStore{pool: pool, table: pgx.Identifier{schema, "lease_contracts"}.Sanitize()}, nil
}

const contractColumns = `contract_id, contract_type, property_id, property, tenant_ids, tenants,
        start_date, end_date, duration_value, duration_unit, currency,
        rent_amount::text, deposit_amount::text, payment_due_day, clauses, status,
        renewed_from, renewed_to, terminated_at, termination_reason,
        version, created_at, updated_at, created_by`

// Create inserts a contract with version 1.
func (s *ContractStore) Create(ctx context.Context, rec ContractRecord) (ContractRecord, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (
            contract_id, contract_type, property_id, property, tenant_ids, tenants,
            start_date, end_date, duration_value, duration_unit, currency,
            rent_amount, deposit_amount, payment_due_day, clauses, status,
            renewed_from, renewed_to, terminated_at, termination_reason,
            version, created_at, updated_at, created_by
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::text::numeric,$13::text::numeric,
            $14,$15,$16,$17,$18,$19,$20,1,$21,$22,$23
        )
        RETURNING %s
    `, s.table, contractColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.ContractID, rec.ContractType, rec.PropertyID, rec.Property, rec.TenantIDs, rec.Tenants,
		rec.StartDate, rec.EndDate, rec.DurationValue, rec.DurationUnit, rec.Currency,
		rec.RentAmount.String(), rec.DepositAmount.String(), rec.PaymentDueDay, rec.Clauses, rec.Status,
		rec.RenewedFrom, rec.RenewedTo, rec.TerminatedAt, rec.TerminationReason,
		rec.CreatedAt, rec.UpdatedAt, rec.CreatedBy,
	)

	out, err := scanContractRecord(row)
	if err != nil {
		return ContractRecord{}, mapUnique(err)
	}
	return out, nil
}

// Get returns a contract by id.
func (s *ContractStore) Get(ctx context.Context, id string) (ContractRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE contract_id = $1`, contractColumns, s.table)
	return scanContractRecord(s.pool.QueryRow(ctx, query, id))
}

// Update writes every mutable column when the stored version equals rec.Version,
// bumping the version. A missing row yields ErrNotFound; a moved version ErrVersionMismatch.
func (s *ContractStore) Update(ctx context.Context, rec ContractRecord) (ContractRecord, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ContractRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(`
        UPDATE %s SET
            contract_type = $2, property = $3, tenant_ids = $4, tenants = $5,
            start_date = $6, end_date = $7, duration_value = $8, duration_unit = $9,
            rent_amount = $10::text::numeric, deposit_amount = $11::text::numeric,
            payment_due_day = $12, clauses = $13, status = $14,
            renewed_from = $15, renewed_to = $16, terminated_at = $17, termination_reason = $18,
            updated_at = $19, version = version + 1
        WHERE contract_id = $1 AND version = $20
        RETURNING %s
    `, s.table, contractColumns)

	row := tx.QueryRow(ctx, query,
		rec.ContractID, rec.ContractType, rec.Property, rec.TenantIDs, rec.Tenants,
		rec.StartDate, rec.EndDate, rec.DurationValue, rec.DurationUnit,
		rec.RentAmount.String(), rec.DepositAmount.String(),
		rec.PaymentDueDay, rec.Clauses, rec.Status,
		rec.RenewedFrom, rec.RenewedTo, rec.TerminatedAt, rec.TerminationReason,
		rec.UpdatedAt, rec.Version,
	)

	out, err := scanContractRecord(row)
	if errors.Is(err, ErrNotFound) {
		var exists bool
		existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE contract_id = $1)`, s.table)
		if qerr := tx.QueryRow(ctx, existsQuery, rec.ContractID).Scan(&exists); qerr != nil {
			return ContractRecord{}, qerr
		}
		if exists {
			return ContractRecord{}, ErrVersionMismatch
		}
		return ContractRecord{}, ErrNotFound
	}
	if err != nil {
		return ContractRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ContractRecord{}, err
	}
	return out, nil
}

// Delete removes a contract row.
func (s *ContractStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE contract_id = $1`, s.table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of contracts ordered by creation time, plus the total count.
func (s *ContractStore) List(ctx context.Context, filter ContractFilter, limit, offset int) ([]ContractRecord, int, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.PropertyID != nil {
		add("property_id = $%d", *filter.PropertyID)
	}
	if filter.TenantID != nil {
		add("$%d = ANY(tenant_ids)", *filter.TenantID)
	}
	if filter.EndsBefore != nil {
		add("end_date < $%d", *filter.EndsBefore)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, s.table, clause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY created_at, contract_id LIMIT $%d OFFSET $%d`,
		contractColumns, s.table, clause, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ContractRecord
	for rows.Next() {
		rec, err := scanContractRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func scanContractRecord(row pgx.Row) (ContractRecord, error) {
	var rec ContractRecord
	var rent, deposit string
	if err := row.Scan(&rec.ContractID, &rec.ContractType, &rec.PropertyID, &rec.Property, &rec.TenantIDs, &rec.Tenants,
		&rec.StartDate, &rec.EndDate, &rec.DurationValue, &rec.DurationUnit, &rec.Currency,
		&rent, &deposit, &rec.PaymentDueDay, &rec.Clauses, &rec.Status,
		&rec.RenewedFrom, &rec.RenewedTo, &rec.TerminatedAt, &rec.TerminationReason,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &rec.CreatedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContractRecord{}, ErrNotFound
		}
		return ContractRecord{}, err
	}
	var err error
	if rec.RentAmount, err = decimal.NewFromString(rent); err != nil {
		return ContractRecord{}, fmt.Errorf("parse rent amount: %w", err)
	}
	if rec.DepositAmount, err = decimal.NewFromString(deposit); err != nil {
		return ContractRecord{}, fmt.Errorf("parse deposit amount: %w", err)
	}
	return rec, nil
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
