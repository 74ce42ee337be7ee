package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/zenGate-Global/palmyra-rentals/database"
)

const migrationsTable = "schema_migrations"

// MigrationRecord is a row of the per-schema migration history.
type MigrationRecord struct {
	Version   string
	Name      string
	AppliedAt time.Time
}

// Bootstrap brings schema up to date with the embedded migrations.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	_, err := Migrate(ctx, pool, schema)
	return err
}

// Migrate creates schema if needed and applies every embedded migration not yet
// recorded in its schema_migrations table, returning the ones it applied.
// Concurrent callers serialise on an advisory lock keyed by the schema name,
// and all pending migrations commit in one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) ([]MigrationRecord, error) {
	if pool == nil {
		return nil, fmt.Errorf("migrate: pool is required")
	}
	if schema == "" {
		return nil, fmt.Errorf("migrate: schema is required")
	}

	migrations, err := sqlassets.RentalsMigrations()
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "migrate:"+schema); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return nil, fmt.Errorf("create schema %s: %w", schema, err)
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, schema); err != nil {
		return nil, fmt.Errorf("set search_path: %w", err)
	}
	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
        version    TEXT PRIMARY KEY,
        name       TEXT NOT NULL,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`); err != nil {
		return nil, fmt.Errorf("create %s: %w", migrationsTable, err)
	}

	applied, err := appliedVersions(ctx, tx)
	if err != nil {
		return nil, err
	}

	var out []MigrationRecord
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		for _, stmt := range splitStatements(m.SQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("apply %s_%s: %w", m.Version, m.Name, err)
			}
		}
		rec := MigrationRecord{Version: m.Version, Name: m.Name}
		if err := tx.QueryRow(ctx,
			`INSERT INTO `+migrationsTable+` (version, name) VALUES ($1, $2) RETURNING applied_at`,
			m.Version, m.Name).Scan(&rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("record %s_%s: %w", m.Version, m.Name, err)
		}
		out = append(out, rec)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit migrations: %w", err)
	}
	return out, nil
}

// MigrationHistory lists the migrations recorded in schema, oldest first.
// A schema that was never migrated has an empty history.
func MigrationHistory(ctx context.Context, pool *pgxpool.Pool, schema string) ([]MigrationRecord, error) {
	var exists bool
	if err := pool.QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`,
		pgx.Identifier{schema, migrationsTable}.Sanitize()).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	rows, err := pool.Query(ctx, fmt.Sprintf(`SELECT version, name, applied_at FROM %s ORDER BY version`,
		pgx.Identifier{schema, migrationsTable}.Sanitize()))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MigrationRecord, error) {
		var rec MigrationRecord
		err := row.Scan(&rec.Version, &rec.Name, &rec.AppliedAt)
		return rec, err
	})
}

func appliedVersions(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, `SELECT version FROM `+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", migrationsTable, err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", migrationsTable, err)
	}
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

// splitStatements breaks a DDL file on semicolons. Migrations hold no function
// bodies or quoted semicolons.
func splitStatements(sql string) []string {
	raw := strings.Split(sql, ";")
	out := make([]string, 0, len(raw))
	for _, stmt := range raw {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
