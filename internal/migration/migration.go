package migration

import (
	"context"
	"fmt"
	"strings"

	"quotebias/domain/quotes"
	"quotebias/internal/errors"
	"quotebias/internal/preprocess"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the quotes table and the run store
type MigrationRunner struct {
	version     string
	quotesTable string
}

// NewRunner creates a new migration runner for the given quotes table
// (optionally schema-qualified)
func NewRunner(quotesTable string) *MigrationRunner {
	if quotesTable == "" {
		quotesTable = "quotes"
	}
	return &MigrationRunner{
		version:     "1.0.0",
		quotesTable: quotesTable,
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every step is
// idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createQuotesTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create quotes table", err)
	}

	if err := r.createComparisonRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create comparison_runs table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

func (r *MigrationRunner) createQuotesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, QuotesTableDDL(r.quotesTable))
	return err
}

func (r *MigrationRunner) createComparisonRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS comparison_runs (
			run_id UUID PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			fingerprint CHAR(64) NOT NULL,
			include_quartiles BOOLEAN NOT NULL DEFAULT false,
			numeric_output BOOLEAN NOT NULL DEFAULT false,
			row_count INTEGER NOT NULL,
			rows JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_comparison_runs_created_at ON comparison_runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_comparison_runs_fingerprint ON comparison_runs(fingerprint)`,
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

// QuotesTableDDL returns the CREATE TABLE statement of the quotes table: one
// TEXT column per covariate and per provider quote column, laid out like the
// survey exports. Prices stay text so the loader parses them like CSV cells.
func QuotesTableDDL(table string) string {
	columns := append(quotes.DefaultCovariates(), preprocess.PriceColumns()...)
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("\t\t\t%s TEXT", pq.QuoteIdentifier(c))
	}
	return fmt.Sprintf("\n\t\tCREATE TABLE IF NOT EXISTS %s (\n%s\n\t\t)\n", quoteTable(table), strings.Join(defs, ",\n"))
}

func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
