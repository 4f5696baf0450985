package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"quotebias/domain/core"
	"quotebias/domain/discrimination"
	"quotebias/internal/errors"
	"quotebias/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

type runRow struct {
	RunID            string    `db:"run_id"`
	Name             string    `db:"name"`
	Fingerprint      string    `db:"fingerprint"`
	IncludeQuartiles bool      `db:"include_quartiles"`
	NumericOutput    bool      `db:"numeric_output"`
	RowCount         int       `db:"row_count"`
	Rows             []byte    `db:"rows"`
	CreatedAt        time.Time `db:"created_at"`
}

// SaveRun stores a table; saving the same run again replaces its rows
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, table *discrimination.ComparisonTable) error {
	rowsJSON, err := json.Marshal(table.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO comparison_runs (
			run_id, name, fingerprint, include_quartiles, numeric_output, row_count, rows, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			name = EXCLUDED.name,
			fingerprint = EXCLUDED.fingerprint,
			row_count = EXCLUDED.row_count,
			rows = EXCLUDED.rows`,
		table.RunID.String(), table.Name, table.Fingerprint().String(),
		table.IncludeQuartiles, table.NumericOutput, len(table.Rows), rowsJSON,
		table.CreatedAt.Time())
	if err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to save run %s", table.RunID), err)
	}
	return nil
}

// GetRun loads a stored table
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*discrimination.ComparisonTable, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `
		SELECT run_id, name, fingerprint, include_quartiles, numeric_output, row_count, rows, created_at
		FROM comparison_runs
		WHERE run_id = $1`, id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run " + id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to load run %s", id), err)
	}
	return row.table()
}

// ListRuns returns up to limit runs, newest first
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]discrimination.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []discrimination.RunSummary
	err := r.db.SelectContext(ctx, &runs, `
		SELECT run_id, name, fingerprint, row_count, created_at
		FROM comparison_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return runs, nil
}

func (row runRow) table() (*discrimination.ComparisonTable, error) {
	table := &discrimination.ComparisonTable{
		RunID:            core.RunID(row.RunID),
		Name:             row.Name,
		IncludeQuartiles: row.IncludeQuartiles,
		NumericOutput:    row.NumericOutput,
		CreatedAt:        core.NewTimestamp(row.CreatedAt),
	}
	if err := json.Unmarshal(row.Rows, &table.Rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows of run %s: %w", row.RunID, err)
	}
	if got := table.Fingerprint().String(); got != row.Fingerprint {
		return nil, errors.InternalError(fmt.Sprintf("run %s: stored fingerprint %s does not match rows (%s)", row.RunID, row.Fingerprint, got))
	}
	return table, nil
}
