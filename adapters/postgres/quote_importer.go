package postgres

import (
	"context"
	"fmt"

	"quotebias/internal/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ImportQuotes bulk-loads raw survey rows into table with COPY. Every
// header must be a column of the table; empty cells become NULL.
func ImportQuotes(ctx context.Context, db *sqlx.DB, table string, headers []string, rows []map[string]string) (int, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.DatabaseError("failed to begin import", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, copyInQuery(table, headers))
	if err != nil {
		return 0, errors.DatabaseError(fmt.Sprintf("failed to prepare COPY into %s", table), err)
	}

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, copyValues(headers, r)...); err != nil {
			stmt.Close()
			return 0, errors.DatabaseError(fmt.Sprintf("failed to copy row %d", i+1), err)
		}
	}
	// flush
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, errors.DatabaseError("failed to flush COPY", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, errors.DatabaseError("failed to close COPY", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.DatabaseError("failed to commit import", err)
	}
	return len(rows), nil
}

// copyInQuery builds the COPY statement for a possibly schema-qualified table
func copyInQuery(table string, headers []string) string {
	schema, name := splitTable(table)
	if schema == "" {
		return pq.CopyIn(name, headers...)
	}
	return pq.CopyInSchema(schema, name, headers...)
}

func copyValues(headers []string, row map[string]string) []interface{} {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		if v := row[h]; v != "" {
			values[i] = v
		}
	}
	return values
}
