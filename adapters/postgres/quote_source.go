package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quotebias/domain/quotes"
	"quotebias/internal"
	"quotebias/internal/errors"
	"quotebias/internal/preprocess"
	"quotebias/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// quoteSource loads survey quotes from a PostgreSQL table with one column
// per survey field, laid out like the CSV exports.
type quoteSource struct {
	db         *sqlx.DB
	table      string
	covariates []string
	opts       preprocess.Options
	logger     *internal.Logger
}

// NewQuoteSource creates a dataset source reading table (optionally schema-qualified)
func NewQuoteSource(db *sqlx.DB, table string, covariates []string, opts preprocess.Options, logger *internal.Logger) ports.DatasetSource {
	if len(covariates) == 0 {
		covariates = quotes.DefaultCovariates()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &quoteSource{
		db:         db,
		table:      table,
		covariates: covariates,
		opts:       opts,
		logger:     logger.With("QuoteSource"),
	}
}

// Describe names the source table
func (s *quoteSource) Describe() string {
	return "postgres:" + s.table
}

// Load reads every row of the table and preprocesses it like a file export
func (s *quoteSource) Load(ctx context.Context) (*quotes.Dataset, error) {
	start := time.Now()
	rows, err := s.db.QueryxContext(ctx, selectAllQuery(s.table))
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to query %s", s.table), err)
	}
	defer rows.Close()

	headers, err := rows.Columns()
	if err != nil {
		return nil, errors.DatabaseError("failed to read columns", err)
	}

	var records []map[string]string
	for rows.Next() {
		raw := make(map[string]interface{}, len(headers))
		if err := rows.MapScan(raw); err != nil {
			return nil, errors.DatabaseError("failed to scan quote row", err)
		}
		rec := make(map[string]string, len(raw))
		for k, v := range raw {
			rec[k] = cellString(v)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("failed to iterate quote rows", err)
	}
	s.logger.Info("%d rows read from %s in %s", len(records), s.table, time.Since(start).Round(time.Millisecond))

	ds, err := preprocess.FromRows(s.table, headers, records, s.covariates)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to type %s", s.table)
	}
	return preprocess.NewPreprocessor(s.opts, s.logger).Apply(ds)
}

// selectAllQuery quotes every part of a schema-qualified table name.
func selectAllQuery(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return "SELECT * FROM " + strings.Join(parts, ".")
}

// splitTable separates an optional schema from the table name
func splitTable(table string) (schema, name string) {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return schema, name
	}
	return "", table
}

// cellString converts a scanned column value to the string form of a CSV cell
func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Open connects to PostgreSQL
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	return db, nil
}
