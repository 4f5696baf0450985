package ports

import (
	"context"
	"io"

	"quotebias/domain/core"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
)

// DatasetSource loads a survey dataset from a file, a database table or a generator
type DatasetSource interface {
	Load(ctx context.Context) (*quotes.Dataset, error)
	// Describe names the source for logs and error messages
	Describe() string
}

// DiagnosticSink receives the matched pairs of each comparison, sorted by
// diff. Implementations must be safe for concurrent use by a plan run.
type DiagnosticSink interface {
	RecordPairs(ctx context.Context, comparison discrimination.Comparison, pairs []discrimination.MatchedPair) error
}

// TableWriter exports a comparison table
type TableWriter interface {
	WriteTable(w io.Writer, table *discrimination.ComparisonTable) error
}

// RunRepository persists comparison tables of plan runs
type RunRepository interface {
	SaveRun(ctx context.Context, table *discrimination.ComparisonTable) error
	GetRun(ctx context.Context, id core.RunID) (*discrimination.ComparisonTable, error)
	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]discrimination.RunSummary, error)
}
