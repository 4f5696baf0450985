package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"quotebias/domain/discrimination"
	"quotebias/internal"
	"quotebias/internal/report"
)

// PairDumpSink writes the matched pairs of each comparison to
// pairs_{attribute}_{test}vs{baseline}.csv in a directory.
type PairDumpSink struct {
	dir    string
	mu     sync.Mutex
	logger *internal.Logger
}

// NewPairDumpSink creates the directory if needed
func NewPairDumpSink(dir string, logger *internal.Logger) (*PairDumpSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory: %w", err)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &PairDumpSink{dir: dir, logger: logger.With("PairDump")}, nil
}

// PairDumpFile names the dump file of a comparison
func PairDumpFile(c discrimination.Comparison) string {
	return fmt.Sprintf("pairs_%s_%svs%s.csv", safeName(c.Attribute), safeName(c.TestValue), safeName(c.BaselineValue))
}

var unsafeChars = strings.NewReplacer("/", "-", `\`, "-", " ", "_", ":", "-")

func safeName(s string) string {
	return unsafeChars.Replace(s)
}

// RecordPairs writes pairs in the order given, ';' separated
func (s *PairDumpSink) RecordPairs(ctx context.Context, c discrimination.Comparison, pairs []discrimination.MatchedPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, PairDumpFile(c))
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	cw.Comma = ';'
	if err := cw.Write([]string{"baseline_index", "test_index", "baseline", "test", "diff"}); err != nil {
		return err
	}
	for _, p := range pairs {
		row := []string{
			fmt.Sprint(p.BaselineIndex), fmt.Sprint(p.TestIndex),
			report.FormatFloat(p.BaselineOutcome), report.FormatFloat(p.TestOutcome), report.FormatFloat(p.Diff),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	s.logger.Debug("%d pairs written to %s", len(pairs), path)
	return file.Close()
}
