package excel

import (
	"context"
	"path/filepath"
	"strings"

	"quotebias/domain/quotes"
	"quotebias/internal"
	"quotebias/internal/errors"
	"quotebias/internal/preprocess"
)

// FileSource loads a preprocessed quote dataset from a CSV or XLSX file
type FileSource struct {
	config SourceConfig
	logger *internal.Logger
}

// NewFileSource creates a file-backed dataset source
func NewFileSource(config SourceConfig, logger *internal.Logger) *FileSource {
	if len(config.Covariates) == 0 {
		config.Covariates = quotes.DefaultCovariates()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &FileSource{config: config, logger: logger}
}

// Describe names the source file
func (s *FileSource) Describe() string {
	return s.config.FilePath
}

// Load reads the file, types its columns and applies the preprocessing steps
func (s *FileSource) Load(ctx context.Context) (*quotes.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := NewDataReader(s.config.FilePath, s.config.Sheet, s.config.Separator, s.logger).ReadData()
	if err != nil {
		return nil, errors.DataSourceError(s.config.FilePath, err)
	}

	name := strings.TrimSuffix(filepath.Base(s.config.FilePath), filepath.Ext(s.config.FilePath))
	ds, err := preprocess.FromRows(name, data.Headers, data.RowMaps(), s.config.Covariates)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to type %s", s.config.FilePath)
	}

	ds, err = preprocess.NewPreprocessor(s.config.Preprocess, s.logger).Apply(ds)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to preprocess %s", s.config.FilePath)
	}
	return ds, nil
}
