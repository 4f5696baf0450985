package api

import (
	"context"
	"net/url"
	"path"

	"quotebias/domain/quotes"
	"quotebias/internal"
	"quotebias/internal/errors"
	"quotebias/internal/preprocess"
)

// Source loads a preprocessed quote dataset from a REST endpoint
type Source struct {
	config SourceConfig
	logger *internal.Logger
}

// NewSource creates an HTTP-backed dataset source
func NewSource(config SourceConfig, logger *internal.Logger) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if len(config.Covariates) == 0 {
		config.Covariates = quotes.DefaultCovariates()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Source{config: config, logger: logger.With("API_SOURCE")}, nil
}

// Describe names the endpoint without its query string
func (s *Source) Describe() string {
	u, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return s.config.BaseURL
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// Load fetches every page, types the columns and applies the preprocessing steps
func (s *Source) Load(ctx context.Context) (*quotes.Dataset, error) {
	page, err := NewReader(s.config).Fetch(ctx)
	if err != nil {
		return nil, errors.DataSourceError(s.Describe(), err)
	}
	s.logger.Info("fetched %d records (%d columns) from %s", len(page.Rows), len(page.Headers), s.Describe())

	ds, err := preprocess.FromRows(s.name(), page.Headers, page.Rows, s.config.Covariates)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to type %s", s.Describe())
	}

	ds, err = preprocess.NewPreprocessor(s.config.Preprocess, s.logger).Apply(ds)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to preprocess %s", s.Describe())
	}
	return ds, nil
}

func (s *Source) name() string {
	u, err := url.Parse(s.config.BaseURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "api"
	}
	return path.Base(u.Path)
}
