package app

import (
	"context"
	"sync"

	"quotebias/domain/quotes"
	"quotebias/internal"
	"quotebias/ports"
)

// DatasetStore loads the survey and optional control datasets once and
// serves them to concurrent requests. Datasets are shared read-only.
type DatasetStore struct {
	survey  ports.DatasetSource
	control ports.DatasetSource
	logger  *internal.Logger

	mu        sync.Mutex
	loaded    bool
	surveyDS  *quotes.Dataset
	controlDS *quotes.Dataset
}

// NewDatasetStore creates a store; control may be nil
func NewDatasetStore(survey, control ports.DatasetSource, logger *internal.Logger) *DatasetStore {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DatasetStore{survey: survey, control: control, logger: logger.With("DatasetStore")}
}

// Datasets returns the survey and control datasets, loading them on first
// use. A failed load is retried on the next call.
func (s *DatasetStore) Datasets(ctx context.Context) (*quotes.Dataset, *quotes.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.surveyDS, s.controlDS, nil
	}

	survey, err := s.survey.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	var control *quotes.Dataset
	if s.control != nil {
		control, err = s.control.Load(ctx)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info("control dataset %s: %d records", s.control.Describe(), control.Len())
	}
	s.logger.Info("survey dataset %s: %d records", s.survey.Describe(), survey.Len())

	s.surveyDS, s.controlDS, s.loaded = survey, control, true
	return survey, control, nil
}

// Sources describes the configured sources
func (s *DatasetStore) Sources() (survey, control string) {
	survey = s.survey.Describe()
	if s.control != nil {
		control = s.control.Describe()
	}
	return survey, control
}
