package excel

import (
	"quotebias/domain/quotes"
	"quotebias/internal/preprocess"
)

// SourceConfig holds configuration for a file data source
type SourceConfig struct {
	FilePath   string             `json:"file_path"`
	Sheet      string             `json:"sheet"`     // XLSX sheet, first sheet when empty
	Separator  rune               `json:"separator"` // CSV field separator
	Covariates []string           `json:"covariates"`
	Preprocess preprocess.Options `json:"preprocess"`
}

// DefaultSourceConfig returns the settings of the survey exports
func DefaultSourceConfig(path string) SourceConfig {
	return SourceConfig{
		FilePath:   path,
		Separator:  ';',
		Covariates: quotes.DefaultCovariates(),
		Preprocess: preprocess.DefaultOptions(),
	}
}
