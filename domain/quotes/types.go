package quotes

import (
	"math"
	"sort"
)

// Covariate column names of the survey schema.
const (
	ColGender        = "gender"
	ColBirthplace    = "birthplace"
	ColAge           = "age"
	ColCity          = "city"
	ColMaritalStatus = "marital_status"
	ColEducation     = "education"
	ColProfession    = "profession"
	ColCar           = "car"
	ColKmDriven      = "km_driven"
	ColClass         = "class"
)

// DemographicFeatures describe the respondent.
var DemographicFeatures = []string{ColGender, ColBirthplace, ColAge, ColCity, ColMaritalStatus, ColEducation, ColProfession}

// DriverFeatures describe the insured vehicle and driving history.
var DriverFeatures = []string{ColCar, ColKmDriven, ColClass}

// DefaultCovariates returns the full matching key in canonical order.
func DefaultCovariates() []string {
	out := make([]string, 0, len(DemographicFeatures)+len(DriverFeatures))
	out = append(out, DemographicFeatures...)
	return append(out, DriverFeatures...)
}

// CovariatesExcept returns the default covariates without attribute: the
// matching key of a comparison that names no covariates.
func CovariatesExcept(attribute string) []string {
	out := make([]string, 0, len(DemographicFeatures)+len(DriverFeatures))
	for _, c := range DefaultCovariates() {
		if c != attribute {
			out = append(out, c)
		}
	}
	return out
}

// Record is one respondent query: categorical covariates plus numeric outcomes.
// A missing outcome is absent from Outcomes.
type Record struct {
	Values   map[string]string  `json:"values"`
	Outcomes map[string]float64 `json:"outcomes"`
}

// NewRecord creates an empty record
func NewRecord() Record {
	return Record{Values: map[string]string{}, Outcomes: map[string]float64{}}
}

// Value returns the categorical value of column, "" when absent.
func (r Record) Value(column string) string {
	return r.Values[column]
}

// Outcome returns the numeric outcome and whether it is present.
func (r Record) Outcome(column string) (float64, bool) {
	v, ok := r.Outcomes[column]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	out := Record{
		Values:   make(map[string]string, len(r.Values)),
		Outcomes: make(map[string]float64, len(r.Outcomes)),
	}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	for k, v := range r.Outcomes {
		out.Outcomes[k] = v
	}
	return out
}

// Dataset is an ordered collection of records with a uniform schema.
type Dataset struct {
	Name        string   `json:"name"`
	Categorical []string `json:"categorical"`
	Numeric     []string `json:"numeric"`
	Records     []Record `json:"records"`
}

// NewDataset creates an empty dataset with the given schema
func NewDataset(name string, categorical, numeric []string) *Dataset {
	return &Dataset{
		Name:        name,
		Categorical: append([]string(nil), categorical...),
		Numeric:     append([]string(nil), numeric...),
	}
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Append adds records to the dataset
func (d *Dataset) Append(records ...Record) {
	d.Records = append(d.Records, records...)
}

// HasCategorical reports whether column is a categorical column of the schema.
func (d *Dataset) HasCategorical(column string) bool {
	return contains(d.Categorical, column)
}

// HasNumeric reports whether column is a numeric column of the schema.
func (d *Dataset) HasNumeric(column string) bool {
	return contains(d.Numeric, column)
}

// AddNumericColumn registers a numeric column if it is not already present.
func (d *Dataset) AddNumericColumn(column string) {
	if !d.HasNumeric(column) {
		d.Numeric = append(d.Numeric, column)
	}
}

// Distinct returns the sorted distinct non-empty values of a categorical column.
func (d *Dataset) Distinct(column string) []string {
	seen := make(map[string]bool)
	for _, r := range d.Records {
		if v := r.Value(column); v != "" {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Observed reports whether value occurs in the categorical column.
func (d *Dataset) Observed(column, value string) bool {
	for _, r := range d.Records {
		if r.Value(column) == value {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the dataset
func (d *Dataset) Clone() *Dataset {
	out := NewDataset(d.Name, d.Categorical, d.Numeric)
	out.Records = make([]Record, len(d.Records))
	for i, r := range d.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
