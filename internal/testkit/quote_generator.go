package testkit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"quotebias/domain/quotes"
	"quotebias/internal/preprocess"
)

// SurveyValues are the answer options of each covariate in the synthetic survey
var SurveyValues = map[string][]string{
	quotes.ColGender:        {"M", "F"},
	quotes.ColBirthplace:    {"Milan", "Rome", "Naples", "China", "Morocco"},
	quotes.ColAge:           {"18", "25", "40", "60"},
	quotes.ColCity:          {"Milan", "Naples"},
	quotes.ColMaritalStatus: {"Married", "Single", "Widow"},
	quotes.ColEducation:     {"Master", "High school", "Without a qualification"},
	quotes.ColProfession:    {"Employee", "Looking for a job", "Retired"},
	quotes.ColCar:           {"Panda", "Golf", "500X"},
	quotes.ColKmDriven:      {"5000", "15000", "30000"},
	quotes.ColClass:         {"1", "4", "9", "18"},
}

// QuoteGeneratorConfig configures the synthetic quote generator
type QuoteGeneratorConfig struct {
	// Profiles is the number of base respondent profiles
	Profiles int `json:"profiles"`
	// Vary lists the attributes for which every alternative value of each
	// base profile is also queried, all other answers unchanged
	Vary []string `json:"vary"`
	// Surcharges adds a fixed amount to every quote of a value, e.g.
	// {"birthplace": {"Morocco": 60}}
	Surcharges map[string]map[string]float64 `json:"surcharges"`
	// NoiseSD is the standard deviation of the per-query price noise
	NoiseSD float64 `json:"noise_sd"`
	// QuoteRate is the probability that a provider product quotes a profile
	QuoteRate float64 `json:"quote_rate"`
	// Control emits a second survey repeating every base profile
	Control bool  `json:"control"`
	Seed    int64 `json:"seed"`
}

// DefaultQuoteConfig returns a survey with a gender and a birthplace effect
func DefaultQuoteConfig() QuoteGeneratorConfig {
	return QuoteGeneratorConfig{
		Profiles: 200,
		Vary:     []string{quotes.ColGender, quotes.ColBirthplace, quotes.ColAge},
		Surcharges: map[string]map[string]float64{
			quotes.ColGender:     {"F": 15},
			quotes.ColBirthplace: {"China": 40, "Morocco": 60},
		},
		NoiseSD:   3,
		QuoteRate: 0.6,
		Control:   true,
		Seed:      42,
	}
}

// Survey is a generated survey in raw CSV form
type Survey struct {
	Headers []string
	Rows    []map[string]string
	// Control repeats the base profiles, nil unless configured
	Control []map[string]string
}

// QuoteGenerator generates survey responses with planted price effects
type QuoteGenerator struct {
	config  QuoteGeneratorConfig
	rng     *rand.Rand
	factors map[string]float64
}

// NewQuoteGenerator creates a new quote generator
func NewQuoteGenerator(config QuoteGeneratorConfig) *QuoteGenerator {
	rng := rand.New(rand.NewSource(config.Seed))
	factors := make(map[string]float64)
	for _, c := range preprocess.PriceColumns() {
		factors[c] = 0.8 + 0.4*rng.Float64()
	}
	return &QuoteGenerator{config: config, rng: rng, factors: factors}
}

type profile struct {
	values map[string]string
	base   float64
	quoted map[string]bool
}

// Generate produces the survey
func (g *QuoteGenerator) Generate() (*Survey, error) {
	if g.config.Profiles <= 0 {
		return nil, fmt.Errorf("profiles must be positive, got %d", g.config.Profiles)
	}
	for _, attr := range g.config.Vary {
		if _, ok := SurveyValues[attr]; !ok {
			return nil, fmt.Errorf("unknown survey attribute %q", attr)
		}
	}

	survey := &Survey{Headers: append(quotes.DefaultCovariates(), preprocess.PriceColumns()...)}
	for i := 0; i < g.config.Profiles; i++ {
		p := g.newProfile()
		survey.Rows = append(survey.Rows, g.respond(p.values, p))

		for _, attr := range g.config.Vary {
			for _, alt := range SurveyValues[attr] {
				if alt == p.values[attr] {
					continue
				}
				variant := copyValues(p.values)
				variant[attr] = alt
				survey.Rows = append(survey.Rows, g.respond(variant, p))
			}
		}

		if g.config.Control {
			survey.Control = append(survey.Control, g.respond(p.values, p))
		}
	}
	return survey, nil
}

func (g *QuoteGenerator) newProfile() profile {
	p := profile{
		values: make(map[string]string, len(SurveyValues)),
		base:   300 + 400*g.rng.Float64(),
		quoted: make(map[string]bool),
	}
	for _, col := range quotes.DefaultCovariates() {
		options := SurveyValues[col]
		p.values[col] = options[g.rng.Intn(len(options))]
	}
	for _, c := range preprocess.PriceColumns() {
		p.quoted[c] = g.rng.Float64() < g.config.QuoteRate
	}
	return p
}

// respond prices one query. Availability and base price come from the base
// profile so that variants differ only by surcharge and noise.
func (g *QuoteGenerator) respond(values map[string]string, p profile) map[string]string {
	row := copyValues(values)
	surcharge := g.surcharge(values)
	for _, c := range preprocess.PriceColumns() {
		if !p.quoted[c] {
			row[c] = ""
			continue
		}
		price := p.base*g.factors[c] + surcharge
		if g.config.NoiseSD > 0 {
			price += g.rng.NormFloat64() * g.config.NoiseSD
		}
		row[c] = fmt.Sprintf("%.2f", math.Max(price, 1))
	}
	return row
}

func (g *QuoteGenerator) surcharge(values map[string]string) float64 {
	// sum in a fixed order so the result is reproducible
	attrs := make([]string, 0, len(g.config.Surcharges))
	for attr := range g.config.Surcharges {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	total := 0.0
	for _, attr := range attrs {
		total += g.config.Surcharges[attr][values[attr]]
	}
	return total
}

func copyValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// Datasets types and preprocesses the survey; control is nil when the
// survey has none.
func (s *Survey) Datasets(ctx context.Context) (survey, control *quotes.Dataset, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	pre := preprocess.NewPreprocessor(preprocess.DefaultOptions(), nil)

	survey, err = build(pre, "survey", s.Headers, s.Rows)
	if err != nil {
		return nil, nil, err
	}
	if s.Control != nil {
		control, err = build(pre, "control", s.Headers, s.Control)
		if err != nil {
			return nil, nil, err
		}
	}
	return survey, control, nil
}

func build(pre *preprocess.Preprocessor, name string, headers []string, rows []map[string]string) (*quotes.Dataset, error) {
	ds, err := preprocess.FromRows(name, headers, rows, quotes.DefaultCovariates())
	if err != nil {
		return nil, err
	}
	return pre.Apply(ds)
}

// GeneratedSource serves a generated survey, or its control repeats, as a
// dataset source. The same config always yields the same data.
type GeneratedSource struct {
	config  QuoteGeneratorConfig
	control bool
}

// NewGeneratedSource creates a source for the survey (control=false) or its
// control dataset (control=true)
func NewGeneratedSource(config QuoteGeneratorConfig, control bool) *GeneratedSource {
	if control {
		config.Control = true
	}
	return &GeneratedSource{config: config, control: control}
}

// Describe names the generator and its seed
func (s *GeneratedSource) Describe() string {
	kind := "survey"
	if s.control {
		kind = "control"
	}
	return fmt.Sprintf("generated:%s(seed=%d)", kind, s.config.Seed)
}

// Load generates and preprocesses the data
func (s *GeneratedSource) Load(ctx context.Context) (*quotes.Dataset, error) {
	survey, err := NewQuoteGenerator(s.config).Generate()
	if err != nil {
		return nil, err
	}
	ds, control, err := survey.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	if s.control {
		return control, nil
	}
	return ds, nil
}
