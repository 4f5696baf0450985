package config

import (
	"os"

	"quotebias/domain/discrimination"
	"quotebias/internal/errors"

	"gopkg.in/yaml.v3"
)

// LoadPlan reads an analysis plan from a YAML file and applies defaults: the
// outcome and dedup policy of cfg when the plan leaves them empty. A plan
// without covariates matches each comparison on every other schema column.
func LoadPlan(path string, cfg *AnalysisConfig) (*discrimination.Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "failed to read plan %s", path)
	}
	return ParsePlan(raw, cfg)
}

// ParsePlan decodes and validates a YAML plan
func ParsePlan(raw []byte, cfg *AnalysisConfig) (*discrimination.Plan, error) {
	var plan discrimination.Plan
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeConfigInvalid, err), "failed to parse plan")
	}
	ApplyPlanDefaults(&plan, cfg)

	if err := ValidatePlan(&plan); err != nil {
		return nil, errors.Wrap(err, "invalid plan")
	}
	return &plan, nil
}

// ApplyPlanDefaults fills the plan fields left empty
func ApplyPlanDefaults(plan *discrimination.Plan, cfg *AnalysisConfig) {
	if plan.Outcome == "" && cfg != nil {
		plan.Outcome = cfg.Outcome
	}
	if plan.Outcome == "" {
		plan.Outcome = "top1"
	}
	if plan.Dedup == "" && cfg != nil {
		plan.Dedup = cfg.Dedup
	}
}

// ValidatePlan checks a plan without a dataset
func ValidatePlan(plan *discrimination.Plan) error {
	if _, err := discrimination.ParseDedupPolicy(string(plan.Dedup)); err != nil {
		return err
	}
	if len(plan.Comparisons) == 0 && !plan.Control {
		return errors.ConfigInvalid("plan has neither comparisons nor a control baseline")
	}
	for _, c := range plan.Comparisons {
		if err := c.Validate(plan.Covariates); err != nil {
			return err
		}
	}
	return nil
}
