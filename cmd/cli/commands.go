package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"quotebias/adapters/excel"
	"quotebias/adapters/postgres"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
	"quotebias/internal/analysis/frequency"
	"quotebias/internal/config"
	"quotebias/internal/preprocess"
	"quotebias/internal/report"
	"quotebias/internal/testkit"

	"github.com/spf13/cobra"
)

func newCompareCmd(global *globalOptions) *cobra.Command {
	var outcome string
	var covariates []string
	var output outputOptions

	cmd := &cobra.Command{
		Use:   "compare [attribute] [test] [baseline]",
		Short: "Compare quotes of test against baseline profiles of one attribute",
		Long: `Match every test record to the baseline records with identical covariates
and summarize the paired price differences (test - baseline).

Example: quotebias compare birthplace MA MI --data survey.csv --outcome top1`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := global.load(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			survey, _, err := c.Store.Datasets(cmd.Context())
			if err != nil {
				return err
			}

			comparison := discrimination.Comparison{Attribute: args[0], TestValue: args[1], BaselineValue: args[2], Outcome: outcome}
			row, err := c.Service.Compare(cmd.Context(), survey, comparison, covariatesOrExcept(covariates, comparison.Attribute), output.options())
			if err != nil {
				return err
			}

			table := discrimination.NewComparisonTable(comparison.Attribute, output.options())
			table.Add(row)
			return output.write(c, table)
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", "", "Outcome column, e.g. top1 or top123 (default $OUTCOME)")
	cmd.Flags().StringSliceVar(&covariates, "covariates", nil, "Matching covariates (default: full schema minus the attribute)")
	output.bind(cmd)

	return cmd
}

func newBaselineCmd(global *globalOptions) *cobra.Command {
	var outcome string
	var covariates []string
	var repeats bool
	var output outputOptions

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Summarize control pairs: repeated queries of identical profiles",
		Long: `Summarize the price differences between repeated queries of the same
profile. With a control dataset (--control) the survey is joined to it on the
covariates; otherwise, or with --repeats, repeated profiles inside the survey
are paired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := global.load(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			survey, control, err := c.Store.Datasets(cmd.Context())
			if err != nil {
				return err
			}
			if repeats {
				control = nil
			}

			if len(covariates) == 0 {
				covariates = quotes.DefaultCovariates()
			}
			row, err := c.Service.Baseline(cmd.Context(), survey, control, covariates, outcome, output.options())
			if err != nil {
				return err
			}

			table := discrimination.NewComparisonTable(discrimination.ControlAttribute, output.options())
			table.Add(row)
			return output.write(c, table)
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", "", "Outcome column (default $OUTCOME)")
	cmd.Flags().StringSliceVar(&covariates, "covariates", nil, "Matching covariates (default: full schema)")
	cmd.Flags().BoolVar(&repeats, "repeats", false, "Pair repeated profiles inside the survey even when a control file is set")
	output.bind(cmd)

	return cmd
}

func newRunCmd(global *globalOptions) *cobra.Command {
	var expect string
	var save bool
	var output outputOptions

	cmd := &cobra.Command{
		Use:   "run [plan.yaml]",
		Short: "Run every comparison of an analysis plan",
		Long: `Run an analysis plan (YAML) and export the comparison table. The control
baseline row, when enabled, comes first.

With --expect, the numeric CSV export of an earlier run is compared with this
run and a mismatch fails the command. With --save, the run is stored in the
comparison_runs table (requires DATABASE_URL).

Example: quotebias run configs/discrimination_plan.yaml -f latex -o table.tex`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := global.load(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			plan, err := config.LoadPlan(args[0], &c.Config.Analysis)
			if err != nil {
				return err
			}
			plan.Options.IncludeQuartiles = plan.Options.IncludeQuartiles || output.quartiles
			plan.Options.NumericOutput = plan.Options.NumericOutput || output.numeric

			survey, control, err := c.Store.Datasets(cmd.Context())
			if err != nil {
				return err
			}
			table, err := c.Service.Run(cmd.Context(), survey, control, plan)
			if err != nil {
				return err
			}

			if expect != "" {
				if err := verify(table, expect, c.Config.Data.Separator); err != nil {
					return err
				}
			}
			if save {
				if c.Runs == nil {
					return fmt.Errorf("--save requires DATABASE_URL")
				}
				if err := c.Runs.SaveRun(cmd.Context(), table); err != nil {
					return err
				}
				c.Logger.Info("stored run %s", table.RunID)
			}
			return output.write(c, table)
		},
	}

	cmd.Flags().StringVar(&expect, "expect", "", "Numeric CSV export of a previous run to compare against")
	cmd.Flags().BoolVar(&save, "save", false, "Store the run in the database")
	output.bind(cmd)

	return cmd
}

// verify compares table with an earlier numeric CSV export by fingerprint
func verify(table *discrimination.ComparisonTable, path string, separator rune) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	expected, err := excel.ReadTableCSV(f, separator)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if got, want := table.Fingerprint(), expected.Fingerprint(); got != want {
		return fmt.Errorf("results differ from %s (fingerprint %s, expected %s)", path, got.Short(), want.Short())
	}
	return nil
}

func newFrequencyCmd(global *globalOptions) *cobra.Command {
	var agg string
	var features []string
	var out string

	cmd := &cobra.Command{
		Use:   "frequency",
		Short: "Percentage of respondents quoted by each provider, per feature value",
		Long: `Break down, for every feature value, the share of respondents that received
a quote from each provider.

--agg count counts non-missing quotes in each provider's first product column;
--agg sum sums the provider presence flags C1..C6.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			aggregation, err := frequency.ParseAggregation(agg)
			if err != nil {
				return err
			}

			c, err := global.load(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			survey, _, err := c.Store.Datasets(cmd.Context())
			if err != nil {
				return err
			}

			columns := preprocess.ServiceColumns()
			if aggregation == frequency.AggregateSum {
				columns = preprocess.Providers
			}
			if len(features) == 0 {
				features = quotes.DefaultCovariates()
			}
			tables, err := frequency.ComputeAll(survey, features, columns, aggregation)
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return report.WriteFrequencyMarkdown(w, tables)
		},
	}

	cmd.Flags().StringVar(&agg, "agg", string(frequency.AggregateCount), "Aggregation: count|sum")
	cmd.Flags().StringSliceVar(&features, "features", nil, "Features to break down (default: all covariates)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")

	return cmd
}

func newGenerateCmd() *cobra.Command {
	var profiles int
	var seed int64
	var noise float64
	var dir string
	var xlsx bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic survey with planted price effects",
		Long: `Generate a synthetic survey and its control repeats with a planted gender
surcharge (F +15) and birthplace surcharges (China +40, Morocco +60).

Example: quotebias generate --profiles 500 --seed 7 --dir data/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultQuoteConfig()
			cfg.Profiles = profiles
			cfg.Seed = seed
			cfg.NoiseSD = noise

			survey, err := testkit.NewQuoteGenerator(cfg).Generate()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			sheets := map[string][]map[string]string{"survey": survey.Rows, "control": survey.Control}
			for _, name := range []string{"survey", "control"} {
				data := &excel.SheetData{Headers: survey.Headers}
				for _, r := range sheets[name] {
					data.Rows = append(data.Rows, excel.RawRowData(r))
				}

				var path string
				if xlsx {
					path = filepath.Join(dir, name+".xlsx")
					err = excel.WriteSheetXLSX(path, data)
				} else {
					path = filepath.Join(dir, name+".csv")
					err = excel.WriteSheetCSV(path, data, ';')
				}
				if err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows)\n", path, len(data.Rows))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&profiles, "profiles", 200, "Number of base respondent profiles")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic generation")
	cmd.Flags().Float64Var(&noise, "noise", 3, "Standard deviation of repeat-query price noise")
	cmd.Flags().StringVar(&dir, "dir", ".", "Output directory")
	cmd.Flags().BoolVar(&xlsx, "xlsx", false, "Write XLSX workbooks instead of ';'-separated CSV")

	return cmd
}

// covariatesOrExcept returns covariates, or the full schema minus attribute
func newImportCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Bulk-load a survey CSV/XLSX file into the PostgreSQL quotes table",
		Long: `Copy the raw rows of FILE into $QUOTES_TABLE. The table is created by the
startup migrations; every header of FILE must be one of its columns. Later
commands read the survey from the database when no --data file is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := global.load(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			if c.DB == nil {
				return fmt.Errorf("import requires DATABASE_URL")
			}

			reader := excel.NewDataReader(args[0], c.Config.Data.Sheet, c.Config.Data.Separator, c.Logger)
			data, err := reader.ReadData()
			if err != nil {
				return err
			}
			n, err := postgres.ImportQuotes(cmd.Context(), c.DB, c.Config.Database.Table, data.Headers, data.RowMaps())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s\n", n, c.Config.Database.Table)
			return nil
		},
	}
}

func covariatesOrExcept(covariates []string, attribute string) []string {
	if len(covariates) > 0 {
		return covariates
	}
	return quotes.CovariatesExcept(attribute)
}
