package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"quotebias/adapters/excel"
	"quotebias/domain/discrimination"
	"quotebias/internal/config"
	"quotebias/internal/container"
	"quotebias/internal/report"
	"quotebias/ports"

	"github.com/spf13/cobra"
)

// globalOptions override the environment configuration
type globalOptions struct {
	dataFile    string
	controlFile string
	sheet       string
	separator   string
	dedup       string
	diagnostics string
	logLevel    string
}

func (o *globalOptions) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.dataFile, "data", "", "Survey CSV/XLSX file (default $DATA_FILE)")
	flags.StringVar(&o.controlFile, "control", "", "Control CSV/XLSX file with repeated queries (default $CONTROL_FILE)")
	flags.StringVar(&o.sheet, "sheet", "", "XLSX sheet name (default first sheet)")
	flags.StringVar(&o.separator, "sep", "", "CSV field separator (default $CSV_SEPARATOR or ';')")
	flags.StringVar(&o.dedup, "dedup", "", "Duplicate policy: keep_all|first (default $DEDUP_POLICY)")
	flags.StringVar(&o.diagnostics, "dump-pairs", "", "Directory for matched-pair CSV dumps")
	flags.StringVar(&o.logLevel, "log-level", "", "ERROR|WARN|INFO|DEBUG|TRACE")
}

// load builds the container from the environment plus flag overrides
func (o *globalOptions) load(ctx context.Context) (*container.Container, error) {
	if o.logLevel != "" {
		os.Setenv("LOG_LEVEL", o.logLevel)
	}
	if o.dedup != "" {
		os.Setenv("DEDUP_POLICY", o.dedup)
	}
	if o.separator != "" {
		os.Setenv("CSV_SEPARATOR", o.separator)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dataFile != "" {
		cfg.Data.File = o.dataFile
	}
	if o.controlFile != "" {
		cfg.Data.ControlFile = o.controlFile
	}
	if o.sheet != "" {
		cfg.Data.Sheet = o.sheet
	}
	if o.diagnostics != "" {
		cfg.Diagnostics.Dir = o.diagnostics
	}
	// Plans are passed per command
	cfg.Analysis.PlanFile = ""

	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// outputOptions select the export format of a comparison table
type outputOptions struct {
	format    string
	out       string
	quartiles bool
	numeric   bool
}

func (o *outputOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "markdown", "Output format: markdown|latex|html|csv|xlsx|json")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&o.quartiles, "quartiles", false, "Also report the .25 and .75 quantiles")
	cmd.Flags().BoolVar(&o.numeric, "numeric", false, "Emit raw numbers instead of rounded display values")
}

func (o *outputOptions) options() discrimination.Options {
	return discrimination.Options{IncludeQuartiles: o.quartiles, NumericOutput: o.numeric}
}

// write exports table in the selected format
func (o *outputOptions) write(c *container.Container, table *discrimination.ComparisonTable) error {
	var w io.Writer = os.Stdout
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	renderer := c.Renderer
	switch strings.ToLower(o.format) {
	case "markdown", "md":
		return renderer.WriteMarkdown(w, table)
	case "latex", "tex":
		return renderer.WriteLaTeX(w, table)
	case "html":
		page, err := renderer.HTML(table)
		if err != nil {
			return err
		}
		_, err = w.Write(page)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}

	writer, err := tableWriter(o.format, renderer, c.Config.Data.Separator)
	if err != nil {
		return err
	}
	return writer.WriteTable(w, table)
}

func tableWriter(format string, renderer *report.Renderer, separator rune) (ports.TableWriter, error) {
	switch strings.ToLower(format) {
	case "csv":
		return excel.NewCSVTableWriter(renderer, separator), nil
	case "xlsx":
		return excel.NewXLSXTableWriter(renderer), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
