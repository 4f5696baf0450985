package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"quotebias/domain/discrimination"
	"quotebias/internal/report"

	"github.com/xuri/excelize/v2"
)

// XLSXTableWriter exports comparison tables as a single-sheet workbook
type XLSXTableWriter struct {
	renderer *report.Renderer
	sheet    string
}

// NewXLSXTableWriter creates an XLSX writer; display tables use renderer
func NewXLSXTableWriter(renderer *report.Renderer) *XLSXTableWriter {
	return &XLSXTableWriter{renderer: renderer, sheet: "Sheet1"}
}

// WriteTable writes the table. Numeric tables keep full-precision numbers
// in number cells; display tables hold the rendered strings.
func (w *XLSXTableWriter) WriteTable(out io.Writer, table *discrimination.ComparisonTable) error {
	header, rows := tableCells(w.renderer, table)
	f, err := newSheetFile(w.sheet, header, rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(out)
}

// WriteSheetXLSX saves a raw table to path, e.g. a generated survey.
func WriteSheetXLSX(path string, data *SheetData) error {
	rows := make([][]interface{}, len(data.Rows))
	for i, r := range data.Rows {
		row := make([]interface{}, len(data.Headers))
		for j, h := range data.Headers {
			row[j] = r[h]
		}
		rows[i] = row
	}
	f, err := newSheetFile("Sheet1", data.Headers, rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func newSheetFile(sheet string, header []string, rows [][]interface{}) (*excelize.File, error) {
	f := excelize.NewFile()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
		f.SetActiveSheet(idx)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// tableCells returns typed cells: float64/int in numeric mode, strings otherwise.
func tableCells(renderer *report.Renderer, table *discrimination.ComparisonTable) ([]string, [][]interface{}) {
	if !table.NumericOutput {
		rows := make([][]interface{}, len(table.Rows))
		for i, d := range renderer.RenderTable(table) {
			cells := d.Cells()
			row := make([]interface{}, len(cells))
			for j, c := range cells {
				row[j] = c
			}
			rows[i] = row
		}
		return table.Columns(), rows
	}

	rows := make([][]interface{}, len(table.Rows))
	for i, s := range table.Rows {
		row := []interface{}{s.Attribute, s.Pairs, s.TieRate}
		for _, q := range s.Quantiles() {
			row = append(row, q)
		}
		rows[i] = append(row, s.Mean, s.PValue, s.N, s.M)
	}
	return report.NumericColumns(table), rows
}

// CSVTableWriter exports comparison tables as delimited text
type CSVTableWriter struct {
	renderer  *report.Renderer
	separator rune
}

// NewCSVTableWriter creates a CSV writer
func NewCSVTableWriter(renderer *report.Renderer, separator rune) *CSVTableWriter {
	if separator == 0 {
		separator = ';'
	}
	return &CSVTableWriter{renderer: renderer, separator: separator}
}

// WriteTable writes the header and one line per row
func (w *CSVTableWriter) WriteTable(out io.Writer, table *discrimination.ComparisonTable) error {
	cw := csv.NewWriter(out)
	cw.Comma = w.separator

	if table.NumericOutput {
		if err := cw.Write(report.NumericColumns(table)); err != nil {
			return err
		}
		for _, s := range table.Rows {
			if err := cw.Write(report.NumericCells(s)); err != nil {
				return err
			}
		}
	} else {
		if err := cw.Write(table.Columns()); err != nil {
			return err
		}
		for _, d := range w.renderer.RenderTable(table) {
			if err := cw.Write(d.Cells()); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSheetCSV saves a raw table to path with the given separator.
func WriteSheetCSV(path string, data *SheetData, separator rune) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	cw.Comma = separator
	if err := cw.Write(data.Headers); err != nil {
		return err
	}
	for _, r := range data.Rows {
		row := make([]string, len(data.Headers))
		for j, h := range data.Headers {
			row[j] = r[h]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return file.Close()
}

// ReadTableCSV parses a numeric CSV export back into a ComparisonTable. The
// quartile flag follows the header. Significance is recomputed from the
// p-value; the run id is new.
func ReadTableCSV(in io.Reader, separator rune) (*discrimination.ComparisonTable, error) {
	cr := csv.NewReader(in)
	cr.Comma = separator
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table has no header")
	}

	header := records[0]
	var quartiles bool
	switch len(header) {
	case 10:
	case 12:
		quartiles = true
	default:
		return nil, fmt.Errorf("unexpected numeric table header with %d columns", len(header))
	}
	if header[len(header)-2] != "n" || header[len(header)-1] != "M" {
		return nil, fmt.Errorf("not a numeric export: header ends with %q, %q", header[len(header)-2], header[len(header)-1])
	}

	table := discrimination.NewComparisonTable("", discrimination.Options{IncludeQuartiles: quartiles, NumericOutput: true})
	for line, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d: %d fields, want %d", line+2, len(rec), len(header))
		}
		s, err := parseNumericRow(rec, quartiles)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		table.Add(s)
	}
	return table, nil
}

func parseNumericRow(rec []string, quartiles bool) (discrimination.DistributionSummary, error) {
	s := discrimination.DistributionSummary{Attribute: rec[0], Pairs: rec[1], HasQuartiles: quartiles}

	nums := make([]float64, 0, len(rec)-3)
	for i, cell := range rec[2:] {
		if i == len(rec)-4 {
			continue // n
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return s, fmt.Errorf("field %d: %w", i+3, err)
		}
		nums = append(nums, v)
	}
	n, err := strconv.Atoi(rec[len(rec)-2])
	if err != nil {
		return s, fmt.Errorf("n: %w", err)
	}
	s.N = n

	s.TieRate = nums[0]
	if quartiles {
		s.Q05, s.Q25, s.Median, s.Q75, s.Q95 = nums[1], nums[2], nums[3], nums[4], nums[5]
		nums = nums[6:]
	} else {
		s.Q05, s.Median, s.Q95 = nums[1], nums[2], nums[3]
		nums = nums[4:]
	}
	s.Mean, s.PValue, s.M = nums[0], nums[1], nums[2]
	s.Significant = s.PValue < discrimination.Alpha
	return s, nil
}
