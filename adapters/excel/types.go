package excel

// RawRowData represents a row of raw spreadsheet data as header/cell pairs
type RawRowData map[string]string

// SheetData represents a complete raw table read from a CSV or XLSX file
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// RowMaps returns the rows as plain maps
func (d *SheetData) RowMaps() []map[string]string {
	out := make([]map[string]string, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r
	}
	return out
}
