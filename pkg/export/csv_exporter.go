package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVRenderer writes tables as RFC 4180 CSV.
type CSVRenderer struct{}

// NewCSVRenderer builds a CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

// Render produces CSV bytes with the column names as the first record.
func (r *CSVRenderer) Render(table Table) ([]byte, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *CSVRenderer) ContentType() string { return "text/csv" }

func (r *CSVRenderer) Extension() string { return "csv" }
