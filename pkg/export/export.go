// Package export renders tabular reports into downloadable documents.
package export

import "fmt"

// Table is an ordered tabular document.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Validate checks that every row matches the column count.
func (t Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Renderer turns a table into file bytes.
type Renderer interface {
	Render(Table) ([]byte, error)
	ContentType() string
	Extension() string
}
