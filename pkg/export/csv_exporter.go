package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is the tabular content shared by every export format.
type Table struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     [][]string
}

// Renderer turns a Table into file bytes.
type Renderer interface {
	Format() string
	ContentType() string
	Render(Table) ([]byte, error)
}

// CSVExporter renders tables into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Format() string      { return "csv" }
func (e *CSVExporter) ContentType() string { return "text/csv" }

// Render produces CSV bytes; rows shorter than the header are padded.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if len(table.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(normalizeRow(row, len(table.Headers))); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeRow(row []string, width int) []string {
	record := make([]string, width)
	copy(record, row)
	return record
}
