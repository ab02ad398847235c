package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHeader is returned for an input without a header row
var ErrNoHeader = errors.New("csv has no header row")

// ReadCSV reads a header-keyed CSV export and feeds every data row to batch.
// Rows the CSV reader itself rejects are counted as skipped, not returned.
func ReadCSV(r io.Reader, batch *Batch) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrNoHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[i] = strings.TrimSpace(name)
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			batch.rows++
			batch.skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV: %w", err)
		}

		rec := make(Record, len(columns))
		for i, value := range row {
			if i < len(columns) {
				rec[columns[i]] = value
			}
		}
		batch.Add(rec)
	}
}
