package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"farm_monitor/logger"
	"farm_monitor/metric"

	"gorm.io/gorm"
)

// Result describes one imported file
type Result struct {
	Summary
	File     string
	Rows     int
	Skipped  int
	Duration time.Duration
}

// String renders the line printed after an import
func (r Result) String() string {
	return fmt.Sprintf("Upserted %d sensors; inserted %d readings (%d duplicates skipped, %d rows skipped).",
		r.SensorsUpserted, r.ReadingsInserted, r.Duplicates(), r.Skipped)
}

// Importer reads CSV exports and loads them into storage, one transaction per file
type Importer struct {
	loader  *Loader
	opts    Options
	metrics *metric.Metrics
}

// NewImporter creates an importer. metrics may be nil.
func NewImporter(db *gorm.DB, opts Options, batchSize int, metrics *metric.Metrics) *Importer {
	return &Importer{
		loader:  NewLoader(db, batchSize),
		opts:    opts,
		metrics: metrics,
	}
}

// ImportFile imports the CSV file at path
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		im.metrics.ObserveImport(metric.ImportResult{Failed: true})
		return Result{File: path}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result, err := im.Import(ctx, file)
	result.File = path
	return result, err
}

// Import parses the whole input, then writes it in a single transaction
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	start := time.Now()
	batch := NewBatch(im.opts)

	err := ReadCSV(r, batch)
	result := Result{
		Rows:    batch.Rows(),
		Skipped: batch.Skipped(),
	}
	if err == nil {
		if batch.Skipped() > 0 {
			logger.Debugf("skipped %d of %d rows\n", batch.Skipped(), batch.Rows())
		}
		result.Summary, err = im.loader.Load(ctx, batch.Sensors(), batch.Readings())
	}
	result.Duration = time.Since(start)

	im.metrics.ObserveImport(metric.ImportResult{
		Rows:             result.Rows,
		Skipped:          result.Skipped,
		SensorsUpserted:  result.SensorsUpserted,
		ReadingsInserted: result.ReadingsInserted,
		Duplicates:       result.Duplicates(),
		Duration:         result.Duration,
		Failed:           err != nil,
	})

	return result, err
}
