package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"farm_monitor/metric"
	"farm_monitor/models"
	"farm_monitor/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportFileRecordsMetrics(t *testing.T) {
	db := testutil.OpenDB(t, 1)
	m := metric.New()
	im := NewImporter(db.Gorm(), testOptions, 3, m)

	path := filepath.Join(t.TempDir(), "data_log_sample.csv")
	require.NoError(t, os.WriteFile(path, []byte(testutil.SampleCSV), 0644))

	res, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, res.File)
	assert.Equal(t, 2, res.Batches)

	_, err = im.ImportFile(context.Background(), path)
	require.NoError(t, err)

	assert.EqualValues(t, 4, testutil.CountRows(t, db, &models.Reading{}))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.FilesImported.WithLabelValues("success")))
	assert.Equal(t, 4.0, promtest.ToFloat64(m.ReadingsWritten.WithLabelValues("inserted")))
	assert.Equal(t, 4.0, promtest.ToFloat64(m.ReadingsWritten.WithLabelValues("duplicate")))
	assert.Equal(t, 8.0, promtest.ToFloat64(m.RowsProcessed.WithLabelValues("skipped")))
}

func TestImportFileMissing(t *testing.T) {
	db := testutil.OpenDB(t, 1)
	m := metric.New()
	im := NewImporter(db.Gorm(), testOptions, DefaultBatchSize, m)

	_, err := im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.FilesImported.WithLabelValues("failed")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.RowsProcessed.WithLabelValues("skipped")))
}

func TestImportEmptyFileFails(t *testing.T) {
	db := testutil.OpenDB(t, 1)
	m := metric.New()
	im := NewImporter(db.Gorm(), testOptions, DefaultBatchSize, m)

	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := im.ImportFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoHeader)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.FilesImported.WithLabelValues("failed")))
}
