package generator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"farm_monitor/ingest"
	"farm_monitor/models"
	"farm_monitor/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedExportsRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	opts := Options{
		Devices:  2,
		Rows:     10,
		Interval: time.Minute,
		Start:    time.Date(2025, 9, 17, 0, 0, 0, 0, time.UTC),
		Seed:     42,
	}

	paths, err := Generate(dir, opts)
	require.NoError(t, err)
	require.Len(t, paths, len(profiles))

	db := testutil.OpenDB(t, 1)
	im := ingest.NewImporter(db.Gorm(), ingest.Options{SensorType: "temperature"}, 7, nil)

	for _, path := range paths {
		res, err := im.ImportFile(context.Background(), path)
		require.NoError(t, err, path)
		assert.Equal(t, 21, res.Rows)
		assert.Equal(t, 1, res.Skipped, "gateway status line")
		assert.Equal(t, 2, res.SensorsUpserted)
		assert.Equal(t, 20, res.ReadingsInserted)
		assert.Equal(t, 3, res.Batches)
	}

	assert.EqualValues(t, 2*len(profiles), testutil.CountRows(t, db, &models.Sensor{}))
	assert.EqualValues(t, 20*len(profiles), testutil.CountRows(t, db, &models.Reading{}))

	var first models.Reading
	require.NoError(t, db.Gorm().
		Where("sensor_id = ?", ingest.HardwareID("GH-0001")).
		Order("ts ASC").First(&first).Error)
	assert.True(t, first.TS.Equal(opts.Start))
	require.NotNil(t, first.Sequence)
	assert.Equal(t, int64(1), *first.Sequence)
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	opts := Options{Devices: 1, Rows: 5, Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Seed: 7}

	a, err := Generate(t.TempDir(), opts)
	require.NoError(t, err)
	b, err := Generate(t.TempDir(), opts)
	require.NoError(t, err)

	batchA := ingest.NewBatch(ingest.Options{})
	batchB := ingest.NewBatch(ingest.Options{})
	require.NoError(t, readFile(a[0], batchA))
	require.NoError(t, readFile(b[0], batchB))
	assert.Equal(t, batchA.Readings(), batchB.Readings())
	assert.Len(t, batchA.Readings(), 5)
}

func TestGenerateRejectsEmptyShape(t *testing.T) {
	_, err := Generate(t.TempDir(), Options{Devices: 0, Rows: 10})
	assert.Error(t, err)
	_, err = Generate(t.TempDir(), Options{Devices: 1, Rows: 0})
	assert.Error(t, err)
}

func readFile(path string, batch *ingest.Batch) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ingest.ReadCSV(f, batch)
}
