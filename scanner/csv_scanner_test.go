package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"farm_monitor/ingest"
	"farm_monitor/models"
	"farm_monitor/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secondExport = `Date,TX ID,Sequence #,V_battery,temp_c,RH %,rssi (signal strength)
2025-09-18T10:00:00Z,TX-0003,1,3.10,21.0,55.0,-60
2025-09-18T10:05:00Z,TX-0003,2,3.10,21.2,54.8,-61
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestScanDirectoryImportsEveryCSV(t *testing.T) {
	db := testutil.OpenDB(t, 1)
	im := ingest.NewImporter(db.Gorm(), ingest.Options{SensorType: "temperature"}, ingest.DefaultBatchSize, nil)

	dir := t.TempDir()
	writeFile(t, dir, "a_sample.csv", testutil.SampleCSV)
	writeFile(t, dir, "b_second.CSV", secondExport)
	writeFile(t, dir, "c_empty.csv", "")
	writeFile(t, dir, "notes.txt", "not an export")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0755))

	cs := NewCSVScanner(im)
	cs.SetWorkerCount(1)

	results, err := cs.ScanDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a_sample.csv", filepath.Base(results[0].FilePath))
	assert.NoError(t, results[0].Error)
	assert.Equal(t, 4, results[0].Result.ReadingsInserted)

	assert.NoError(t, results[1].Error)
	assert.Equal(t, 2, results[1].Result.ReadingsInserted)

	assert.ErrorIs(t, results[2].Error, ingest.ErrNoHeader)

	s := Summarize(results)
	assert.Equal(t, Summary{
		Files:            3,
		Failed:           1,
		Rows:             10,
		Skipped:          4,
		SensorsUpserted:  3,
		ReadingsInserted: 6,
	}, s)

	assert.EqualValues(t, 3, testutil.CountRows(t, db, &models.Sensor{}))
	assert.EqualValues(t, 6, testutil.CountRows(t, db, &models.Reading{}))

	// a second scan only finds duplicates
	results, err = cs.ScanDirectory(context.Background(), dir)
	require.NoError(t, err)
	s = Summarize(results)
	assert.Equal(t, 0, s.ReadingsInserted)
	assert.Equal(t, 6, s.Duplicates)
	assert.EqualValues(t, 6, testutil.CountRows(t, db, &models.Reading{}))
}

func TestScanDirectoryErrors(t *testing.T) {
	cs := NewCSVScanner(nil)

	_, err := cs.ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(file, []byte(secondExport), 0644))
	_, err = cs.ScanDirectory(context.Background(), file)
	assert.Error(t, err)

	results, err := cs.ScanDirectory(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWorkerCount(t *testing.T) {
	cs := NewCSVScanner(nil)
	assert.LessOrEqual(t, cs.WorkerCount(), maxWorkers)
	assert.Greater(t, cs.WorkerCount(), 0)

	cs.SetWorkerCount(3)
	assert.Equal(t, 3, cs.WorkerCount())
	cs.SetWorkerCount(0)
	assert.Equal(t, 3, cs.WorkerCount())
}
