package ingest

import (
	"strings"
	"testing"
	"time"

	"farm_monitor/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOptions = Options{
	DefaultLatitude:  44.84,
	DefaultLongitude: -122.772778,
	SensorType:       "temperature",
}

func fullRecord() Record {
	return Record{
		ColumnDate:        "2025-09-17T00:53:13Z",
		ColumnDeviceID:    " TX-0001 ",
		ColumnSequence:    "42",
		ColumnBattery:     "3.31",
		ColumnTemperature: "18.25",
		ColumnHumidity:    "61.0",
		ColumnRSSI:        "-71",
	}
}

func TestNormalizeFullRecord(t *testing.T) {
	sensor, reading, ok := Normalize(fullRecord(), testOptions)
	require.True(t, ok)

	assert.Equal(t, HardwareID("TX-0001"), sensor.HardwareID)
	assert.Equal(t, "TX-0001", sensor.Name)
	assert.Equal(t, "temperature", sensor.SensorType)
	assert.Equal(t, 44.84, sensor.GPSLatitude)
	assert.Equal(t, -122.772778, sensor.GPSLongitude)
	assert.JSONEq(t, `{"source":"csv_import"}`, string(sensor.Metadata))

	assert.Equal(t, sensor.HardwareID, reading.SensorID)
	assert.Equal(t, time.Date(2025, 9, 17, 0, 53, 13, 0, time.UTC), reading.TS)
	require.NotNil(t, reading.Sequence)
	assert.Equal(t, int64(42), *reading.Sequence)
	assert.Equal(t, 3.31, *reading.BatteryV)
	assert.Equal(t, 18.25, *reading.TemperatureC)
	assert.Equal(t, 61.0, *reading.HumidityPct)
	assert.Equal(t, int64(-71), *reading.RSSIDbm)
	assert.Nil(t, reading.CapacitanceVal)
}

func TestNormalizeSkips(t *testing.T) {
	tests := map[string]func(Record){
		"empty date":       func(r Record) { r[ColumnDate] = "" },
		"blank date":       func(r Record) { r[ColumnDate] = "   " },
		"json date":        func(r Record) { r[ColumnDate] = `{"fw":"1.4"}` },
		"json after space": func(r Record) { r[ColumnDate] = `  {2025-09-17T00:53:13Z` },
		"missing date":     func(r Record) { delete(r, ColumnDate) },
		"empty device":     func(r Record) { r[ColumnDeviceID] = "" },
		"blank device":     func(r Record) { r[ColumnDeviceID] = " \t" },
		"missing device":   func(r Record) { delete(r, ColumnDeviceID) },
		"bad date":         func(r Record) { r[ColumnDate] = "17.09.2025 00:53" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			rec := fullRecord()
			mutate(rec)
			_, _, ok := Normalize(rec, testOptions)
			assert.False(t, ok)
		})
	}
}

func TestNormalizeToleratesBrokenNumbers(t *testing.T) {
	rec := Record{
		ColumnDate:        "2025-09-17T00:53:13Z",
		ColumnDeviceID:    "TX-0002",
		ColumnSequence:    "n/a",
		ColumnBattery:     "",
		ColumnTemperature: "NaN",
		ColumnHumidity:    "61%",
		ColumnCapacitance: "2210",
	}

	_, reading, ok := Normalize(rec, testOptions)
	require.True(t, ok)
	assert.Nil(t, reading.Sequence)
	assert.Nil(t, reading.BatteryV)
	assert.Nil(t, reading.TemperatureC)
	assert.Nil(t, reading.HumidityPct)
	assert.Nil(t, reading.RSSIDbm)
	require.NotNil(t, reading.CapacitanceVal)
	assert.Equal(t, 2210.0, *reading.CapacitanceVal)
}

func TestBatchKeepsOneSensorPerDevice(t *testing.T) {
	b := NewBatch(testOptions)

	first := fullRecord()
	second := fullRecord()
	second[ColumnDate] = "2025-09-17T00:58:13Z"
	other := fullRecord()
	other[ColumnDeviceID] = "TX-0002"
	broken := fullRecord()
	broken[ColumnDeviceID] = ""

	assert.True(t, b.Add(first))
	assert.True(t, b.Add(other))
	assert.True(t, b.Add(second))
	assert.False(t, b.Add(broken))

	require.Len(t, b.Sensors(), 2)
	assert.Equal(t, "TX-0001", b.Sensors()[0].Name)
	assert.Equal(t, "TX-0002", b.Sensors()[1].Name)
	assert.Len(t, b.Readings(), 3)
	assert.Equal(t, 4, b.Rows())
	assert.Equal(t, 1, b.Skipped())
}

func TestReadCSVSample(t *testing.T) {
	b := NewBatch(testOptions)
	require.NoError(t, ReadCSV(strings.NewReader(testutil.SampleCSV), b))

	assert.Equal(t, 8, b.Rows())
	assert.Equal(t, 4, b.Skipped())
	require.Len(t, b.Sensors(), 2)
	require.Len(t, b.Readings(), 4)

	seq := b.Readings()[2].Sequence
	require.NotNil(t, seq)
	assert.Equal(t, int64(2), *seq)
	assert.Nil(t, b.Readings()[2].TemperatureC)
	assert.Nil(t, b.Readings()[3].HumidityPct)
	assert.Nil(t, b.Readings()[3].BatteryV)
}

func TestReadCSVHeaderHandling(t *testing.T) {
	b := NewBatch(testOptions)
	assert.ErrorIs(t, ReadCSV(strings.NewReader(""), b), ErrNoHeader)

	// byte order mark and padded header names
	b = NewBatch(testOptions)
	input := "\ufeffDate , TX ID,temp_c\n2025-09-17T00:53:13Z,TX-9,20.5,extra\n"
	require.NoError(t, ReadCSV(strings.NewReader(input), b))
	require.Len(t, b.Readings(), 1)
	assert.Equal(t, 20.5, *b.Readings()[0].TemperatureC)
	assert.Equal(t, "TX-9", b.Sensors()[0].Name)
}
