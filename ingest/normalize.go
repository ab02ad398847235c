package ingest

import (
	"strings"

	"farm_monitor/models"

	"gorm.io/datatypes"
)

// Column headers of the transmitter log export
const (
	ColumnDate        = "Date"
	ColumnDeviceID    = "TX ID"
	ColumnSequence    = "Sequence #"
	ColumnBattery     = "V_battery"
	ColumnTemperature = "temp_c"
	ColumnHumidity    = "RH %"
	ColumnRSSI        = "rssi (signal strength)"
	ColumnCapacitance = "capacitance"
)

// SourceCSVImport marks sensors created by this importer
const SourceCSVImport = "csv_import"

// Record is one CSV row keyed by header name
type Record map[string]string

// Get returns the raw field, or "" when the column is missing
func (r Record) Get(column string) string {
	return r[column]
}

// Options holds the values stamped onto every sensor an import creates
type Options struct {
	DefaultLatitude  float64
	DefaultLongitude float64
	SensorType       string
}

func sourceMetadata() datatypes.JSON {
	return datatypes.JSON(`{"source":"` + SourceCSVImport + `"}`)
}

// Normalize turns one record into a sensor descriptor and a reading. ok is
// false when the row must be skipped: blank or JSON-looking date, blank
// device id, or an unparseable date. Numeric fields never cause a skip.
func Normalize(rec Record, opts Options) (sensor models.Sensor, reading models.Reading, ok bool) {
	date := strings.TrimSpace(rec.Get(ColumnDate))
	// some exports carry a JSON blob on the first line
	if date == "" || strings.HasPrefix(date, "{") {
		return sensor, reading, false
	}

	deviceID := strings.TrimSpace(rec.Get(ColumnDeviceID))
	if deviceID == "" {
		return sensor, reading, false
	}

	ts := ParseTimestamp(date)
	if ts == nil {
		return sensor, reading, false
	}

	hardwareID := HardwareID(deviceID)

	sensor = models.Sensor{
		HardwareID:   hardwareID,
		Name:         deviceID,
		SensorType:   opts.SensorType,
		GPSLatitude:  opts.DefaultLatitude,
		GPSLongitude: opts.DefaultLongitude,
		Metadata:     sourceMetadata(),
	}

	reading = models.Reading{
		SensorID:       hardwareID,
		TS:             *ts,
		Sequence:       ParseInt(rec.Get(ColumnSequence)),
		TemperatureC:   ParseFloat(rec.Get(ColumnTemperature)),
		HumidityPct:    ParseFloat(rec.Get(ColumnHumidity)),
		CapacitanceVal: ParseFloat(rec.Get(ColumnCapacitance)),
		BatteryV:       ParseFloat(rec.Get(ColumnBattery)),
		RSSIDbm:        ParseInt(rec.Get(ColumnRSSI)),
	}

	return sensor, reading, true
}

// Batch accumulates the normalized contents of one file
type Batch struct {
	opts     Options
	sensors  []models.Sensor
	seen     map[string]struct{}
	readings []models.Reading
	rows     int
	skipped  int
}

// NewBatch creates an empty batch
func NewBatch(opts Options) *Batch {
	return &Batch{
		opts: opts,
		seen: make(map[string]struct{}),
	}
}

// Add normalizes one record. It reports whether the row was kept.
func (b *Batch) Add(rec Record) bool {
	b.rows++

	sensor, reading, ok := Normalize(rec, b.opts)
	if !ok {
		b.skipped++
		return false
	}

	if _, exists := b.seen[sensor.Name]; !exists {
		b.seen[sensor.Name] = struct{}{}
		b.sensors = append(b.sensors, sensor)
	}
	b.readings = append(b.readings, reading)
	return true
}

// Sensors returns one descriptor per distinct device id, in first-seen order
func (b *Batch) Sensors() []models.Sensor { return b.sensors }

// Readings returns every kept reading in file order
func (b *Batch) Readings() []models.Reading { return b.readings }

// Rows returns the number of records offered to Add
func (b *Batch) Rows() int { return b.rows }

// Skipped returns the number of records dropped as malformed
func (b *Batch) Skipped() int { return b.skipped }
