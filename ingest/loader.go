package ingest

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"farm_monitor/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultBatchSize is the number of readings written per INSERT statement
const DefaultBatchSize = 1000

// Summary reports what one load wrote
type Summary struct {
	SensorsUpserted   int
	ReadingsAttempted int
	ReadingsInserted  int
	Batches           int
}

// Duplicates is the number of readings that already existed and were ignored
func (s Summary) Duplicates() int {
	return s.ReadingsAttempted - s.ReadingsInserted
}

// Loader persists normalized sensors and readings
type Loader struct {
	db        *gorm.DB
	batchSize int
}

// NewLoader creates a loader. batchSize is clamped to at least 1.
func NewLoader(db *gorm.DB, batchSize int) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Loader{
		db:        db,
		batchSize: batchSize,
	}
}

// BatchSize returns the effective reading batch size
func (l *Loader) BatchSize() int {
	return l.batchSize
}

var (
	upsertSensor = clause.OnConflict{
		Columns: []clause.Column{{Name: "hardware_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "sensor_type", "gps_latitude", "gps_longitude", "metadata",
		}),
	}
	ignoreDuplicateReading = clause.OnConflict{
		Columns:   []clause.Column{{Name: "sensor_id"}, {Name: "ts"}},
		DoNothing: true,
	}
)

// Load upserts sensors and inserts readings in one transaction. Sensors
// overwrite existing rows with the same hardware id; readings whose
// (sensor_id, ts) already exists are skipped. On error nothing is committed.
func (l *Loader) Load(ctx context.Context, sensors []models.Sensor, readings []models.Reading) (Summary, error) {
	var summary Summary
	sensors = lastPerHardwareID(sensors)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(sensors) > 0 {
			result := tx.Clauses(upsertSensor).CreateInBatches(&sensors, l.batchSize)
			if result.Error != nil {
				return fmt.Errorf("failed to upsert sensors: %w", result.Error)
			}
			summary.SensorsUpserted = len(sensors)
		}

		for start := 0; start < len(readings); start += l.batchSize {
			end := min(start+l.batchSize, len(readings))
			// copied so ids assigned by BeforeCreate do not leak into the caller's slice
			chunk := make([]models.Reading, end-start)
			copy(chunk, readings[start:end])

			result := tx.Omit(clause.Associations).Clauses(ignoreDuplicateReading).Create(&chunk)
			if result.Error != nil {
				return fmt.Errorf("failed to insert readings %d-%d: %w", start, end-1, result.Error)
			}
			summary.Batches++
			summary.ReadingsAttempted += len(chunk)
			summary.ReadingsInserted += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	return summary, nil
}

// lastPerHardwareID collapses device ids whose hashes collide so a single
// statement never touches the same row twice. The later descriptor wins.
// The result is ordered by hardware id so concurrent imports lock sensor
// rows in the same order.
func lastPerHardwareID(sensors []models.Sensor) []models.Sensor {
	index := make(map[int64]int, len(sensors))
	out := make([]models.Sensor, 0, len(sensors))
	for _, s := range sensors {
		if i, ok := index[s.HardwareID]; ok {
			out[i] = s
			continue
		}
		index[s.HardwareID] = len(out)
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b models.Sensor) int {
		return cmp.Compare(a.HardwareID, b.HardwareID)
	})
	return out
}
