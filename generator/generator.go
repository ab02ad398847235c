// Package generator writes synthetic transmitter exports for load and
// end-to-end testing of the importer.
package generator

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"farm_monitor/ingest"
	"farm_monitor/logger"
)

// Options controls the size and shape of the generated exports
type Options struct {
	// Devices per file
	Devices int
	// Rows per device
	Rows int
	// Interval between two readings of one device
	Interval time.Duration
	Start    time.Time
	Seed     int64
}

// DefaultOptions returns a week of 5 minute readings from 4 devices per file
func DefaultOptions() Options {
	return Options{
		Devices:  4,
		Rows:     7 * 288,
		Interval: 5 * time.Minute,
		Start:    time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -7),
		Seed:     time.Now().UnixNano(),
	}
}

type profile struct {
	filename string
	prefix   string
	baseTemp float64
	baseRH   float64
}

var profiles = []profile{
	{"field_north.csv", "FN", 16, 70},
	{"greenhouse.csv", "GH", 24, 80},
	{"orchard.csv", "OR", 18, 65},
}

var header = []string{
	ingest.ColumnDate,
	ingest.ColumnDeviceID,
	ingest.ColumnSequence,
	ingest.ColumnBattery,
	ingest.ColumnTemperature,
	ingest.ColumnHumidity,
	ingest.ColumnRSSI,
}

// Generate writes one export per profile into outputDir and returns the file paths
func Generate(outputDir string, opts Options) ([]string, error) {
	if opts.Devices < 1 || opts.Rows < 1 {
		return nil, fmt.Errorf("devices and rows must be positive (got %d, %d)", opts.Devices, opts.Rows)
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	paths := make([]string, len(profiles))
	errs := make([]error, len(profiles))

	var wg sync.WaitGroup
	for i, p := range profiles {
		wg.Add(1)
		go func(i int, p profile) {
			defer wg.Done()
			paths[i] = filepath.Join(outputDir, p.filename)
			rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
			errs[i] = writeExport(paths[i], p, opts, rng)
			if errs[i] == nil {
				logger.Printf("Generated %s with %d records\n", p.filename, opts.Devices*opts.Rows)
			}
		}(i, p)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", profiles[i].filename, err)
		}
	}
	return paths, nil
}

func writeExport(path string, p profile, opts Options, rng *rand.Rand) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return err
	}
	// gateways prepend a JSON status line to every export
	status := fmt.Sprintf(`{"gateway":"%s-gw","generated":"%s"}`, p.prefix, time.Now().UTC().Format(time.RFC3339))
	if err := w.Write([]string{status, "", "", "", "", "", ""}); err != nil {
		return err
	}

	for row := 0; row < opts.Rows; row++ {
		ts := opts.Start.Add(time.Duration(row) * opts.Interval)
		for d := 0; d < opts.Devices; d++ {
			if err := w.Write(reading(p, d, row, ts, opts.Rows, rng)); err != nil {
				return err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

func reading(p profile, device, row int, ts time.Time, rows int, rng *rand.Rand) []string {
	// daily temperature cycle, warmest mid-afternoon
	hourAngle := float64(ts.Hour()) * math.Pi / 12
	temp := p.baseTemp + 8*math.Sin(hourAngle-math.Pi/2) + rng.Float64()*2 - 1 + float64(device)*0.5
	rh := math.Max(20, math.Min(99, p.baseRH-(temp-p.baseTemp)*2+rng.Float64()*4-2))
	battery := 3.35 - 0.3*float64(row)/float64(rows) + rng.Float64()*0.02
	rssi := -60 - device*5 - rng.Intn(15)

	tempField := strconv.FormatFloat(temp, 'f', 2, 64)
	// sensors occasionally report a failed conversion
	if rng.Intn(200) == 0 {
		tempField = "nan"
	}

	return []string{
		ts.Format(time.RFC3339),
		fmt.Sprintf("%s-%04d", p.prefix, device+1),
		strconv.Itoa(row + 1),
		strconv.FormatFloat(battery, 'f', 2, 64),
		tempField,
		strconv.FormatFloat(rh, 'f', 1, 64),
		strconv.Itoa(rssi),
	}
}
