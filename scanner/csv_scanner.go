// Package scanner imports every CSV export found in a directory.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"farm_monitor/ingest"
	"farm_monitor/logger"
)

// maxWorkers bounds the default pool so a scan does not exhaust the connection pool
const maxWorkers = 8

// FileImporter loads a single CSV file
type FileImporter interface {
	ImportFile(ctx context.Context, path string) (ingest.Result, error)
}

// CSVScanner handles scanning and importing CSV files
type CSVScanner struct {
	importer    FileImporter
	workerCount int
}

// FileJob represents a CSV file to be processed
type FileJob struct {
	FilePath string
	FileName string
}

// ProcessResult contains the result of importing one CSV file
type ProcessResult struct {
	FilePath string
	Result   ingest.Result
	Duration time.Duration
	Error    error
}

// Summary totals a directory scan
type Summary struct {
	Files            int
	Failed           int
	Rows             int
	Skipped          int
	SensorsUpserted  int
	ReadingsInserted int
	Duplicates       int
}

// NewCSVScanner creates a scanner that hands each file to importer
func NewCSVScanner(importer FileImporter) *CSVScanner {
	workerCount := runtime.NumCPU()
	if workerCount > maxWorkers {
		workerCount = maxWorkers
	}

	return &CSVScanner{
		importer:    importer,
		workerCount: workerCount,
	}
}

// SetWorkerCount sets the number of parallel workers. Non-positive values are ignored.
func (cs *CSVScanner) SetWorkerCount(count int) {
	if count > 0 {
		cs.workerCount = count
	}
}

// WorkerCount returns the number of parallel workers
func (cs *CSVScanner) WorkerCount() int {
	return cs.workerCount
}

// ScanDirectory imports the CSV files of directoryPath (non-recursive) in
// parallel. Each file is its own transaction; a failed file does not stop the others.
func (cs *CSVScanner) ScanDirectory(ctx context.Context, directoryPath string) ([]ProcessResult, error) {
	logger.Printf("Scanning directory: %s\n", directoryPath)

	info, err := os.Stat(directoryPath)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s", directoryPath)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", directoryPath)
	}

	csvFiles, err := cs.findCSVFiles(directoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find CSV files: %w", err)
	}

	if len(csvFiles) == 0 {
		logger.Println("No CSV files found in the directory")
		return nil, nil
	}

	logger.Printf("Found %d CSV file(s) to process\n", len(csvFiles))
	logger.Printf("Processing with %d parallel workers\n", cs.workerCount)

	results := cs.processFilesParallel(ctx, csvFiles)
	sort.Slice(results, func(i, j int) bool {
		return results[i].FilePath < results[j].FilePath
	})

	displaySummary(results)

	return results, nil
}

// findCSVFiles lists the .csv files directly inside directoryPath
func (cs *CSVScanner) findCSVFiles(directoryPath string) ([]FileJob, error) {
	var csvFiles []FileJob

	entries, err := os.ReadDir(directoryPath)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if strings.ToLower(filepath.Ext(entry.Name())) == ".csv" {
			csvFiles = append(csvFiles, FileJob{
				FilePath: filepath.Join(directoryPath, entry.Name()),
				FileName: entry.Name(),
			})
		}
	}

	return csvFiles, nil
}

// processFilesParallel fans files out to the worker goroutines
func (cs *CSVScanner) processFilesParallel(ctx context.Context, files []FileJob) []ProcessResult {
	jobs := make(chan FileJob, len(files))
	results := make(chan ProcessResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < cs.workerCount; i++ {
		wg.Add(1)
		go cs.worker(ctx, jobs, results, &wg)
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var allResults []ProcessResult
	for result := range results {
		allResults = append(allResults, result)
	}

	return allResults
}

func (cs *CSVScanner) worker(ctx context.Context, jobs <-chan FileJob, results chan<- ProcessResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		results <- cs.processCSVFile(ctx, job)
	}
}

func (cs *CSVScanner) processCSVFile(ctx context.Context, job FileJob) ProcessResult {
	startTime := time.Now()
	result := ProcessResult{FilePath: job.FilePath}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	logger.Printf("Processing file: %s\n", job.FileName)

	res, err := cs.importer.ImportFile(ctx, job.FilePath)
	result.Result = res
	result.Duration = time.Since(startTime)
	if err != nil {
		result.Error = err
		logger.Errorf("%s: %v\n", job.FileName, err)
		return result
	}

	logger.Printf("✓ Completed %s: %s (%v)\n", job.FileName, res, result.Duration)
	return result
}

// Summarize totals the results of a scan
func Summarize(results []ProcessResult) Summary {
	var s Summary
	for _, r := range results {
		s.Files++
		if r.Error != nil {
			s.Failed++
			continue
		}
		s.Rows += r.Result.Rows
		s.Skipped += r.Result.Skipped
		s.SensorsUpserted += r.Result.SensorsUpserted
		s.ReadingsInserted += r.Result.ReadingsInserted
		s.Duplicates += r.Result.Duplicates()
	}
	return s
}

func displaySummary(results []ProcessResult) {
	logger.Println("\n" + strings.Repeat("=", 60))
	logger.Println("PROCESSING SUMMARY")
	logger.Println(strings.Repeat("=", 60))

	totalDuration := time.Duration(0)
	for _, result := range results {
		name := filepath.Base(result.FilePath)
		if result.Error != nil {
			logger.Printf("❌ %s: FAILED - %v\n", name, result.Error)
		} else {
			logger.Printf("✅ %s: %d readings inserted, %d duplicates, %d rows skipped (%v)\n",
				name, result.Result.ReadingsInserted, result.Result.Duplicates(), result.Result.Skipped, result.Duration)
		}
		totalDuration += result.Duration
	}

	s := Summarize(results)
	logger.Println(strings.Repeat("-", 60))
	logger.Printf("Total files processed: %d\n", s.Files)
	logger.Printf("Successful: %d\n", s.Files-s.Failed)
	logger.Printf("Failed: %d\n", s.Failed)
	logger.Printf("Sensors upserted: %d\n", s.SensorsUpserted)
	logger.Printf("Readings inserted: %d\n", s.ReadingsInserted)
	logger.Printf("Duplicate readings: %d\n", s.Duplicates)
	logger.Printf("Rows skipped: %d\n", s.Skipped)
	logger.Printf("Total processing time: %v\n", totalDuration)
	logger.Println(strings.Repeat("=", 60))
}
