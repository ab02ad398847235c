package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"farm_monitor/config"
	"farm_monitor/database"
	"farm_monitor/generator"
	"farm_monitor/ingest"
	"farm_monitor/logger"
	"farm_monitor/metric"
	"farm_monitor/models"
	"farm_monitor/query"
	"farm_monitor/scanner"
	"farm_monitor/server"

	"github.com/spf13/pflag"
)

func main() {
	if len(os.Args) < 2 {
		showHelp()
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "help", "-h", "--help":
		showHelp()
		return
	case "generate":
		generateCommand(args)
		return
	case "migrate:create":
		// only writes a template, so no storage settings are needed
		if len(args) < 1 {
			fmt.Println("Error: migration name required")
			fmt.Println("Usage: farm_monitor migrate:create <migration_name>")
			return
		}
		cfg, err := config.Read(os.Getenv(config.EnvConfigPath))
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		createMigrationCommand(cfg, args[0])
		return
	}

	cfg := loadConfig()
	if err := logger.Init(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() {
		if err := logger.Close(); err != nil {
			log.Fatalf("Failed to close logging: %v", err)
		}
	}()
	logger.LogCommand(os.Args[0], os.Args)

	switch command {
	case "connect":
		connectCommand(cfg)
	case "migrate":
		migrateCommand(cfg)
	case "migrate:status":
		migrationStatusCommand(cfg)
	case "db:info":
		dbInfoCommand(cfg)
	case "ingest":
		ingestCommand(cfg, args)
	case "scan":
		scanCommand(cfg, args)
	case "serve":
		serveCommand(cfg, args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showHelp()
	}
}

func showHelp() {
	fmt.Println("Farm Monitor - sensor ingest and read API")
	fmt.Println("")
	fmt.Println("Usage: farm_monitor <command> [arguments] [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ingest <file.csv>     Import one transmitter CSV export")
	fmt.Println("  scan <directory>      Import every CSV export in a directory (non-recursive)")
	fmt.Println("  serve                 Serve the read API")
	fmt.Println("  connect               Test database connection")
	fmt.Println("  migrate               Run pending migrations")
	fmt.Println("  migrate:create <name> Create a new migration file")
	fmt.Println("  migrate:status        Show migration status")
	fmt.Println("  db:info               Show database information")
	fmt.Println("  generate <directory>  Write synthetic CSV exports")
	fmt.Println("  help                  Show this help message")
	fmt.Println("")
	fmt.Println("Ingest flags (ingest, scan):")
	fmt.Println("  --lat F --lon F --sensor-type S --batch-size N [--workers N]")
	fmt.Println("Serve flags:")
	fmt.Println("  --addr host:port")
	fmt.Println("Generate flags:")
	fmt.Println("  --devices N --rows N")
	fmt.Println("")
	fmt.Println("Configuration:")
	fmt.Println("  DATABASE_URL (required) is the storage connection string")
	fmt.Println("  DATABASE_DRIVER and LOG_LEVEL override config.yaml")
	fmt.Println("  FARM_MONITOR_CONFIG selects another config file")
	fmt.Println("")
	fmt.Println("CSV File Format:")
	fmt.Printf("  Expected columns: %s\n", strings.Join([]string{
		ingest.ColumnDate, ingest.ColumnDeviceID, ingest.ColumnSequence, ingest.ColumnBattery,
		ingest.ColumnTemperature, ingest.ColumnHumidity, ingest.ColumnRSSI,
	}, ","))
	fmt.Println("  Timestamp format: ISO8601 (e.g., 2025-09-17T00:53:13Z)")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func openDatabase(cfg *config.Config) *database.DB {
	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v\n", err)
	}
	return db
}

// parseIngestFlags parses args and re-validates the settings the flags may have changed
func parseIngestFlags(fs *pflag.FlagSet, cfg *config.Config, args []string) {
	fs.Parse(args)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid flags: %v\n", err)
	}
}

// ingestFlags binds the per-row defaults shared by ingest and scan
func ingestFlags(name string, cfg *config.Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	fs.Float64Var(&cfg.Ingest.DefaultLatitude, "lat", cfg.Ingest.DefaultLatitude, "latitude assigned to new sensors")
	fs.Float64Var(&cfg.Ingest.DefaultLongitude, "lon", cfg.Ingest.DefaultLongitude, "longitude assigned to new sensors")
	fs.StringVar(&cfg.Ingest.SensorType, "sensor-type", cfg.Ingest.SensorType, "sensor type assigned to new sensors")
	fs.IntVar(&cfg.Ingest.BatchSize, "batch-size", cfg.Ingest.BatchSize, "readings per insert statement")
	return fs
}

func newImporter(cfg *config.Config, db *database.DB, m *metric.Metrics) *ingest.Importer {
	opts := ingest.Options{
		DefaultLatitude:  cfg.Ingest.DefaultLatitude,
		DefaultLongitude: cfg.Ingest.DefaultLongitude,
		SensorType:       cfg.Ingest.SensorType,
	}
	return ingest.NewImporter(db.Gorm(), opts, cfg.Ingest.BatchSize, m)
}

func ingestCommand(cfg *config.Config, args []string) {
	fs := ingestFlags("ingest", cfg)
	parseIngestFlags(fs, cfg, args)
	if fs.NArg() < 1 {
		fmt.Println("Error: CSV file path required")
		fmt.Println("Usage: farm_monitor ingest <file.csv> [--lat F] [--lon F] [--sensor-type S] [--batch-size N]")
		os.Exit(1)
	}
	path := fs.Arg(0)

	db := openDatabase(cfg)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := newImporter(cfg, db, nil).ImportFile(ctx, path)
	if err != nil {
		logger.LogResult("Import "+path, false, err.Error())
		db.Close()
		logger.Fatalf("Import failed: %v\n", err)
	}

	logger.Debugf("%s: %d rows in %v\n", path, result.Rows, result.Duration)
	fmt.Println(result)
}

func scanCommand(cfg *config.Config, args []string) {
	fs := ingestFlags("scan", cfg)
	fs.IntVar(&cfg.Ingest.Workers, "workers", cfg.Ingest.Workers, "parallel file workers (0 picks min(CPUs, 8))")
	parseIngestFlags(fs, cfg, args)
	if fs.NArg() < 1 {
		fmt.Println("Error: directory path required")
		fmt.Println("Usage: farm_monitor scan <directory_path> [--workers N]")
		os.Exit(1)
	}
	directoryPath := fs.Arg(0)

	db := openDatabase(cfg)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	csvScanner := scanner.NewCSVScanner(newImporter(cfg, db, nil))
	csvScanner.SetWorkerCount(cfg.Ingest.Workers)

	results, err := csvScanner.ScanDirectory(ctx, directoryPath)
	if err != nil {
		db.Close()
		logger.Fatalf("Scan failed: %v\n", err)
	}

	summary := scanner.Summarize(results)
	if summary.Failed > 0 {
		logger.LogResult("Directory scan", false, fmt.Sprintf("%d of %d files failed", summary.Failed, summary.Files))
		db.Close()
		logger.Close()
		os.Exit(1)
	}
	logger.LogResult("Directory scan", true, fmt.Sprintf("%d files", summary.Files))
}

func serveCommand(cfg *config.Config, args []string) {
	fs := pflag.NewFlagSet("serve", pflag.ExitOnError)
	fs.StringVar(&cfg.Server.ListenAddress, "addr", cfg.Server.ListenAddress, "listen address")
	fs.Parse(args)

	db := openDatabase(cfg)

	m := metric.New()
	if err := m.RegisterDBStats(db.SQL(), cfg.Database.Driver); err != nil {
		logger.Warnf("failed to register pool metrics: %v\n", err)
	}

	srv := server.New(query.NewService(db.Gorm()), db,
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		server.WithMetrics(m),
		server.WithAccessLog(logger.Writer()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := srv.Run(ctx, cfg.Server)

	// the pool is closed only after every in-flight request has finished
	if cerr := db.Close(); cerr != nil {
		logger.Errorf("failed to close database: %v\n", cerr)
	}
	if err != nil {
		logger.Fatalf("Server failed: %v\n", err)
	}
	logger.Println("✓ Server stopped")
}

func generateCommand(args []string) {
	opts := generator.DefaultOptions()
	fs := pflag.NewFlagSet("generate", pflag.ExitOnError)
	fs.IntVar(&opts.Devices, "devices", opts.Devices, "devices per file")
	fs.IntVar(&opts.Rows, "rows", opts.Rows, "readings per device")
	fs.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Println("Error: output directory required")
		fmt.Println("Usage: farm_monitor generate <output_directory> [--devices N] [--rows N]")
		os.Exit(1)
	}

	paths, err := generator.Generate(fs.Arg(0), opts)
	if err != nil {
		logger.Fatalf("Generate failed: %v\n", err)
	}
	logger.Printf("All mocked data generated (%d files).\n", len(paths))
}

func connectCommand(cfg *config.Config) {
	logger.Println("Testing database connection...")

	db := openDatabase(cfg)
	defer db.Close()

	logger.Printf("✓ Successfully connected to %s database\n", db.Driver())

	infoJSON, _ := json.MarshalIndent(db.Info(cfg), "", "  ")
	logger.Printf("Connection info: %s\n", infoJSON)
}

func migrateCommand(cfg *config.Config) {
	logger.Println("Running database migrations...")

	db := openDatabase(cfg)
	defer db.Close()

	runner := database.NewMigrationRunner(db.Gorm(), cfg)
	if err := runner.RunMigrations(); err != nil {
		db.Close()
		logger.Fatalf("Migration failed: %v\n", err)
	}
}

func createMigrationCommand(cfg *config.Config, name string) {
	logger.Printf("Creating migration: %s\n", name)

	runner := database.NewMigrationRunner(nil, cfg)

	filePath, err := runner.CreateMigration(name)
	if err != nil {
		logger.Fatalf("Failed to create migration: %v\n", err)
	}

	logger.Printf("✓ Migration created: %s\n", filePath)
}

func migrationStatusCommand(cfg *config.Config) {
	logger.Println("Checking migration status...")

	db := openDatabase(cfg)
	defer db.Close()

	runner := database.NewMigrationRunner(db.Gorm(), cfg)

	migrations, err := runner.GetMigrationStatus()
	if err != nil {
		db.Close()
		logger.Fatalf("Failed to get migration status: %v\n", err)
	}

	if len(migrations) == 0 {
		logger.Println("No migrations found")
		return
	}

	logger.Printf("%-20s %-40s %s\n", "Version", "Name", "Status")
	logger.LogDivider()

	for _, migration := range migrations {
		status := "Pending"
		if migration.Applied {
			status = "Applied"
		}
		logger.Printf("%-20s %-40s %s\n", migration.Version, migration.Name, status)
	}
}

func dbInfoCommand(cfg *config.Config) {
	fmt.Println("Database Information:")
	fmt.Println(strings.Repeat("=", 50))

	db := openDatabase(cfg)
	defer db.Close()

	info := db.Info(cfg)

	fmt.Printf("Database Type:     %v\n", info["driver"])
	fmt.Printf("Connection Status: %v\n", connectionStatusText(info["connected"]))
	if path, ok := info["path"]; ok {
		fmt.Printf("File Path:         %v\n", path)
	}

	if info["connected"] != true {
		fmt.Println("\nConnection failed - unable to retrieve detailed information")
		fmt.Println(strings.Repeat("=", 50))
		return
	}

	fmt.Println("\nConnection Pool:")
	fmt.Printf("  Max Connections: %v\n", info["max_open_connections"])
	fmt.Printf("  Open Connections:%v\n", info["open_connections"])
	fmt.Printf("  In Use:          %v\n", info["in_use"])
	fmt.Printf("  Idle:            %v\n", info["idle"])

	gdb := db.Gorm()
	var sensorCount, readingCount int64
	gdb.Model(&models.Sensor{}).Count(&sensorCount)
	gdb.Model(&models.Reading{}).Count(&readingCount)

	fmt.Println("\nData Information:")
	fmt.Printf("  Sensors:         %d\n", sensorCount)
	fmt.Printf("  Readings:        %d\n", readingCount)

	if readingCount > 0 {
		var earliest, latest models.Reading
		gdb.Order("ts ASC").Select("ts").First(&earliest)
		gdb.Order("ts DESC").Select("ts").First(&latest)
		fmt.Printf("  Date Range:      %s to %s\n",
			earliest.TS.UTC().Format(time.RFC3339),
			latest.TS.UTC().Format(time.RFC3339))
	}

	fmt.Println(strings.Repeat("=", 50))
}

func connectionStatusText(connected interface{}) string {
	if conn, ok := connected.(bool); ok && conn {
		return "✓ Connected"
	}
	return "✗ Disconnected"
}
