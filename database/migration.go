package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"farm_monitor/config"
	"farm_monitor/logger"
	"farm_monitor/models"

	"gorm.io/gorm"
)

// Migration is a row of the migrations table
type Migration struct {
	ID          uint   `gorm:"primaryKey"`
	Version     string `gorm:"unique;not null"`
	Name        string `gorm:"not null"`
	Applied     bool   `gorm:"default:false"`
	AppliedAt   *time.Time
	Description string
}

// MigrationFile represents a migration file
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	FilePath    string
	Applied     bool
}

// MigrationRunner handles database migrations
type MigrationRunner struct {
	db             *gorm.DB
	files          fs.FS
	migrationTable string
	migrationDir   string
	autoMigrate    bool
}

// NewMigrationRunner creates a runner reading .sql files from the configured directory.
// db may be nil when only creating migration files.
func NewMigrationRunner(db *gorm.DB, cfg *config.Config) *MigrationRunner {
	return &MigrationRunner{
		db:             db,
		files:          os.DirFS(cfg.Migration.Directory),
		migrationTable: cfg.Migration.MigrationTable,
		migrationDir:   cfg.Migration.Directory,
		autoMigrate:    cfg.Migration.AutoMigrate,
	}
}

// WithFS reads migration files from fsys instead of the migration directory
func (mr *MigrationRunner) WithFS(fsys fs.FS) *MigrationRunner {
	mr.files = fsys
	return mr
}

func (mr *MigrationRunner) table() *gorm.DB {
	return mr.db.Table(mr.migrationTable)
}

// InitializeMigrationTable creates the migration table if it doesn't exist
func (mr *MigrationRunner) InitializeMigrationTable() error {
	return mr.table().AutoMigrate(&Migration{})
}

// GetMigrationFiles returns all migration files, sorted by version
func (mr *MigrationRunner) GetMigrationFiles() ([]MigrationFile, error) {
	var migrationFiles []MigrationFile

	err := fs.WalkDir(mr.files, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == "." && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}

		// Parse migration filename (format: YYYYMMDD_HHMMSS_description.sql)
		filename := d.Name()
		parts := strings.SplitN(filename, "_", 3)
		if len(parts) < 3 {
			return fmt.Errorf("invalid migration filename format: %s (expected: YYYYMMDD_HHMMSS_description.sql)", filename)
		}

		description := strings.TrimSuffix(parts[2], ".sql")
		migrationFiles = append(migrationFiles, MigrationFile{
			Version:     parts[0] + "_" + parts[1],
			Name:        strings.ReplaceAll(description, "_", " "),
			Description: description,
			FilePath:    path,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	sort.Slice(migrationFiles, func(i, j int) bool {
		return migrationFiles[i].Version < migrationFiles[j].Version
	})

	return migrationFiles, nil
}

// appliedVersions returns the set of versions recorded as applied
func (mr *MigrationRunner) appliedVersions() (map[string]bool, error) {
	if err := mr.InitializeMigrationTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize migration table: %w", err)
	}

	var migrations []Migration
	if err := mr.table().Where("applied = ?", true).Order("version ASC").Find(&migrations).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(migrations))
	for _, migration := range migrations {
		applied[migration.Version] = true
	}
	return applied, nil
}

// GetMigrationStatus returns every migration file marked applied or pending
func (mr *MigrationRunner) GetMigrationStatus() ([]MigrationFile, error) {
	allMigrations, err := mr.GetMigrationFiles()
	if err != nil {
		return nil, err
	}

	applied, err := mr.appliedVersions()
	if err != nil {
		return nil, err
	}

	for i := range allMigrations {
		allMigrations[i].Applied = applied[allMigrations[i].Version]
	}
	return allMigrations, nil
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (mr *MigrationRunner) GetPendingMigrations() ([]MigrationFile, error) {
	all, err := mr.GetMigrationStatus()
	if err != nil {
		return nil, err
	}

	var pending []MigrationFile
	for _, migration := range all {
		if !migration.Applied {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// RunMigrations creates the model tables when auto_migrate is set, then
// executes all pending SQL migrations
func (mr *MigrationRunner) RunMigrations() error {
	if mr.autoMigrate {
		logger.Println("Auto-migrating sensor and reading tables...")
		if err := mr.db.AutoMigrate(models.GetAllModels()...); err != nil {
			return fmt.Errorf("auto-migrate failed: %w", err)
		}
	}

	pendingMigrations, err := mr.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pendingMigrations) == 0 {
		logger.Println("No pending migrations to run")
		return nil
	}

	logger.Printf("Running %d pending migration(s)...\n", len(pendingMigrations))

	for _, migration := range pendingMigrations {
		if err := mr.runSingleMigration(migration); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.Version, err)
		}
	}

	logger.Println("All migrations completed successfully")
	return nil
}

// runSingleMigration executes one migration file and records it, atomically
func (mr *MigrationRunner) runSingleMigration(migrationFile MigrationFile) error {
	logger.Printf("Running migration: %s - %s\n", migrationFile.Version, migrationFile.Name)

	content, err := fs.ReadFile(mr.files, migrationFile.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	return mr.db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range splitStatements(string(content)) {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to execute migration SQL: %w", err)
			}
		}

		now := time.Now()
		migration := Migration{
			Version:     migrationFile.Version,
			Name:        migrationFile.Name,
			Applied:     true,
			AppliedAt:   &now,
			Description: migrationFile.Description,
		}

		if err := tx.Table(mr.migrationTable).Create(&migration).Error; err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		return nil
	})
}

// splitStatements splits a migration on semicolons at line ends and drops
// comment-only chunks. Some drivers reject multiple statements per Exec.
func splitStatements(content string) []string {
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt == "" {
			return
		}
		for _, line := range strings.Split(stmt, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "--") {
				stmts = append(stmts, stmt)
				return
			}
		}
	}

	for _, line := range strings.Split(content, "\n") {
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			flush()
		}
	}
	flush()

	return stmts
}

// CreateMigration creates a new migration file with the given name
func (mr *MigrationRunner) CreateMigration(name string) (string, error) {
	if err := os.MkdirAll(mr.migrationDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := time.Now()
	version := now.Format("20060102_150405")

	cleanName := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	filename := fmt.Sprintf("%s_%s.sql", version, cleanName)
	filePath := filepath.Join(mr.migrationDir, filename)

	template := fmt.Sprintf(`-- Migration: %s
-- Created: %s
-- Description: %s

-- Add your migration SQL here
-- Example:
-- ALTER TABLE sensor ADD COLUMN installed_at timestamptz;
`, name, now.Format("2006-01-02 15:04:05"), name)

	if err := os.WriteFile(filePath, []byte(template), 0644); err != nil {
		return "", fmt.Errorf("failed to create migration file: %w", err)
	}

	return filePath, nil
}
