package database_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"farm_monitor/database"
	"farm_monitor/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"20250918_090000_add_site.sql": {Data: []byte(`-- Migration: add site
CREATE TABLE site (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL
);
INSERT INTO site (id, label) VALUES (1, 'north field');
`)},
		"20250917_000000_create_calibration.sql": {Data: []byte(`
CREATE TABLE calibration (sensor_id BIGINT, offset_c REAL);
`)},
		"README.md": {Data: []byte("not a migration")},
	}
}

func TestRunMigrationsAppliesPendingOnce(t *testing.T) {
	cfg := testutil.Config(t)
	cfg.Migration.AutoMigrate = true
	db, err := database.Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	runner := database.NewMigrationRunner(db.Gorm(), cfg).WithFS(migrationFS())

	pending, err := runner.GetPendingMigrations()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "20250917_000000", pending[0].Version)
	assert.Equal(t, "create calibration", pending[0].Name)

	require.NoError(t, runner.RunMigrations())
	// second run is a no-op
	require.NoError(t, runner.RunMigrations())

	status, err := runner.GetMigrationStatus()
	require.NoError(t, err)
	for _, m := range status {
		assert.True(t, m.Applied, m.Version)
	}

	var label string
	require.NoError(t, db.Gorm().Raw("SELECT label FROM site WHERE id = 1").Scan(&label).Error)
	assert.Equal(t, "north field", label)

	// auto_migrate created the model tables as well
	assert.True(t, db.Gorm().Migrator().HasTable("sensor"))
	assert.True(t, db.Gorm().Migrator().HasTable("reading"))
}

func TestRunMigrationsRollsBackFailedFile(t *testing.T) {
	cfg := testutil.Config(t)
	db, err := database.Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	runner := database.NewMigrationRunner(db.Gorm(), cfg).WithFS(fstest.MapFS{
		"20250917_000000_broken.sql": {Data: []byte("CREATE TABLE ok_table (id INTEGER);\nCREATE TABLE ;\n")},
	})

	require.Error(t, runner.RunMigrations())

	pending, err := runner.GetPendingMigrations()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.False(t, db.Gorm().Migrator().HasTable("ok_table"))
}

func TestMissingMigrationDirectoryIsEmpty(t *testing.T) {
	cfg := testutil.Config(t)
	db, err := database.Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	files, err := database.NewMigrationRunner(db.Gorm(), cfg).GetMigrationFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCreateMigration(t *testing.T) {
	cfg := testutil.Config(t)
	runner := database.NewMigrationRunner(nil, cfg)

	path, err := runner.CreateMigration("Add Sensor Notes")
	require.NoError(t, err)

	assert.Equal(t, cfg.Migration.Directory, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_add_sensor_notes.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- Migration: Add Sensor Notes")

	files, err := runner.GetMigrationFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "add sensor notes", files[0].Name)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := testutil.Config(t)
	cfg.Database.Driver = "oracle"
	_, err := database.Open(cfg)
	assert.Error(t, err)
}

func TestInfoReportsPool(t *testing.T) {
	db := testutil.OpenDB(t, 3)
	info := db.Info(testutil.Config(t))

	assert.Equal(t, "sqlite", info["driver"])
	assert.Equal(t, true, info["connected"])
	assert.Equal(t, 3, info["max_open_connections"])
}
