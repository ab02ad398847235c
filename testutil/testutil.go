// Package testutil provides sqlite-backed databases and sample exports for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"farm_monitor/config"
	"farm_monitor/database"
	"farm_monitor/models"

	"github.com/stretchr/testify/require"
)

// SampleCSV mimics a transmitter log export, including the stray JSON line
// and rows with missing or broken fields.
const SampleCSV = `Date,TX ID,Sequence #,V_battery,temp_c,RH %,rssi (signal strength)
"{""device"":""gateway-7"",""fw"":""1.4.2""}",,,,,,
2025-09-17T00:53:13Z,TX-0001,1,3.31,18.25,61.0,-71
2025-09-17T00:53:13Z,TX-0002,1,3.29,17.90,63.5,-80
2025-09-17T00:58:13Z,TX-0001,2.0,3.30,nan,61.4,-70
2025-09-17T01:03:13Z,TX-0001,3,,18.40,oops,
,TX-0001,4,3.30,18.5,61.0,-70
2025-09-17T01:08:13Z,,5,3.30,18.5,61.0,-70
not-a-date,TX-0002,2,3.28,17.8,64.0,-81
`

// Config returns a sqlite configuration rooted in a temp directory
func Config(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.URL = filepath.Join(t.TempDir(), "farm.db") + "?_busy_timeout=5000&_foreign_keys=on"
	cfg.Logging.LogLevel = "error"
	cfg.Migration.Directory = filepath.Join(t.TempDir(), "migrations")
	return cfg
}

// OpenDB opens a migrated sqlite database with the given pool size and
// closes it when the test ends
func OpenDB(t *testing.T, maxOpenConns int) *database.DB {
	t.Helper()
	cfg := Config(t)
	cfg.Database.ConnectionPool.MaxOpenConns = maxOpenConns
	cfg.Database.ConnectionPool.MaxIdleConns = maxOpenConns

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Gorm().AutoMigrate(models.GetAllModels()...))
	return db
}

// CountRows returns the number of rows in the table of model
func CountRows(t *testing.T, db *database.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Gorm().Model(model).Count(&n).Error)
	return n
}
