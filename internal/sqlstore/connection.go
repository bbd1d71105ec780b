// Package sqlstore is the shared GORM/SQLite connection opener used by
// internal/statsstore and internal/opslog.
package sqlstore

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// Open returns a GORM handle over a SQLite file at path (or a DSN such as
// "file::memory:?cache=shared" for tests), with WAL journaling and a
// single-connection pool since modernc.org/sqlite does not support
// concurrent writers.
func Open(dsn string) (*gorm.DB, error) {
	if shouldEnsureParentDir(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
	}
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := gdb.Exec(`PRAGMA journal_mode=WAL;`).Error; err != nil {
		return nil, err
	}
	if err := gdb.Exec(`PRAGMA busy_timeout=5000;`).Error; err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return gdb, nil
}

func shouldEnsureParentDir(dsn string) bool {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return false
	}
	lower := strings.ToLower(dsn)
	if strings.Contains(lower, "mode=memory") || strings.HasPrefix(lower, "file:") {
		return false
	}
	return true
}
