// Package sqldbtest opens throwaway SQLite-backed repositories for tests.
package sqldbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"access-bot-backend/internal/repository/sqldb"
)

// NewRepository returns a migrated repository over a file in t.TempDir().
func NewRepository(t testing.TB) *sqldb.AccountRepository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "accounts.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := sqldb.AutoMigrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqldb.NewAccountRepository(db)
}
