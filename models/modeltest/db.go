// Package modeltest opens throwaway SQLite databases migrated with the service schema.
package modeltest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// OpenDB returns a migrated in-memory database private to t.
// A single connection is kept so every query sees the same memory database.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// OpenStore is OpenDB wrapped in a Store with no change hook.
func OpenStore(t testing.TB) *models.Store {
	t.Helper()
	return models.NewStore(OpenDB(t), config.NewLogger("error"))
}
