// Package testutil 提供测试共用的内存数据库。
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/haullog/internal/db"
	"gorm.io/gorm"
)

// OpenDB 为每个测试创建独立的内存 SQLite 库并完成迁移。
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.Open(db.Options{Driver: db.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close(gdb)
	})
	return gdb
}
