// Package gormtest opens isolated in-memory sqlite databases for tests.
package gormtest

import (
	"fmt"
	"resledger/pkg/client"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open returns a fresh database migrated for models. It is closed when the
// test ends. A single connection keeps every caller on the same memory database.
func Open(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := client.OpenSQL(client.SQLOptions{
		Driver:       client.DriverSQLite,
		DSN:          dsn,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
