// Package testsupport provides shared helpers for package tests: an
// isolated in-memory local store and a quiet logger.
package testsupport

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pagewatch/internal/storage"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestDB opens an isolated in-memory SQLite database for one test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := unsafeNameChars.ReplaceAllString(t.Name(), "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, rand.Int63())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the shared in-memory database alive for the test
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// NewLocalStore builds a migrated local store on an isolated in-memory
// database.
func NewLocalStore(t *testing.T, eventCap int) *storage.LocalStore {
	t.Helper()

	store := storage.NewLocalStoreWithDB(NewTestDB(t), eventCap, Logger())
	require.NoError(t, store.Migrate())
	return store
}
