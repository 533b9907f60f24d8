package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/sheetmirror-backend/internal/data/db"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

var (
	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated database: Postgres when TEST_POSTGRES_DSN is set,
// otherwise a fresh SQLite file under tb's temp dir.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}

	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		pgOnce.Do(func() {
			pgDB, pgErr = gorm.Open(postgres.Open(dsn), cfg)
			if pgErr == nil {
				pgErr = migrate(pgDB)
			}
		})
		if pgErr != nil {
			tb.Fatalf("failed to init test db: %v", pgErr)
		}
		return pgDB
	}

	path := filepath.Join(tb.TempDir(), "repo_test.db")
	conn, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		tb.Skipf("sqlite unavailable (set TEST_POSTGRES_DSN to run repo tests): %v", err)
	}
	if err := conn.Exec("SELECT 1").Error; err != nil {
		tb.Skipf("sqlite unavailable (set TEST_POSTGRES_DSN to run repo tests): %v", err)
	}
	if err := migrate(conn); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func Tx(tb testing.TB, conn *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := conn.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func migrate(conn *gorm.DB) error {
	if err := db.AutoMigrateAll(conn); err != nil {
		return err
	}
	return db.EnsureMirrorIndexes(conn)
}
