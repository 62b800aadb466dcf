package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/WailSalutem-Health-Care/carelog/internal/db"
	"github.com/WailSalutem-Health-Care/carelog/internal/storage"
)

// SetupTestStore opens the care schema on a fresh SQLite file that is
// removed when the test ends.
func SetupTestStore(t *testing.T) *storage.Engine {
	t.Helper()
	return SetupTestStoreWithClock(t, nil)
}

// SetupTestStoreWithClock is SetupTestStore with a fixed clock for the
// time-based keys.
func SetupTestStoreWithClock(t *testing.T, now func() time.Time) *storage.Engine {
	t.Helper()

	database, err := sql.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "carelog_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	engine, err := storage.Open(context.Background(), database, db.CareSchema(), storage.Options{
		Dialect: storage.SQLite,
		Now:     now,
	})
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	return engine
}

// SetupPostgresStore opens the care schema on the PostgreSQL database named
// by CARELOG_TEST_DSN and resets it before and after the test. The test is
// skipped when the variable is unset.
func SetupPostgresStore(t *testing.T) *storage.Engine {
	t.Helper()

	dsn := os.Getenv("CARELOG_TEST_DSN")
	if dsn == "" {
		t.Skip("CARELOG_TEST_DSN not set")
	}

	database, err := sql.Open(db.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Ping(); err != nil {
		database.Close()
		t.Fatalf("Failed to ping test database: %v", err)
	}

	ctx := context.Background()
	engine, err := db.OpenStore(ctx, database, db.DriverPostgres, true, nil, nil)
	if err != nil {
		database.Close()
		t.Fatalf("Failed to open test store: %v", err)
	}
	if err := engine.Reset(ctx); err != nil {
		database.Close()
		t.Fatalf("Failed to reset test store: %v", err)
	}

	t.Cleanup(func() {
		if err := engine.Reset(ctx); err != nil {
			t.Logf("Warning: Failed to clean up test store: %v", err)
		}
		database.Close()
	})
	return engine
}
