package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/WailSalutem-Health-Care/carelog/internal/config"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Available reports whether a database/sql driver is registered under name.
func Available(driver string) bool {
	return slices.Contains(sql.Drivers(), driver)
}

// Connect opens the configured backend with OpenTelemetry instrumentation.
func Connect(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !Available(cfg.Driver) {
		return nil, fmt.Errorf("storage driver %q is not available", cfg.Driver)
	}

	var (
		dsn   string
		attrs []attribute.KeyValue
	)
	switch cfg.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		dsn = sqliteDSN(cfg.Path)
		attrs = []attribute.KeyValue{semconv.DBSystemKey.String("sqlite"), semconv.DBName(filepath.Base(cfg.Path))}
	case DriverPostgres:
		dsn = cfg.DSN
		attrs = []attribute.KeyValue{semconv.DBSystemPostgreSQL}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	db, err := otelsql.Open(cfg.Driver, dsn, otelsql.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(attrs...)); err != nil {
		logger.Warn("Failed to register database stats metrics", zap.Error(err))
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// one writer at a time; transaction scopes serialize on the connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	logger.Info("Connected to database", zap.String("driver", cfg.Driver))
	return db, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}
