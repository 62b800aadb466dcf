// Package app is the façade the command line drives. It owns the store,
// the patient and record services and an explicit cache of the views the
// screens show, which it recomputes after every successful mutation.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/WailSalutem-Health-Care/carelog/internal/config"
	"github.com/WailSalutem-Health-Care/carelog/internal/db"
	"github.com/WailSalutem-Health-Care/carelog/internal/messaging"
	"github.com/WailSalutem-Health-Care/carelog/internal/patient"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
	"github.com/WailSalutem-Health-Care/carelog/internal/storage"
	"github.com/WailSalutem-Health-Care/carelog/internal/telemetry"
	"github.com/WailSalutem-Health-Care/carelog/internal/viewcache"
)

var (
	ErrNotInitialized = errors.New("database is not initialized")
	ErrUnavailable    = errors.New("storage backend is not available")
)

// Options are the collaborators of an App. Only Config is required.
type Options struct {
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.PublisherInterface
	Metrics   *telemetry.Metrics
	ViewStore viewcache.Store
	Now       func() time.Time
}

type App struct {
	cfg       config.Config
	logger    *zap.Logger
	publisher messaging.PublisherInterface
	metrics   *telemetry.Metrics
	viewStore viewcache.Store
	now       func() time.Time

	database *sql.DB
	engine   *storage.Engine
	patients patient.ServiceInterface
	records  record.ServiceInterface
	initErr  error

	mu    sync.RWMutex
	views Views
}

func New(opts Options) *App {
	a := &App{
		cfg:       opts.Config,
		logger:    opts.Logger,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		viewStore: opts.ViewStore,
		now:       opts.Now,
		initErr:   ErrNotInitialized,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.publisher == nil {
		a.publisher = (*messaging.Publisher)(nil)
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Initialize opens the store and loads the views. It reports failure as
// false; the reason is available from Err.
func (a *App) Initialize(ctx context.Context) bool {
	if a.engine != nil {
		return true
	}
	if !db.Available(a.cfg.Storage.Driver) {
		a.initErr = fmt.Errorf("%w: %s", ErrUnavailable, a.cfg.Storage.Driver)
		a.logger.Error("Storage backend unavailable", zap.String("driver", a.cfg.Storage.Driver))
		return false
	}

	onTx := func(ctx context.Context, mode storage.Mode, d time.Duration, err error) {
		a.metrics.RecordStoreTransaction(ctx, mode.String(), d, err)
	}
	database, engine, err := db.Open(ctx, a.cfg.Storage, a.logger, onTx)
	if err != nil {
		a.initErr = err
		a.logger.Error("Failed to open store", zap.Error(err))
		return false
	}

	a.database = database
	a.engine = engine
	a.patients = patient.NewService(patient.NewRepository(engine, a.logger))
	a.records = record.NewService(record.NewRepository(engine, a.logger))
	a.initErr = nil

	if err := a.Refresh(ctx); err != nil {
		a.logger.Error("Failed to load views", zap.Error(err))
	}

	a.logger.Info("Store initialized",
		zap.String("driver", a.cfg.Storage.Driver),
		zap.Int("version", engine.Schema().Version),
	)
	return true
}

// Err returns why Initialize failed, or nil after a successful one.
func (a *App) Err() error {
	return a.initErr
}

func (a *App) ready() error {
	if a.engine == nil {
		return a.initErr
	}
	return nil
}

// Close releases the store and the publisher.
func (a *App) Close() error {
	var errs []error
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}
	errs = append(errs, a.publisher.Close())
	if a.viewStore != nil {
		errs = append(errs, a.viewStore.Close())
	}
	return errors.Join(errs...)
}

// Status reports the storage status. Before initialization the store is
// reported unavailable with the initialization error.
func (a *App) Status(ctx context.Context) db.Status {
	if err := a.ready(); err != nil {
		return db.Status{Status: storage.Status{
			Name:        db.StoreName,
			Collections: []string{},
			Error:       err.Error(),
		}}
	}
	return db.StatusOf(a.engine.Status(ctx))
}

// Reset deletes both collections and their contents, then reinstalls the
// schema. This is irreversible without a prior backup.
func (a *App) Reset(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.engine.Reset(ctx); err != nil {
		a.logger.Error("Failed to reset store", zap.Error(err))
		return err
	}
	a.logger.Warn("Store reset by request")
	return a.Refresh(ctx)
}
