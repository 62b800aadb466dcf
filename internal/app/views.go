package app

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/WailSalutem-Health-Care/carelog/internal/patient"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

// Views is the cached, display-ready state derived from the store.
type Views struct {
	Records           []record.Record    `json:"records"`
	PatientNames      []string           `json:"patientNames"`
	Statistics        record.Statistics  `json:"statistics"`
	Patients          []patient.Patient  `json:"patients"`
	PatientStatistics patient.Statistics `json:"patientStatistics"`
	RefreshedAt       time.Time          `json:"refreshedAt"`
}

// Views returns a copy of the cached views.
func (a *App) Views() Views {
	a.mu.RLock()
	defer a.mu.RUnlock()

	v := a.views
	v.Records = clone(a.views.Records)
	v.PatientNames = clone(a.views.PatientNames)
	v.Patients = clone(a.views.Patients)
	return v
}

// clone copies s; the copy is never nil so empty views encode as [].
func clone[T any](s []T) []T {
	return append(make([]T, 0, len(s)), s...)
}

// Refresh recomputes every view from the store. The cache is replaced
// only when all of them load.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}

	var next Views
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := a.records.ListRecords(gctx)
		next.Records = records
		return err
	})
	g.Go(func() error {
		names, err := a.records.PatientNames(gctx)
		next.PatientNames = names
		return err
	})
	g.Go(func() error {
		stats, err := a.records.Statistics(gctx)
		if stats != nil {
			next.Statistics = *stats
		}
		return err
	})
	g.Go(func() error {
		patients, err := a.patients.ListPatients(gctx)
		next.Patients = patients
		return err
	})
	g.Go(func() error {
		stats, err := a.patients.Statistics(gctx)
		if stats != nil {
			next.PatientStatistics = *stats
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	next.RefreshedAt = a.now()

	a.mu.Lock()
	a.views = next
	a.mu.Unlock()

	a.mirror(ctx, next)
	return nil
}

// mirror copies the views to the shared view store. Failures only cost
// other processes a stale view, so they are logged and dropped.
func (a *App) mirror(ctx context.Context, v Views) {
	if a.viewStore == nil {
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("Failed to encode views", zap.Error(err))
		return
	}
	if err := a.viewStore.Put(ctx, a.cfg.ViewCache.Key, body, a.cfg.ViewCache.TTL); err != nil {
		a.logger.Warn("Failed to mirror views", zap.String("key", a.cfg.ViewCache.Key), zap.Error(err))
	}
}

// afterMutation refreshes the views and publishes the change event. The
// mutation has already committed, so neither step can fail it.
func (a *App) afterMutation(ctx context.Context, routingKey string, event any) {
	if err := a.Refresh(ctx); err != nil {
		a.logger.Error("Failed to refresh views", zap.Error(err))
	}
	if err := a.publisher.Publish(ctx, routingKey, event); err != nil {
		a.logger.Warn("Failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
