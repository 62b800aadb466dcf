package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/WailSalutem-Health-Care/carelog/internal/chart"
	"github.com/WailSalutem-Health-Care/carelog/internal/messaging"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

func recordEvent(routingKey string, rec *record.Record) messaging.CareRecordEvent {
	return messaging.CareRecordEvent{
		BaseEvent: messaging.NewBaseEvent(routingKey),
		Data: messaging.CareRecordData{
			RecordID:    rec.ID,
			PatientName: rec.Name,
			Room:        rec.Room,
			Date:        rec.Date,
		},
	}
}

func (a *App) CreateRecord(ctx context.Context, rec record.Record) (*record.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	created, err := a.records.CreateRecord(ctx, rec)
	a.metrics.RecordCareRecordOperation(ctx, "create", err)
	if err != nil {
		a.logger.Error("Failed to create record", zap.Error(err))
		return nil, err
	}

	a.logger.Info("Record created", zap.Int64("record_id", created.ID))
	a.afterMutation(ctx, messaging.EventCareRecordCreated, recordEvent(messaging.EventCareRecordCreated, created))
	return created, nil
}

func (a *App) UpdateRecord(ctx context.Context, id int64, rec record.Record) (*record.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	updated, err := a.records.UpdateRecord(ctx, id, rec)
	a.metrics.RecordCareRecordOperation(ctx, "update", err)
	if err != nil {
		a.logger.Error("Failed to update record", zap.Int64("record_id", id), zap.Error(err))
		return nil, err
	}

	a.logger.Info("Record updated", zap.Int64("record_id", id))
	a.afterMutation(ctx, messaging.EventCareRecordUpdated, recordEvent(messaging.EventCareRecordUpdated, updated))
	return updated, nil
}

func (a *App) DeleteRecord(ctx context.Context, id int64) error {
	if err := a.ready(); err != nil {
		return err
	}
	err := a.records.DeleteRecord(ctx, id)
	a.metrics.RecordCareRecordOperation(ctx, "delete", err)
	if err != nil {
		a.logger.Error("Failed to delete record", zap.Int64("record_id", id), zap.Error(err))
		return err
	}

	a.logger.Info("Record deleted", zap.Int64("record_id", id))
	a.afterMutation(ctx, messaging.EventCareRecordDeleted, recordEvent(messaging.EventCareRecordDeleted, &record.Record{ID: id}))
	return nil
}

func (a *App) GetRecord(ctx context.Context, id int64) (*record.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.records.GetRecord(ctx, id)
}

// Records returns the cached record list, newest first.
func (a *App) Records() ([]record.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.Views().Records, nil
}

func (a *App) RecordsByPatient(ctx context.Context, name string) ([]record.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.records.RecordsByPatient(ctx, name)
}

func (a *App) RecordsByPatientID(ctx context.Context, patientID int64) ([]record.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.records.RecordsByPatientID(ctx, patientID)
}

func (a *App) SearchRecords(ctx context.Context, term string) ([]record.Record, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.records.SearchRecords(ctx, term)
}

func (a *App) PatientNames() ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.Views().PatientNames, nil
}

func (a *App) Statistics() (record.Statistics, error) {
	if err := a.ready(); err != nil {
		return record.Statistics{}, err
	}
	return a.Views().Statistics, nil
}

func (a *App) Backup(ctx context.Context) (*record.Backup, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	b, err := a.records.Backup(ctx)
	a.metrics.RecordCareRecordOperation(ctx, "backup", err)
	if err != nil {
		a.logger.Error("Failed to back up records", zap.Error(err))
		return nil, err
	}
	return b, nil
}

// Restore replaces every record with the contents of a backup document.
// The replacement is atomic: on any failure the existing records stay.
func (a *App) Restore(ctx context.Context, data []byte) (int, error) {
	if err := a.ready(); err != nil {
		return 0, err
	}
	n, err := a.records.Restore(ctx, data)
	a.metrics.RecordCareRecordOperation(ctx, "restore", err)
	if err != nil {
		a.logger.Error("Failed to restore records", zap.Error(err))
		return 0, err
	}

	a.logger.Info("Records restored", zap.Int("count", n))
	a.afterMutation(ctx, messaging.EventCareRecordsRestored, messaging.CareRecordsRestoredEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventCareRecordsRestored),
		Data: messaging.CareRecordsRestoredData{
			Count:      n,
			RestoredAt: time.Now().UTC(),
		},
	})
	return n, nil
}

// Chart builds a trend chart from the cached records, optionally limited
// to one patient.
func (a *App) Chart(kind chart.Kind, days int, patientName string) (*chart.Series, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	records := a.Views().Records
	if patientName != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Name == patientName {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	return chart.Build(kind, records, days, a.now())
}
