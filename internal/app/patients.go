package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/WailSalutem-Health-Care/carelog/internal/messaging"
	"github.com/WailSalutem-Health-Care/carelog/internal/patient"
)

func patientEvent(routingKey string, p *patient.Patient) messaging.PatientEvent {
	return messaging.PatientEvent{
		BaseEvent: messaging.NewBaseEvent(routingKey),
		Data: messaging.PatientData{
			PatientID: p.ID,
			Name:      p.Name,
			Room:      p.Room,
			Status:    string(p.Status),
		},
	}
}

func statusChangedEvent(p *patient.Patient, old patient.Status) messaging.PatientStatusChangedEvent {
	return messaging.PatientStatusChangedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventPatientStatusChanged),
		Data: messaging.PatientStatusChangedData{
			PatientID: p.ID,
			Name:      p.Name,
			OldStatus: string(old),
			NewStatus: string(p.Status),
			ChangedAt: time.Now().UTC(),
		},
	}
}

func (a *App) CreatePatient(ctx context.Context, req patient.CreatePatientRequest) (*patient.Patient, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	p, err := a.patients.CreatePatient(ctx, req)
	a.metrics.RecordPatientOperation(ctx, "create", err)
	if err != nil {
		a.logger.Error("Failed to create patient", zap.Error(err))
		return nil, err
	}

	a.logger.Info("Patient created", zap.Int64("patient_id", p.ID))
	a.afterMutation(ctx, messaging.EventPatientCreated, patientEvent(messaging.EventPatientCreated, p))
	return p, nil
}

func (a *App) UpdatePatient(ctx context.Context, id int64, req patient.UpdatePatientRequest) (*patient.Patient, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	before, err := a.patients.GetPatient(ctx, id)
	if err != nil {
		a.metrics.RecordPatientOperation(ctx, "update", err)
		return nil, err
	}

	p, err := a.patients.UpdatePatient(ctx, id, req)
	a.metrics.RecordPatientOperation(ctx, "update", err)
	if err != nil {
		a.logger.Error("Failed to update patient", zap.Int64("patient_id", id), zap.Error(err))
		return nil, err
	}

	a.logger.Info("Patient updated", zap.Int64("patient_id", id))
	a.afterMutation(ctx, messaging.EventPatientUpdated, patientEvent(messaging.EventPatientUpdated, p))
	if p.Status != before.Status {
		a.publishStatusChange(ctx, p, before.Status)
	}
	return p, nil
}

// DeactivatePatient soft-deletes a patient. Deactivating an inactive
// patient succeeds and publishes nothing.
func (a *App) DeactivatePatient(ctx context.Context, id int64) (*patient.Patient, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	before, err := a.patients.GetPatient(ctx, id)
	if err != nil {
		a.metrics.RecordPatientOperation(ctx, "delete", err)
		return nil, err
	}

	p, err := a.patients.DeactivatePatient(ctx, id)
	a.metrics.RecordPatientOperation(ctx, "delete", err)
	if err != nil {
		a.logger.Error("Failed to deactivate patient", zap.Int64("patient_id", id), zap.Error(err))
		return nil, err
	}

	a.logger.Info("Patient deactivated", zap.Int64("patient_id", id))
	if err := a.Refresh(ctx); err != nil {
		a.logger.Error("Failed to refresh views", zap.Error(err))
	}
	if p.Status != before.Status {
		a.publishStatusChange(ctx, p, before.Status)
	}
	return p, nil
}

func (a *App) publishStatusChange(ctx context.Context, p *patient.Patient, old patient.Status) {
	if err := a.publisher.Publish(ctx, messaging.EventPatientStatusChanged, statusChangedEvent(p, old)); err != nil {
		a.logger.Warn("Failed to publish event", zap.String("routing_key", messaging.EventPatientStatusChanged), zap.Error(err))
	}
}

func (a *App) GetPatient(ctx context.Context, id int64) (*patient.Patient, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.patients.GetPatient(ctx, id)
}

// Patients returns the cached patient list, or only the active patients
// read from the store.
func (a *App) Patients(ctx context.Context, activeOnly bool) ([]patient.Patient, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if activeOnly {
		return a.patients.ListActivePatients(ctx)
	}
	return a.Views().Patients, nil
}

func (a *App) SearchPatients(ctx context.Context, term string) ([]patient.Patient, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.patients.SearchPatients(ctx, term)
}

func (a *App) PatientStatistics() (patient.Statistics, error) {
	if err := a.ready(); err != nil {
		return patient.Statistics{}, err
	}
	return a.Views().PatientStatistics, nil
}
