package patient

import "context"

// ServiceInterface defines the contract for patient business logic operations
type ServiceInterface interface {
	CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error)
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	ListActivePatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*Patient, error)
	DeactivatePatient(ctx context.Context, id int64) (*Patient, error)
	SearchPatients(ctx context.Context, term string) ([]Patient, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

var _ ServiceInterface = (*Service)(nil)
