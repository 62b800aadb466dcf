package patient

import "context"

// RepositoryInterface defines the contract for patient data access
type RepositoryInterface interface {
	Add(ctx context.Context, req CreatePatientRequest) (*Patient, error)
	GetAll(ctx context.Context) ([]Patient, error)
	GetActive(ctx context.Context) ([]Patient, error)
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, id int64, req UpdatePatientRequest) (*Patient, error)
	SoftDelete(ctx context.Context, id int64) (*Patient, error)
	Search(ctx context.Context, term string) ([]Patient, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

// Ensure Repository implements RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)
