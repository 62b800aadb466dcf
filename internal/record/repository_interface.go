package record

import "context"

// RepositoryInterface defines the contract for care record data access
type RepositoryInterface interface {
	Add(ctx context.Context, rec Record) (*Record, error)
	GetAll(ctx context.Context) ([]Record, error)
	GetByPatientName(ctx context.Context, name string) ([]Record, error)
	GetByPatientID(ctx context.Context, patientID int64) ([]Record, error)
	GetByID(ctx context.Context, id int64) (*Record, error)
	Update(ctx context.Context, id int64, rec Record) (*Record, error)
	Delete(ctx context.Context, id int64) error
	DistinctNames(ctx context.Context) ([]string, error)
	Search(ctx context.Context, term string) ([]Record, error)
	Statistics(ctx context.Context) (*Statistics, error)
	Backup(ctx context.Context) (*Backup, error)
	Restore(ctx context.Context, snap *Snapshot) (int, error)
}

var _ RepositoryInterface = (*Repository)(nil)
