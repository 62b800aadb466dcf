package record

import "context"

// ServiceInterface defines the contract for care record business logic
type ServiceInterface interface {
	CreateRecord(ctx context.Context, rec Record) (*Record, error)
	GetRecord(ctx context.Context, id int64) (*Record, error)
	ListRecords(ctx context.Context) ([]Record, error)
	RecordsByPatient(ctx context.Context, name string) ([]Record, error)
	RecordsByPatientID(ctx context.Context, patientID int64) ([]Record, error)
	UpdateRecord(ctx context.Context, id int64, rec Record) (*Record, error)
	DeleteRecord(ctx context.Context, id int64) error
	PatientNames(ctx context.Context) ([]string, error)
	SearchRecords(ctx context.Context, term string) ([]Record, error)
	Statistics(ctx context.Context) (*Statistics, error)
	Backup(ctx context.Context) (*Backup, error)
	Restore(ctx context.Context, data []byte) (int, error)
}

var _ ServiceInterface = (*Service)(nil)
