package db

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/WailSalutem-Health-Care/carelog/internal/config"
	"github.com/WailSalutem-Health-Care/carelog/internal/storage"
)

const (
	StoreName     = "LongCareRecordsDB"
	SchemaVersion = 2

	PatientsCollection = "patients"
	RecordsCollection  = "careRecords"
)

// CareSchema declares the patient and care record collections.
//
// Version 1 had only careRecords with name and date indexes. Version 2
// added the patients collection and the room, compound and patientId
// indexes on careRecords.
func CareSchema() storage.Schema {
	return storage.Schema{
		Name:    StoreName,
		Version: SchemaVersion,
		Collections: []storage.CollectionSpec{
			{
				Name: PatientsCollection,
				Indexes: []storage.IndexSpec{
					{Name: "name", KeyPath: []string{"name"}, Unique: true},
					{Name: "room", KeyPath: []string{"room"}},
					{Name: "status", KeyPath: []string{"status"}},
				},
			},
			{
				Name: RecordsCollection,
				Indexes: []storage.IndexSpec{
					{Name: "name", KeyPath: []string{"name"}},
					{Name: "date", KeyPath: []string{"date"}},
					{Name: "room", KeyPath: []string{"room"}},
					{Name: "name_date", KeyPath: []string{"name", "date"}},
					{Name: "patientId", KeyPath: []string{"patientId"}},
				},
			},
		},
	}
}

// Status is the storage status as reported to callers.
type Status struct {
	storage.Status
	HasPatientsStore bool `json:"hasPatientsStore"`
	HasRecordsStore  bool `json:"hasRecordsStore"`
	NeedsUpgrade     bool `json:"needsUpgrade,omitempty"`
}

// StatusOf adds collection presence flags to an engine status.
func StatusOf(st storage.Status) Status {
	out := Status{
		Status:           st,
		HasPatientsStore: slices.Contains(st.Collections, PatientsCollection),
		HasRecordsStore:  slices.Contains(st.Collections, RecordsCollection),
	}
	out.NeedsUpgrade = st.Available && (st.Version < SchemaVersion || !out.HasPatientsStore || !out.HasRecordsStore)
	return out
}

// OpenStore brings the care schema up on an open database.
func OpenStore(ctx context.Context, database *sql.DB, driver string, allowDestructive bool, logger *zap.Logger, onTx func(context.Context, storage.Mode, time.Duration, error)) (*storage.Engine, error) {
	dialect := storage.SQLite
	if driver == DriverPostgres {
		dialect = storage.Postgres
	}
	return storage.Open(ctx, database, CareSchema(), storage.Options{
		Dialect:                 dialect,
		AllowDestructiveUpgrade: allowDestructive,
		Logger:                  logger,
		OnTransaction:           onTx,
	})
}

// Open connects to the configured backend and opens the care store on it.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger, onTx func(context.Context, storage.Mode, time.Duration, error)) (*sql.DB, *storage.Engine, error) {
	database, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	engine, err := OpenStore(ctx, database, cfg.Driver, cfg.AllowDestructiveUpgrade, logger, onTx)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, engine, nil
}
