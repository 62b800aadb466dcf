package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/WailSalutem-Health-Care/carelog/internal/config"
	"github.com/WailSalutem-Health-Care/carelog/internal/storage"
)

func TestAvailable(t *testing.T) {
	assert.True(t, Available(DriverSQLite))
	assert.True(t, Available(DriverPostgres))
	assert.False(t, Available("indexeddb"))
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.StorageConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "nested", "care.db")}

	database, engine, err := Open(ctx, cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer database.Close()

	st := StatusOf(engine.Status(ctx))
	assert.True(t, st.Available)
	assert.Equal(t, StoreName, st.Name)
	assert.Equal(t, SchemaVersion, st.Version)
	assert.True(t, st.HasPatientsStore)
	assert.True(t, st.HasRecordsStore)

	b, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"stores":["careRecords","patients"]`)
	assert.Contains(t, string(b), `"hasRecordsStore":true`)
}

func TestOpen_UpgradesVersionOneStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StorageConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "care.db")}

	database, err := Connect(ctx, cfg, nil)
	require.NoError(t, err)

	v1 := storage.Schema{Name: StoreName, Version: 1, Collections: []storage.CollectionSpec{{
		Name: RecordsCollection,
		Indexes: []storage.IndexSpec{
			{Name: "name", KeyPath: []string{"name"}},
			{Name: "date", KeyPath: []string{"date"}},
		},
	}}}
	old, err := storage.Open(ctx, database, v1, storage.Options{})
	require.NoError(t, err)
	require.NoError(t, old.Run(ctx, []string{RecordsCollection}, storage.ReadWrite, func(ctx context.Context, tx *storage.Tx) error {
		return tx.Add(ctx, RecordsCollection, 1, map[string]any{"id": 1, "name": "王小明", "room": "101", "date": "2024/9/26 下午3:04:05"})
	}))
	database.Close()

	database, engine, err := Open(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer database.Close()

	st := StatusOf(engine.Status(ctx))
	assert.Equal(t, 2, st.Version)
	assert.True(t, st.HasPatientsStore)

	require.NoError(t, engine.Run(ctx, []string{RecordsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		byRoom, err := tx.IndexGetAll(ctx, RecordsCollection, "room", "101")
		require.NoError(t, err)
		assert.Len(t, byRoom, 1, "existing records are kept and indexed")
		return nil
	}))
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), config.StorageConfig{Driver: "mysql"}, nil)
	assert.Error(t, err)
}

func TestStatusOf_NeedsUpgrade(t *testing.T) {
	old := StatusOf(storage.Status{Available: true, Version: 1, Collections: []string{RecordsCollection}})
	assert.True(t, old.NeedsUpgrade)
	assert.False(t, old.HasPatientsStore)
	assert.True(t, old.HasRecordsStore)

	current := StatusOf(storage.Status{Available: true, Version: SchemaVersion, Collections: []string{RecordsCollection, PatientsCollection}})
	assert.False(t, current.NeedsUpgrade)

	down := StatusOf(storage.Status{Collections: []string{}})
	assert.False(t, down.NeedsUpgrade)
}
