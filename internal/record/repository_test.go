package record

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WailSalutem-Health-Care/carelog/internal/db"
	"github.com/WailSalutem-Health-Care/carelog/internal/storage"
	"github.com/WailSalutem-Health-Care/carelog/internal/testutil"
)

var taipei = time.FixedZone("CST", 8*3600)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(testutil.SetupTestStore(t), nil)
	repo.loc = taipei
	repo.now = func() time.Time { return time.Date(2024, 9, 30, 1, 0, 0, 0, time.UTC) }
	return repo
}

func mustAdd(t *testing.T, repo *Repository, rec Record) *Record {
	t.Helper()
	created, err := repo.Add(context.Background(), rec)
	require.NoError(t, err)
	return created
}

func TestRepositoryAdd_NoNameConstraint(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	a := mustAdd(t, repo, Record{Name: "王小明", Room: "101", Age: "82", Date: "2024/9/26 上午8:00:00"})
	b := mustAdd(t, repo, Record{Name: "王小明", Room: "101", Age: "82", Date: "2024/9/26 上午8:00:00"})

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "2024-09-30T01:00:00.000Z", a.CreatedAt)

	records, err := repo.GetByPatientName(ctx, "王小明")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRepositoryGetAll_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	mustAdd(t, repo, Record{Name: "a", Date: "2024/9/25 下午3:00:00"})
	mustAdd(t, repo, Record{Name: "b", Date: "garbled"})
	mustAdd(t, repo, Record{Name: "c", Date: "2024-09-27T01:00:00.000Z"})
	mustAdd(t, repo, Record{Name: "d", Date: "2024/9/26 上午9:00:00"})

	records, err := repo.GetAll(ctx)
	require.NoError(t, err)

	var names []string
	for _, r := range records {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, names)

	distinct, err := repo.DistinctNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "a", "b"}, distinct)
}

func TestRepositoryGetByPatientID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	mustAdd(t, repo, Record{Name: "a", PatientID: Int(7), Date: "2024/9/25 下午3:00:00"})
	mustAdd(t, repo, Record{Name: "a", Date: "2024/9/26 下午3:00:00"})

	records, err := repo.GetByPatientID(ctx, 7)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].PatientID.Value)
}

func TestRepositoryUpdate_Replaces(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	orig := mustAdd(t, repo, Record{Name: "a", Room: "1", Age: "80", Date: "2024/9/25 下午3:00:00", Water: Int(1200), Note: "ok"})

	repo.now = func() time.Time { return time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC) }
	updated, err := repo.Update(ctx, orig.ID, Record{Name: "a", Room: "2", Age: "80", Date: orig.Date})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, *updated, *got)
	assert.Equal(t, "2", got.Room)
	assert.False(t, got.Water.Valid, "update replaces the whole record")
	assert.Empty(t, got.Note)
	assert.Equal(t, orig.CreatedAt, got.CreatedAt)
	assert.Equal(t, "2024-10-01T00:00:00.000Z", got.UpdatedAt)

	_, err = repo.Update(ctx, 999, Record{Name: "x"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	rec := mustAdd(t, repo, Record{Name: "a", Date: "2024/9/25 下午3:00:00"})

	require.NoError(t, repo.Delete(ctx, rec.ID))
	require.NoError(t, repo.Delete(ctx, rec.ID))

	_, err := repo.GetByID(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepositorySearch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	mustAdd(t, repo, Record{Name: "Alice", Room: "A1", Date: "2024/9/25 下午3:00:00"})
	mustAdd(t, repo, Record{Name: "Bob", Room: "B2", Note: "Refused LUNCH", Date: "2024/9/25 下午4:00:00"})

	got, err := repo.Search(ctx, "lunch")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].Name)

	got, err = repo.Search(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].Name)
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{Name: "a", Date: "2024/9/26 上午8:00:00", Water: Int(1000), Temperature: Float(36.5)},
		{Name: "a", Date: "2024/9/26 下午8:00:00", Water: Int(1500), Temperature: Float(36.8)},
		{Name: "b", Date: "2024/9/27 上午8:00:00"},
		{Name: "b", Date: "2024/9/27 上午9:00:00", Water: Int(2000), Temperature: Float(37.0)},
	}

	stats := Summarize(records)

	assert.Equal(t, 4, stats.TotalRecords)
	assert.Equal(t, 2, stats.TotalPatients)
	assert.Equal(t, map[string]int{"a": 2, "b": 2}, stats.RecordsByPatient)
	assert.Equal(t, map[string]int{"2024/9/26": 2, "2024/9/27": 2}, stats.RecordsByDate)
	assert.Equal(t, 1500, stats.AverageWaterIntake)
	assert.InDelta(t, 36.8, stats.AverageTemperature, 1e-9)

	empty := Summarize([]Record{{Name: "a", Date: "2024/9/26"}})
	assert.Zero(t, empty.AverageWaterIntake)
	assert.Zero(t, empty.AverageTemperature)
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	mustAdd(t, repo, Record{Name: "a", Room: "1", Age: "80", Date: "2024/9/25 下午3:00:00", Water: Int(1200), Breakfast: MealFinished})
	mustAdd(t, repo, Record{Name: "b", Room: "2", Age: "81", Date: "2024/9/26 下午3:00:00", Temperature: Float(36.6), Sleep: SleepGood, PatientID: Int(3)})

	backup, err := repo.Backup(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackupVersion, backup.Version)
	assert.Equal(t, 2, backup.TotalRecords)

	data, err := json.Marshal(backup)
	require.NoError(t, err)

	mustAdd(t, repo, Record{Name: "c", Date: "2024/9/27 下午3:00:00"})

	snap, err := ParseSnapshot(data)
	require.NoError(t, err)
	n, err := repo.Restore(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for i, rec := range records {
		var fromBackup Record
		require.NoError(t, json.Unmarshal(backup.Records[i], &fromBackup))
		assert.Equal(t, fromBackup, rec)
	}
}

func TestBackup_KeepsStoredDocuments(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	doc := `{"id":1700000000000,"name":"a","room":"1","age":"80","date":"2024/9/25 下午3:00:00","water":"1500","systolic":"","custom":"kept"}`
	snap, err := ParseSnapshot([]byte(`{"records":[` + doc + `,{"id":1700000000001,"name":"b","date":"2024/9/26 下午3:00:00"}]}`))
	require.NoError(t, err)
	_, err = repo.Restore(ctx, snap)
	require.NoError(t, err)

	backup, err := repo.Backup(ctx)
	require.NoError(t, err)
	require.Len(t, backup.Records, 2)
	assert.Contains(t, string(backup.Records[0]), `"name":"b"`, "newest first")
	assert.JSONEq(t, doc, string(backup.Records[1]))

	data, err := json.Marshal(backup)
	require.NoError(t, err)
	again, err := ParseSnapshot(data)
	require.NoError(t, err)
	_, err = repo.Restore(ctx, again)
	require.NoError(t, err)

	err = repo.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		raw, err := tx.Get(ctx, db.RecordsCollection, 1700000000000)
		require.NoError(t, err)
		assert.JSONEq(t, doc, string(raw))
		return nil
	})
	require.NoError(t, err)
}

func TestRestore_Malformed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	mustAdd(t, repo, Record{Name: "keep", Date: "2024/9/25 下午3:00:00"})

	for _, doc := range []string{`{}`, `{"records":null}`, `{"records":{}}`, `[]`, `not json`} {
		_, err := ParseSnapshot([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidBackup, doc)
	}

	// conflicting ids abort the whole restore
	snap, err := ParseSnapshot([]byte(`{"records":[{"id":1,"name":"x"},{"id":1,"name":"y"}]}`))
	require.NoError(t, err)
	_, err = repo.Restore(ctx, snap)
	assert.ErrorIs(t, err, storage.ErrKeyExists)

	snap, err = ParseSnapshot([]byte(`{"records":[{"id":2,"name":"x"},"oops"]}`))
	require.NoError(t, err)
	_, err = repo.Restore(ctx, snap)
	assert.ErrorIs(t, err, ErrInvalidBackup)

	records, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "keep", records[0].Name)
}

func TestRestore_VerbatimAndMissingIDs(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	snap, err := ParseSnapshot([]byte(`{"version":"1.0","records":[
		{"id":1700000000000,"name":"a","room":"1","age":80,"date":"2024/9/25 下午3:00:00","water":"900","custom":"kept"},
		{"name":"b","room":"2","age":"81","date":"2024/9/26 下午3:00:00"}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, "1.0", snap.Version)

	n, err := repo.Restore(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := repo.GetByID(ctx, 1700000000000)
	require.NoError(t, err)
	assert.Equal(t, Text("80"), first.Age)
	assert.Equal(t, int64(900), first.Water.Value)

	err = repo.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		raw, err := tx.Get(ctx, db.RecordsCollection, 1700000000000)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"custom":"kept"`)
		return nil
	})
	require.NoError(t, err)

	byName, err := repo.GetByPatientName(ctx, "b")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Greater(t, byName[0].ID, int64(1700000000000))

	empty, err := ParseSnapshot([]byte(`{"records":[]}`))
	require.NoError(t, err)
	n, err = repo.Restore(ctx, empty)
	require.NoError(t, err)
	assert.Zero(t, n)
}
