package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/WailSalutem-Health-Care/carelog/internal/chart"
	"github.com/WailSalutem-Health-Care/carelog/internal/db"
	"github.com/WailSalutem-Health-Care/carelog/internal/patient"
	"github.com/WailSalutem-Health-Care/carelog/internal/record"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type harness struct {
	t      *testing.T
	dir    string
	dbPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("CARELOG_REDIS_ADDR", "")
	dir := t.TempDir()
	return &harness{t: t, dir: dir, dbPath: filepath.Join(dir, "carelog.db")}
}

func (h *harness) exec(args ...string) (envelope, error) {
	h.t.Helper()
	var out bytes.Buffer
	full := append([]string{"--db", h.dbPath, "--log-level", "error"}, args...)
	err := Run(context.Background(), &out, full)

	var env envelope
	if out.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(out.Bytes(), &env), out.String())
	}
	return env, err
}

// ok runs a command that must succeed and decodes its data into v.
func (h *harness) ok(v any, args ...string) {
	h.t.Helper()
	env, err := h.exec(args...)
	require.NoError(h.t, err, "%v: %s", args, env.Error)
	require.True(h.t, env.Success)
	if v != nil {
		require.NoError(h.t, json.Unmarshal(env.Data, v))
	}
}

func TestPatientCommands(t *testing.T) {
	h := newHarness(t)

	var created patient.Patient
	h.ok(&created, "patient", "add", "--name", "王小明", "--age", "82", "--room", "101", "--diagnosis", "糖尿病")
	assert.Equal(t, "王小明", created.Name)
	assert.Equal(t, patient.StatusActive, created.Status)
	id := strconv.FormatInt(created.ID, 10)

	var updated patient.Patient
	h.ok(&updated, "patient", "update", id, "--room", "202")
	assert.Equal(t, "202", updated.Room)
	assert.Equal(t, "糖尿病", updated.Diagnosis, "fields without flags are kept")

	var deactivated patient.Patient
	h.ok(&deactivated, "patient", "delete", id)
	assert.Equal(t, patient.StatusInactive, deactivated.Status)

	var active []patient.Patient
	h.ok(&active, "patient", "list", "--active")
	assert.Empty(t, active)

	var stats patient.Statistics
	h.ok(&stats, "patient", "stats")
	assert.Equal(t, 1, stats.TotalPatients)
	assert.Equal(t, 1, stats.InactivePatients)
	assert.Equal(t, 82, stats.AverageAge)
}

func TestPatientAdd_ValidationFailure(t *testing.T) {
	h := newHarness(t)

	env, err := h.exec("patient", "add", "--age", "80", "--room", "101")
	assert.ErrorIs(t, err, ErrFailed)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestEmptyListingsCarryData(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{
		{"patient", "list"},
		{"patient", "list", "--active"},
		{"patient", "search", "不存在"},
		{"record", "list"},
		{"record", "search", "不存在"},
		{"record", "names"},
	} {
		env, err := h.exec(args...)
		require.NoError(t, err, "%v", args)
		assert.True(t, env.Success, "%v", args)
		assert.JSONEq(t, `[]`, string(env.Data), "%v", args)
	}
}

func TestPatientGet_InvalidID(t *testing.T) {
	h := newHarness(t)

	env, err := h.exec("patient", "get", "abc")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, env.Error, `invalid id "abc"`)
}

func TestRecordCommands(t *testing.T) {
	h := newHarness(t)

	var p patient.Patient
	h.ok(&p, "patient", "add", "--name", "陳美玲", "--age", "79", "--room", "305")

	var rec record.Record
	h.ok(&rec, "record", "add", "--patient-id", strconv.FormatInt(p.ID, 10),
		"--breakfast", "吃完", "--water", "1500", "--systolic", "120", "--diastolic", "80")
	assert.Equal(t, "陳美玲", rec.Name, "name is copied from the patient")
	assert.Equal(t, "305", rec.Room)
	assert.Equal(t, record.Text("79"), rec.Age)
	assert.NotEmpty(t, rec.Date)
	assert.Equal(t, record.Int(1500), rec.Water)

	var changed record.Record
	h.ok(&changed, "record", "update", strconv.FormatInt(rec.ID, 10), "--note", "精神很好", "--water", "")
	assert.Equal(t, "精神很好", changed.Note)
	assert.False(t, changed.Water.Valid, "blank reading clears the value")
	assert.Equal(t, record.Int(120), changed.Systolic)
	assert.Equal(t, rec.Date, changed.Date)

	var byPatient []record.Record
	h.ok(&byPatient, "record", "list", "--patient-id", strconv.FormatInt(p.ID, 10))
	require.Len(t, byPatient, 1)

	var names []string
	h.ok(&names, "record", "names")
	assert.Equal(t, []string{"陳美玲"}, names)

	var found []record.Record
	h.ok(&found, "record", "search", "精神")
	assert.Len(t, found, 1)

	var series chart.Series
	h.ok(&series, "chart", "bloodPressure", "--days", "7")
	require.Len(t, series.Datasets, 2)
	assert.Equal(t, []float64{120}, series.Datasets[0].Data)

	env, err := h.exec("chart", "heartRate")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, env.Error, "unknown chart kind")
}

func TestRecordAdd_FromJSON(t *testing.T) {
	h := newHarness(t)

	path := filepath.Join(h.dir, "record.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "林阿公", "room": "108", "age": 90,
		"date": "2024/9/26 下午3:04:05", "temperature": "36.8", "sleep": "好"
	}`), 0o644))

	var rec record.Record
	h.ok(&rec, "record", "add", "--from-json", path, "--note", "覆寫")
	assert.Equal(t, "林阿公", rec.Name)
	assert.Equal(t, record.Text("90"), rec.Age)
	assert.Equal(t, record.Float(36.8), rec.Temperature)
	assert.Equal(t, "覆寫", rec.Note)
	assert.Equal(t, "2024/9/26 下午3:04:05", rec.Date)
}

func TestBackupAndRestore(t *testing.T) {
	h := newHarness(t)

	var first record.Record
	h.ok(&first, "record", "add", "--name", "甲", "--age", "70", "--room", "1")
	h.ok(nil, "record", "add", "--name", "乙", "--age", "71", "--room", "2")

	backupPath := filepath.Join(h.dir, "out", "backup.json")
	var written backupResult
	h.ok(&written, "backup", "--out", backupPath)
	assert.Equal(t, 2, written.TotalRecords)

	h.ok(nil, "record", "delete", strconv.FormatInt(first.ID, 10))
	h.ok(nil, "record", "add", "--name", "丙", "--age", "72", "--room", "3")

	var restored restoreResult
	h.ok(&restored, "restore", backupPath)
	assert.Equal(t, 2, restored.Restored)

	var names []string
	h.ok(&names, "record", "names")
	assert.ElementsMatch(t, []string{"甲", "乙"}, names)

	var got record.Record
	h.ok(&got, "record", "get", strconv.FormatInt(first.ID, 10))
	assert.Equal(t, first.Date, got.Date)
}

func TestRestore_InvalidFileKeepsRecords(t *testing.T) {
	h := newHarness(t)
	h.ok(nil, "record", "add", "--name", "甲", "--age", "70", "--room", "1")

	path := filepath.Join(h.dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"1.0"}`), 0o644))

	env, err := h.exec("restore", path)
	assert.ErrorIs(t, err, ErrFailed)
	assert.False(t, env.Success)

	var stats record.Statistics
	h.ok(&stats, "record", "stats")
	assert.Equal(t, 1, stats.TotalRecords)
}

func TestExportCommands(t *testing.T) {
	h := newHarness(t)
	h.ok(nil, "record", "add", "--name", "甲", "--age", "70", "--room", "1", "--water", "800")

	xlsx := filepath.Join(h.dir, "export", "records.xlsx")
	var res exportResult
	h.ok(&res, "export", "excel", "--out", xlsx)
	assert.Equal(t, 1, res.Records)

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("長照紀錄")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "800ml")

	html := filepath.Join(h.dir, "report.html")
	h.ok(&res, "export", "report", "--out", html)
	body, err := os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(body), "長照紀錄表")

	env, err := h.exec("export", "report", "--detailed", "--out", html)
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, env.Error, "--patient")
}

func TestExport_NoRecords(t *testing.T) {
	h := newHarness(t)

	env, err := h.exec("export", "excel", "--out", filepath.Join(h.dir, "x.xlsx"))
	assert.ErrorIs(t, err, ErrFailed)
	assert.Equal(t, "沒有資料可以匯出", env.Error)
}

func TestDBCommands(t *testing.T) {
	h := newHarness(t)
	h.ok(nil, "record", "add", "--name", "甲", "--age", "70", "--room", "1")

	var st db.Status
	h.ok(&st, "db", "status")
	assert.True(t, st.Available)
	assert.Equal(t, db.SchemaVersion, st.Version)
	assert.True(t, st.HasRecordsStore)

	env, err := h.exec("db", "reset")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, env.Error, "--yes")

	h.ok(nil, "db", "reset", "--yes")

	var stats record.Statistics
	h.ok(&stats, "record", "stats")
	assert.Zero(t, stats.TotalRecords)
}

func TestViewsCommand(t *testing.T) {
	h := newHarness(t)
	h.ok(nil, "record", "add", "--name", "甲", "--age", "70", "--room", "1")

	var views struct {
		Records      []record.Record `json:"records"`
		PatientNames []string        `json:"patientNames"`
	}
	h.ok(&views, "views")
	assert.Len(t, views.Records, 1)
	assert.Equal(t, []string{"甲"}, views.PatientNames)

	env, err := h.exec("views", "--shared")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, env.Error, "no shared view cache configured")
}

func TestViewsCommand_SharedAcrossRuns(t *testing.T) {
	h := newHarness(t)
	mr := miniredis.RunT(t)
	t.Setenv("CARELOG_REDIS_ADDR", mr.Addr())

	h.ok(nil, "record", "add", "--name", "甲", "--age", "70", "--room", "1")
	assert.True(t, mr.Exists("carelog:views"))

	var views struct {
		Records      []record.Record `json:"records"`
		PatientNames []string        `json:"patientNames"`
	}
	h.ok(&views, "views", "--shared")
	assert.Len(t, views.Records, 1)
	assert.Equal(t, []string{"甲"}, views.PatientNames)
}
