package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/WailSalutem-Health-Care/carelog/internal/caredate"
	"github.com/WailSalutem-Health-Care/carelog/internal/db"
	"github.com/WailSalutem-Health-Care/carelog/internal/storage"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

type Repository struct {
	engine *storage.Engine
	logger *zap.Logger
	now    func() time.Time
	loc    *time.Location
}

func NewRepository(engine *storage.Engine, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		engine: engine,
		logger: logger,
		now:    time.Now,
		loc:    time.Local,
	}
}

func (r *Repository) stamp() string {
	return r.now().UTC().Format(timestampLayout)
}

// Add stores a new record under a fresh time-based id.
func (r *Repository) Add(ctx context.Context, rec Record) (*Record, error) {
	ts := r.stamp()
	rec.ID = r.engine.NextID()
	rec.CreatedAt = ts
	rec.UpdatedAt = ts

	err := r.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadWrite, func(ctx context.Context, tx *storage.Tx) error {
		return tx.Add(ctx, db.RecordsCollection, rec.ID, rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetAll returns every record, newest first.
func (r *Repository) GetAll(ctx context.Context) ([]Record, error) {
	var records []Record
	err := r.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		var err error
		records, err = storage.GetAll[Record](ctx, tx, db.RecordsCollection)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortNewestFirst(records, r.loc)
	return records, nil
}

// GetByPatientName returns the records entered under name, newest first.
func (r *Repository) GetByPatientName(ctx context.Context, name string) ([]Record, error) {
	return r.byIndex(ctx, "name", name)
}

// GetByPatientID returns the records linked to a patient id, newest first.
func (r *Repository) GetByPatientID(ctx context.Context, patientID int64) ([]Record, error) {
	return r.byIndex(ctx, "patientId", patientID)
}

func (r *Repository) byIndex(ctx context.Context, index string, key any) ([]Record, error) {
	var records []Record
	err := r.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		var err error
		records, err = storage.IndexGetAll[Record](ctx, tx, db.RecordsCollection, index, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortNewestFirst(records, r.loc)
	return records, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Record, error) {
	var rec Record
	err := r.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		var err error
		rec, err = storage.Get[Record](ctx, tx, db.RecordsCollection, id)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update replaces the stored record with rec. It is not a merge: every
// field comes from rec except id, and createdAt when rec leaves it blank.
func (r *Repository) Update(ctx context.Context, id int64, rec Record) (*Record, error) {
	err := r.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadWrite, func(ctx context.Context, tx *storage.Tx) error {
		existing, err := storage.Get[Record](ctx, tx, db.RecordsCollection, id)
		if err != nil {
			return err
		}
		rec.ID = id
		if rec.CreatedAt == "" {
			rec.CreatedAt = existing.CreatedAt
		}
		rec.UpdatedAt = r.stamp()
		return tx.Put(ctx, db.RecordsCollection, id, rec)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record. Deleting a missing id succeeds.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadWrite, func(ctx context.Context, tx *storage.Tx) error {
		return tx.Delete(ctx, db.RecordsCollection, id)
	})
}

// DistinctNames returns the patient names in the order they first appear
// in GetAll.
func (r *Repository) DistinctNames(ctx context.Context) ([]string, error) {
	records, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return DistinctNames(records), nil
}

// Search returns records whose name, room or note contain term, ignoring
// case.
func (r *Repository) Search(ctx context.Context, term string) ([]Record, error) {
	records, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(records, term), nil
}

func (r *Repository) Statistics(ctx context.Context) (*Statistics, error) {
	records, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := Summarize(records)
	return &stats, nil
}

// Backup snapshots every stored document unchanged, newest first.
func (r *Repository) Backup(ctx context.Context) (*Backup, error) {
	var raws []json.RawMessage
	err := r.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		var err error
		raws, err = tx.GetAll(ctx, db.RecordsCollection)
		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, len(raws))
	byID := make(map[int64]json.RawMessage, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &records[i]); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		byID[records[i].ID] = raw
	}
	SortNewestFirst(records, r.loc)

	ordered := make([]json.RawMessage, len(records))
	for i, rec := range records {
		ordered[i] = byID[rec.ID]
	}
	return &Backup{
		Version:      BackupVersion,
		ExportDate:   r.stamp(),
		TotalRecords: len(ordered),
		Records:      ordered,
	}, nil
}

// Restore replaces the whole collection with the snapshot's records in a
// single transaction. Records keep their JSON and ids as given; records
// without an id get a fresh one. Any invalid or conflicting record aborts
// the restore and leaves the existing collection untouched.
func (r *Repository) Restore(ctx context.Context, snap *Snapshot) (int, error) {
	if snap == nil || snap.Records == nil {
		return 0, ErrInvalidBackup
	}

	type entry struct {
		id  int64
		doc json.RawMessage
	}
	entries := make([]entry, 0, len(snap.Records))
	for i, raw := range snap.Records {
		id, doc, err := r.prepareRestored(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: record %d: %v", ErrInvalidBackup, i, err)
		}
		entries = append(entries, entry{id: id, doc: doc})
	}

	err := r.engine.Run(ctx, []string{db.RecordsCollection}, storage.ReadWrite, func(ctx context.Context, tx *storage.Tx) error {
		if err := tx.Clear(ctx, db.RecordsCollection); err != nil {
			return err
		}
		for _, e := range entries {
			if err := tx.Add(ctx, db.RecordsCollection, e.id, e.doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("restore aborted: %w", err)
	}

	r.logger.Info("Records restored", zap.Int("count", len(entries)))
	return len(entries), nil
}

func (r *Repository) prepareRestored(raw json.RawMessage) (int64, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, nil, errors.New("not a JSON object")
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, nil, err
	}

	idRaw, ok := fields["id"]
	if !ok || string(idRaw) == "null" {
		id := r.engine.NextID()
		idJSON, _ := json.Marshal(id)
		fields["id"] = idJSON
		doc, err := json.Marshal(fields)
		if err != nil {
			return 0, nil, err
		}
		return id, doc, nil
	}

	var id int64
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return 0, nil, fmt.Errorf("id must be an integer: %s", idRaw)
	}
	return id, raw, nil
}

// SortNewestFirst orders records by their parsed date, newest first.
// Records whose date cannot be parsed go last, in their original order.
func SortNewestFirst(records []Record, loc *time.Location) {
	type keyed struct {
		rec Record
		at  time.Time
		ok  bool
	}
	items := make([]keyed, len(records))
	for i, rec := range records {
		t, err := caredate.ParseTimestamp(rec.Date, loc)
		items[i] = keyed{rec: rec, at: t, ok: err == nil}
	}
	sort.SliceStable(items, func(i, j int) bool {
		switch {
		case items[i].ok && items[j].ok:
			return items[i].at.After(items[j].at)
		case items[i].ok:
			return !items[j].ok
		default:
			return false
		}
	})
	for i := range items {
		records[i] = items[i].rec
	}
}

// DistinctNames returns unique names in first-seen order.
func DistinctNames(records []Record) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, rec := range records {
		if seen[rec.Name] {
			continue
		}
		seen[rec.Name] = true
		names = append(names, rec.Name)
	}
	return names
}

// Filter keeps records whose name, room or note contain term, ignoring
// case.
func Filter(records []Record, term string) []Record {
	needle := strings.ToLower(term)
	out := []Record{}
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Name), needle) ||
			strings.Contains(strings.ToLower(rec.Room), needle) ||
			strings.Contains(strings.ToLower(rec.Note), needle) {
			out = append(out, rec)
		}
	}
	return out
}

// Summarize computes the dashboard statistics over a record list.
func Summarize(records []Record) Statistics {
	stats := Statistics{
		TotalRecords:     len(records),
		RecordsByPatient: make(map[string]int),
		RecordsByDate:    make(map[string]int),
	}

	var waterSum int64
	var waterCount int
	var tempSum float64
	var tempCount int
	for _, rec := range records {
		stats.RecordsByPatient[rec.Name]++
		stats.RecordsByDate[caredate.DatePart(rec.Date)]++

		if rec.Water.Has() {
			waterSum += rec.Water.Value
			waterCount++
		}
		if rec.Temperature.Has() {
			tempSum += rec.Temperature.Value
			tempCount++
		}
	}
	stats.TotalPatients = len(stats.RecordsByPatient)

	if waterCount > 0 {
		stats.AverageWaterIntake = int(math.Floor(float64(waterSum)/float64(waterCount) + 0.5))
	}
	if tempCount > 0 {
		stats.AverageTemperature = math.Floor(tempSum/float64(tempCount)*10+0.5) / 10
	}
	return stats
}
