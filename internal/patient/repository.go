package patient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/WailSalutem-Health-Care/carelog/internal/db"
	"github.com/WailSalutem-Health-Care/carelog/internal/storage"
)

// timestampLayout matches JavaScript's Date.toISOString, which the stored
// createdAt/updatedAt values have always used.
const timestampLayout = "2006-01-02T15:04:05.000Z"

var nameLocale = language.MustParse("zh-TW")

type Repository struct {
	engine *storage.Engine
	logger *zap.Logger
	now    func() time.Time
}

func NewRepository(engine *storage.Engine, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Repository) stamp() string {
	return r.now().UTC().Format(timestampLayout)
}

// Add stores a new active patient. Names are unique across active and
// inactive patients.
func (r *Repository) Add(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	ts := r.stamp()
	p := Patient{
		ID:               r.engine.NextID(),
		Name:             req.Name,
		Age:              req.Age,
		Room:             req.Room,
		Gender:           req.Gender,
		Diagnosis:        req.Diagnosis,
		Notes:            req.Notes,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
		Status:           StatusActive,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}

	err := r.engine.Run(ctx, []string{db.PatientsCollection}, storage.ReadWrite, func(ctx context.Context, tx *storage.Tx) error {
		return tx.Add(ctx, db.PatientsCollection, p.ID, p)
	})
	if err != nil {
		return nil, mapStorageError(err)
	}

	r.logger.Debug("Patient added", zap.Int64("patient_id", p.ID))
	return &p, nil
}

// GetAll returns every patient, active or not, sorted by name.
func (r *Repository) GetAll(ctx context.Context) ([]Patient, error) {
	var patients []Patient
	err := r.engine.Run(ctx, []string{db.PatientsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		var err error
		patients, err = storage.GetAll[Patient](ctx, tx, db.PatientsCollection)
		return err
	})
	if err != nil {
		return nil, mapStorageError(err)
	}
	SortByName(patients)
	return patients, nil
}

// GetActive returns the active patients sorted by name.
func (r *Repository) GetActive(ctx context.Context) ([]Patient, error) {
	var patients []Patient
	err := r.engine.Run(ctx, []string{db.PatientsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		var err error
		patients, err = storage.IndexGetAll[Patient](ctx, tx, db.PatientsCollection, "status", string(StatusActive))
		return err
	})
	if err != nil {
		return nil, mapStorageError(err)
	}
	SortByName(patients)
	return patients, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.engine.Run(ctx, []string{db.PatientsCollection}, storage.ReadOnly, func(ctx context.Context, tx *storage.Tx) error {
		var err error
		p, err = storage.Get[Patient](ctx, tx, db.PatientsCollection, id)
		return err
	})
	if err != nil {
		return nil, mapStorageError(err)
	}
	return &p, nil
}

// Update merges req over the stored patient inside one transaction.
func (r *Repository) Update(ctx context.Context, id int64, req UpdatePatientRequest) (*Patient, error) {
	return r.modify(ctx, id, func(p *Patient) {
		req.applyTo(p)
	})
}

// SoftDelete marks the patient inactive. Deleting an inactive patient
// again succeeds and only refreshes updatedAt.
func (r *Repository) SoftDelete(ctx context.Context, id int64) (*Patient, error) {
	return r.modify(ctx, id, func(p *Patient) {
		p.Status = StatusInactive
	})
}

func (r *Repository) modify(ctx context.Context, id int64, change func(*Patient)) (*Patient, error) {
	var p Patient
	err := r.engine.Run(ctx, []string{db.PatientsCollection}, storage.ReadWrite, func(ctx context.Context, tx *storage.Tx) error {
		var err error
		p, err = storage.Get[Patient](ctx, tx, db.PatientsCollection, id)
		if err != nil {
			return err
		}
		change(&p)
		p.ID = id
		p.UpdatedAt = r.stamp()
		return tx.Put(ctx, db.PatientsCollection, id, p)
	})
	if err != nil {
		return nil, mapStorageError(err)
	}
	return &p, nil
}

// Search returns patients whose name, room, diagnosis or notes contain term,
// ignoring case.
func (r *Repository) Search(ctx context.Context, term string) ([]Patient, error) {
	patients, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(patients, term), nil
}

func (r *Repository) Statistics(ctx context.Context) (*Statistics, error) {
	patients, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := Summarize(patients)
	return &stats, nil
}

// SortByName orders patients by name under Traditional Chinese collation.
func SortByName(patients []Patient) {
	c := collate.New(nameLocale)
	sort.SliceStable(patients, func(i, j int) bool {
		return c.CompareString(patients[i].Name, patients[j].Name) < 0
	})
}

// Filter keeps the patients matching term, ignoring case.
func Filter(patients []Patient, term string) []Patient {
	needle := strings.ToLower(term)
	out := []Patient{}
	for _, p := range patients {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Room), needle) ||
			strings.Contains(strings.ToLower(p.Diagnosis), needle) ||
			strings.Contains(strings.ToLower(p.Notes), needle) {
			out = append(out, p)
		}
	}
	return out
}

// Summarize computes the statistics over a patient list.
func Summarize(patients []Patient) Statistics {
	stats := Statistics{
		TotalPatients:  len(patients),
		PatientsByRoom: make(map[string]int),
	}

	var ageSum, ageCount int
	for _, p := range patients {
		switch p.Status {
		case StatusActive:
			stats.ActivePatients++
		case StatusInactive:
			stats.InactivePatients++
		}
		stats.PatientsByRoom[p.Room]++

		if years, ok := p.Age.Years(); ok {
			ageSum += years
			ageCount++
		}
	}
	if ageCount > 0 {
		stats.AverageAge = int(math.Floor(float64(ageSum)/float64(ageCount) + 0.5))
	}
	return stats
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrPatientNotFound
	case errors.Is(err, storage.ErrConstraint):
		return fmt.Errorf("%w: %v", ErrDuplicatePatientName, err)
	default:
		return err
	}
}
