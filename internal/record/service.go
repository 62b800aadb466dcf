package record

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/WailSalutem-Health-Care/carelog/internal/caredate"
)

type Service struct {
	repo RepositoryInterface
	now  func() time.Time
}

func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo, now: time.Now}
}

func validate(rec *Record) error {
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Room = strings.TrimSpace(rec.Room)
	rec.Age = Text(strings.TrimSpace(string(rec.Age)))

	if rec.Name == "" {
		return ErrMissingName
	}
	if rec.Age == "" {
		return ErrMissingAge
	}
	if rec.Room == "" {
		return ErrMissingRoom
	}
	for _, meal := range []MealStatus{rec.Breakfast, rec.Lunch, rec.Dinner} {
		if !meal.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidMeal, meal)
		}
	}
	if !rec.Sleep.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSleep, rec.Sleep)
	}
	return nil
}

// CreateRecord stores a new record. A blank date is stamped with the
// current local time in the zh-TW format the entry form uses.
func (s *Service) CreateRecord(ctx context.Context, rec Record) (*Record, error) {
	if err := validate(&rec); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.Date) == "" {
		rec.Date = caredate.FormatLocale(s.now())
	}

	created, err := s.repo.Add(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	return created, nil
}

func (s *Service) GetRecord(ctx context.Context, id int64) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (s *Service) ListRecords(ctx context.Context) ([]Record, error) {
	records, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

func (s *Service) RecordsByPatient(ctx context.Context, name string) ([]Record, error) {
	records, err := s.repo.GetByPatientName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for %s: %w", name, err)
	}
	return records, nil
}

func (s *Service) RecordsByPatientID(ctx context.Context, patientID int64) ([]Record, error) {
	records, err := s.repo.GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for patient %d: %w", patientID, err)
	}
	return records, nil
}

// UpdateRecord replaces a record; rec must be complete.
func (s *Service) UpdateRecord(ctx context.Context, id int64, rec Record) (*Record, error) {
	if err := validate(&rec); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, id, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteRecord(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *Service) PatientNames(ctx context.Context) ([]string, error) {
	names, err := s.repo.DistinctNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient names: %w", err)
	}
	return names, nil
}

// SearchRecords lists every record when term is blank.
func (s *Service) SearchRecords(ctx context.Context, term string) ([]Record, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.ListRecords(ctx)
	}
	records, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	return records, nil
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute record statistics: %w", err)
	}
	return stats, nil
}

func (s *Service) Backup(ctx context.Context) (*Backup, error) {
	b, err := s.repo.Backup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to back up records: %w", err)
	}
	return b, nil
}

// Restore parses a backup document and replaces every record with its
// contents. It returns the number of records restored.
func (s *Service) Restore(ctx context.Context, data []byte) (int, error) {
	snap, err := ParseSnapshot(data)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.Restore(ctx, snap)
	if err != nil {
		return 0, fmt.Errorf("failed to restore records: %w", err)
	}
	return n, nil
}
