package patient

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	repo RepositoryInterface
}

func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Room = strings.TrimSpace(req.Room)
	req.Age = Age(strings.TrimSpace(string(req.Age)))

	if req.Name == "" {
		return nil, ErrMissingName
	}
	if req.Age == "" {
		return nil, ErrMissingAge
	}
	if _, ok := req.Age.Years(); !ok {
		return nil, ErrInvalidAge
	}
	if req.Room == "" {
		return nil, ErrMissingRoom
	}

	p, err := s.repo.Add(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	patients, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) ListActivePatients(ctx context.Context) ([]Patient, error) {
	patients, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active patients: %w", err)
	}
	return patients, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*Patient, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, ErrMissingName
	}
	if req.Room != nil && strings.TrimSpace(*req.Room) == "" {
		return nil, ErrMissingRoom
	}
	if req.Age != nil {
		if _, ok := req.Age.Years(); !ok {
			return nil, ErrInvalidAge
		}
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	p, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return p, nil
}

// DeactivatePatient soft-deletes a patient.
func (s *Service) DeactivatePatient(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete patient: %w", err)
	}
	return p, nil
}

// SearchPatients lists every patient when term is blank.
func (s *Service) SearchPatients(ctx context.Context, term string) ([]Patient, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.ListPatients(ctx)
	}
	patients, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute patient statistics: %w", err)
	}
	return stats, nil
}
