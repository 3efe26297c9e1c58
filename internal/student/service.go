package student

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxYear bounds the academic year ordinal.
const MaxYear = 6

// ErrNotFound is returned when no roster entry matches the requested id.
var ErrNotFound = errors.New("student not found")

// Service validates roster mutations and fronts the repository.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Fields carries the caller-editable part of a roster entry.
type Fields struct {
	Name       string `json:"name"`
	RollNo     string `json:"roll_no"`
	Department string `json:"department"`
	Year       int    `json:"year"`
	Phone      string `json:"phone"`
}

func (f Fields) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("name required")
	}
	if strings.TrimSpace(f.RollNo) == "" {
		return errors.New("roll number required")
	}
	if strings.TrimSpace(f.Department) == "" {
		return errors.New("department required")
	}
	if f.Year < 1 || f.Year > MaxYear {
		return fmt.Errorf("year must be between 1 and %d", MaxYear)
	}
	return nil
}

// ListAll returns the full roster.
func (s *Service) ListAll(ctx context.Context) ([]Student, error) {
	return s.repo.ListAll(ctx)
}

// ListByDepartment returns students in one department.
func (s *Service) ListByDepartment(ctx context.Context, department string) ([]Student, error) {
	return s.repo.ListByDepartment(ctx, department)
}

// Get returns a student or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Student, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if st == nil {
		return Student{}, ErrNotFound
	}
	return *st, nil
}

// Create validates fields and inserts a roster entry.
func (s *Service) Create(ctx context.Context, f Fields) (Student, error) {
	if err := f.validate(); err != nil {
		return Student{}, err
	}
	return s.repo.Insert(ctx, Student{
		Name:       strings.TrimSpace(f.Name),
		RollNo:     strings.TrimSpace(f.RollNo),
		Department: strings.TrimSpace(f.Department),
		Year:       f.Year,
		Phone:      strings.TrimSpace(f.Phone),
	})
}

// Update validates fields and overwrites a roster entry.
func (s *Service) Update(ctx context.Context, id string, f Fields) (Student, error) {
	if err := f.validate(); err != nil {
		return Student{}, err
	}
	updated, err := s.repo.Update(ctx, id, Student{
		Name:       strings.TrimSpace(f.Name),
		RollNo:     strings.TrimSpace(f.RollNo),
		Department: strings.TrimSpace(f.Department),
		Year:       f.Year,
		Phone:      strings.TrimSpace(f.Phone),
	})
	if err != nil {
		return Student{}, err
	}
	if updated == nil {
		return Student{}, ErrNotFound
	}
	return *updated, nil
}

// Delete removes a roster entry or returns ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ListDepartments returns the distinct departments on the roster.
func (s *Service) ListDepartments(ctx context.Context) ([]string, error) {
	return s.repo.ListDepartments(ctx)
}
