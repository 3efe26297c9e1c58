package attendance

import (
	"context"
	"errors"
	"math"
	"time"
)

// Stats summarizes one student's ledger.
type Stats struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Percentage int `json:"percentage"`
}

// Percentage computes round(present/total*100), 0 when total is 0.
func Percentage(present, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}

// Service fronts the ledger repository. Entries are append-only: there is no
// update path, and the same-day duplicate guard belongs to the scan pipeline,
// not the ledger.
type Service struct {
	repo           *Repository
	defaultLecture string
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, defaultLecture string) *Service {
	if defaultLecture == "" {
		defaultLecture = "General Lecture"
	}
	return &Service{repo: repo, defaultLecture: defaultLecture}
}

// Mark appends a ledger entry stamped with the current local date and time.
func (s *Service) Mark(ctx context.Context, studentID, lecture, status string) (Record, error) {
	if studentID == "" {
		return Record{}, errors.New("student id required")
	}
	if lecture == "" {
		lecture = s.defaultLecture
	}
	if status == "" {
		status = StatusPresent
	}
	if status != StatusPresent && status != StatusAbsent {
		return Record{}, errors.New("status must be present or absent")
	}
	now := time.Now()
	return s.repo.Insert(ctx, Record{
		StudentID: studentID,
		Lecture:   lecture,
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05"),
		Status:    status,
	})
}

// ListForStudent returns a student's records, newest first.
func (s *Service) ListForStudent(ctx context.Context, studentID string, f StudentFilter) ([]Record, error) {
	return s.repo.ListForStudent(ctx, studentID, f)
}

// ListAll returns filtered ledger entries, newest first.
func (s *Service) ListAll(ctx context.Context, f Filter) ([]Record, error) {
	return s.repo.ListAll(ctx, f)
}

// ExistsForDate reports whether the student has a record on the given date.
func (s *Service) ExistsForDate(ctx context.Context, studentID, date string) (bool, error) {
	return s.repo.ExistsForDate(ctx, studentID, date)
}

// Stats returns present/total/percentage for one student.
func (s *Service) Stats(ctx context.Context, studentID string) (Stats, error) {
	total, present, err := s.repo.CountsForStudent(ctx, studentID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Total:      total,
		Present:    present,
		Absent:     total - present,
		Percentage: Percentage(present, total),
	}, nil
}
