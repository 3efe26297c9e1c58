package analytics

import (
	"context"
	"sync"
	"time"

	"qrattend/internal/attendance"
	"qrattend/internal/student"
)

// Roster provides the student snapshot.
type Roster interface {
	ListAll(ctx context.Context) ([]student.Student, error)
}

// Ledger provides the attendance snapshot.
type Ledger interface {
	ListAll(ctx context.Context, f attendance.Filter) ([]attendance.Record, error)
}

// Dashboard is one full recomputed projection. It is never persisted.
type Dashboard struct {
	Overview    Overview         `json:"overview"`
	Departments []DepartmentStat `json:"departments"`
	Trend       []MonthBucket    `json:"trend"`
	Top         []Standing       `json:"top_performers"`
	Low         []Standing       `json:"low_attendees"`
}

// Service recomputes analytics from fresh snapshots on every call. No
// caching, no incremental maintenance.
type Service struct {
	roster Roster
	ledger Ledger
}

// NewService creates a service over the roster and ledger.
func NewService(roster Roster, ledger Ledger) *Service {
	return &Service{roster: roster, ledger: ledger}
}

// snapshot fetches students and records concurrently and waits for both.
func (s *Service) snapshot(ctx context.Context) ([]student.Student, []attendance.Record, error) {
	var (
		wg       sync.WaitGroup
		students []student.Student
		records  []attendance.Record
		sErr     error
		rErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		students, sErr = s.roster.ListAll(ctx)
	}()
	go func() {
		defer wg.Done()
		records, rErr = s.ledger.ListAll(ctx, attendance.Filter{})
	}()
	wg.Wait()

	if sErr != nil {
		return nil, nil, sErr
	}
	if rErr != nil {
		return nil, nil, rErr
	}
	return students, records, nil
}

// Dashboard computes the full projection for the given trend window.
func (s *Service) Dashboard(ctx context.Context, windowMonths int) (Dashboard, error) {
	students, records, err := s.snapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	top, low := PerformanceRanking(Standings(students, records))
	return Dashboard{
		Overview:    ComputeOverview(students, records),
		Departments: DepartmentStats(students, records),
		Trend:       MonthlyTrend(records, windowMonths, time.Now()),
		Top:         top,
		Low:         low,
	}, nil
}

// DepartmentStats recomputes just the department table.
func (s *Service) DepartmentStats(ctx context.Context) ([]DepartmentStat, error) {
	students, records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return DepartmentStats(students, records), nil
}

// Trend recomputes just the monthly buckets.
func (s *Service) Trend(ctx context.Context, windowMonths int) ([]MonthBucket, error) {
	_, records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return MonthlyTrend(records, windowMonths, time.Now()), nil
}

// Ranking recomputes just the performer lists.
func (s *Service) Ranking(ctx context.Context) (top, low []Standing, err error) {
	students, records, err := s.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	top, low = PerformanceRanking(Standings(students, records))
	return top, low, nil
}
