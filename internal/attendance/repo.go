package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Statuses accepted on a ledger entry.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// StudentRef is the identity slice of a student carried on joined records.
type StudentRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RollNo     string `json:"roll_no"`
	Department string `json:"department"`
	Year       int    `json:"year"`
}

// Record is one attendance ledger entry. Records are append-only.
type Record struct {
	ID        string      `json:"id"`
	StudentID string      `json:"student_id"`
	Lecture   string      `json:"lecture_name"`
	Date      string      `json:"date"` // YYYY-MM-DD
	Time      string      `json:"time"` // HH:MM:SS
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	Student   *StudentRef `json:"student,omitempty"`
}

// Filter narrows ListAll results. Zero values mean "no constraint".
type Filter struct {
	Department string
	Date       string // exact calendar date, YYYY-MM-DD
	Lecture    string // substring match, case-insensitive
	Status     string
	Limit      int
}

// StudentFilter narrows ListForStudent results.
type StudentFilter struct {
	StartDate string
	EndDate   string
	Limit     int
}

// Repository persists the attendance ledger in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `
	r.id, r.student_id, r.lecture_name,
	to_char(r.date, 'YYYY-MM-DD'), to_char(r.time, 'HH24:MI:SS'),
	r.status, r.created_at,
	s.id, s.name, s.roll_no, s.department, s.year`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var ref StudentRef
	err := row.Scan(
		&rec.ID, &rec.StudentID, &rec.Lecture, &rec.Date, &rec.Time, &rec.Status, &rec.CreatedAt,
		&ref.ID, &ref.Name, &ref.RollNo, &ref.Department, &ref.Year,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Student = &ref
	return rec, nil
}

// Insert appends a ledger entry and returns it joined with its student.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO attendance_records (id, student_id, lecture_name, date, time, status)
			VALUES ($1, $2, $3, $4::date, $5::time, $6)
			RETURNING *
		)
		SELECT `+recordColumns+`
		FROM inserted r
		JOIN students s ON s.id = r.student_id
	`, rec.ID, rec.StudentID, rec.Lecture, rec.Date, rec.Time, rec.Status)
	return scanRecord(row)
}

// ListForStudent returns a student's records, newest first.
func (r *Repository) ListForStudent(ctx context.Context, studentID string, f StudentFilter) ([]Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM attendance_records r
		JOIN students s ON s.id = r.student_id
		WHERE r.student_id = $1`
	args := []any{studentID}
	if f.StartDate != "" {
		args = append(args, f.StartDate)
		query += fmt.Sprintf(" AND r.date >= $%d::date", len(args))
	}
	if f.EndDate != "" {
		args = append(args, f.EndDate)
		query += fmt.Sprintf(" AND r.date <= $%d::date", len(args))
	}
	query += " ORDER BY r.date DESC, r.time DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.listRecords(ctx, query, args...)
}

// ListAll returns ledger entries joined with student identity, newest first.
func (r *Repository) ListAll(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM attendance_records r
		JOIN students s ON s.id = r.student_id`
	var clauses []string
	var args []any
	if f.Department != "" {
		args = append(args, f.Department)
		clauses = append(clauses, fmt.Sprintf("s.department = $%d", len(args)))
	}
	if f.Date != "" {
		args = append(args, f.Date)
		clauses = append(clauses, fmt.Sprintf("r.date = $%d::date", len(args)))
	}
	if f.Lecture != "" {
		args = append(args, "%"+f.Lecture+"%")
		clauses = append(clauses, fmt.Sprintf("r.lecture_name ILIKE $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY r.date DESC, r.time DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.listRecords(ctx, query, args...)
}

func (r *Repository) listRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ExistsForDate reports whether the student already has a record on the given
// calendar date. This is the duplicate probe used before every scan insert;
// there is deliberately no unique constraint backing it.
func (r *Repository) ExistsForDate(ctx context.Context, studentID, date string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM attendance_records
		WHERE student_id = $1 AND date = $2::date
		LIMIT 1
	`, studentID, date).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// CountsForStudent returns total and present record counts for one student.
func (r *Repository) CountsForStudent(ctx context.Context, studentID string) (total, present int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'present')
		FROM attendance_records
		WHERE student_id = $1
	`, studentID).Scan(&total, &present)
	return total, present, err
}
