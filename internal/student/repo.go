package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Student is a roster entry.
type Student struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RollNo     string    `json:"roll_no"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Repository persists the student roster in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, name, roll_no, department, year, COALESCE(phone, ''), created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.RollNo, &s.Department, &s.Year, &s.Phone, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// ListAll returns the full roster ordered by name.
func (r *Repository) ListAll(ctx context.Context) ([]Student, error) {
	return r.list(ctx, `SELECT `+studentColumns+` FROM students ORDER BY name ASC`)
}

// ListByDepartment returns roster entries for one department, ordered by name.
func (r *Repository) ListByDepartment(ctx context.Context, department string) ([]Student, error) {
	return r.list(ctx, `SELECT `+studentColumns+` FROM students WHERE department = $1 ORDER BY name ASC`, department)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// GetByID returns a single student, or nil when no row matches.
func (r *Repository) GetByID(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Insert creates a roster entry and returns it with generated fields.
func (r *Repository) Insert(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, roll_no, department, year, phone)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at, updated_at
	`, s.ID, s.Name, s.RollNo, s.Department, s.Year, s.Phone)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return Student{}, err
	}
	return s, nil
}

// Update overwrites the mutable fields of a roster entry.
// Returns nil when no row matches.
func (r *Repository) Update(ctx context.Context, id string, s Student) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE students
		SET name = $2, roll_no = $3, department = $4, year = $5, phone = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING `+studentColumns+`
	`, id, s.Name, s.RollNo, s.Department, s.Year, s.Phone)
	updated, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

// Delete removes a roster entry. Attendance records referencing the student
// are removed with it (ON DELETE CASCADE).
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListDepartments returns the distinct non-empty departments, sorted.
func (r *Repository) ListDepartments(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT department FROM students
		WHERE department <> ''
		ORDER BY department ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
