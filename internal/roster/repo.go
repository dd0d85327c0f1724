package roster

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Student is the person being tracked by attendance and billing.
type Student struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	NISN      string `json:"nisn"`
	ClassName string `json:"class_name"`
	Active    bool   `json:"active"`
}

// Class is a homeroom section, e.g. "7A".
type Class struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AcademicYear is a school term; at most one is active at a time.
type AcademicYear struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// TargetType selects a billing population.
type TargetType string

const (
	TargetAll   TargetType = "all"   // every active student
	TargetClass TargetType = "class" // one class by name, e.g. "7A"
	TargetLevel TargetType = "level" // class-name prefix, e.g. "7" matches 7A, 7B
)

// Target names a student population.
type Target struct {
	Type  TargetType `json:"type"`
	Value string     `json:"value,omitempty"`
}

// Repository reads roster data from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Student returns a student by id, or nil when not found.
func (r *Repository) Student(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, COALESCE(nisn, ''), COALESCE(class_name, ''), active
		FROM students WHERE id = $1
	`, id)
	var s Student
	if err := row.Scan(&s.ID, &s.Username, &s.FullName, &s.NISN, &s.ClassName, &s.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ClassByName returns a class by its display name, or nil when not found.
func (r *Repository) ClassByName(ctx context.Context, name string) (*Class, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name FROM classes WHERE name = $1`, name)
	var c Class
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ActiveYear returns the currently active academic year, or nil when none
// is configured.
func (r *Repository) ActiveYear(ctx context.Context) (*AcademicYear, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, active FROM academic_years WHERE active = TRUE LIMIT 1
	`)
	var y AcademicYear
	if err := row.Scan(&y.ID, &y.Name, &y.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &y, nil
}

// ActiveStudents returns the active students matching a target population.
func (r *Repository) ActiveStudents(ctx context.Context, target Target) ([]Student, error) {
	query := `SELECT id, username, full_name, COALESCE(nisn, ''), COALESCE(class_name, ''), active
		FROM students WHERE active = TRUE`
	args := []any{}
	switch target.Type {
	case TargetAll, "":
	case TargetClass:
		query += ` AND class_name = $1`
		args = append(args, target.Value)
	case TargetLevel:
		query += ` AND class_name LIKE $1`
		args = append(args, target.Value+"%")
	default:
		return nil, errors.New("invalid target type")
	}
	query += ` ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Username, &s.FullName, &s.NISN, &s.ClassName, &s.Active); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddStudent inserts a student, generating an id when empty. Used by seeds
// and admin tooling.
func (r *Repository) AddStudent(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, username, full_name, nisn, class_name, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (username) DO NOTHING
	`, s.ID, s.Username, s.FullName, s.NISN, s.ClassName, s.Active)
	return s, err
}
