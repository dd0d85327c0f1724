package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance records in Postgres. Idempotency is
// enforced by the compound unique indexes on (student_id, date) and
// (student_id, date, schedule_id): concurrent marks for the same key race
// at the store, exactly one insert wins, and the loser reads back the
// winner's row. Application code never does check-then-insert.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// MarkDaily inserts a daily record unless one already exists for the
// (student, day) key. The second return reports whether the returned record
// pre-existed.
func (r *Repository) MarkDaily(ctx context.Context, rec DailyRecord) (DailyRecord, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Date = DateOf(rec.Date)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_daily (id, student_id, class_id, academic_year_id, date, status, note, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (student_id, date) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.ClassID, rec.AcademicYearID, rec.Date, rec.Status, rec.Note, rec.RecordedBy)
	err := row.Scan(&rec.CreatedAt)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return DailyRecord{}, false, err
	}

	// Insert lost to an existing row; hand that row back.
	existing, err := r.dailyByKey(ctx, rec.StudentID, rec.Date)
	if err != nil {
		return DailyRecord{}, false, err
	}
	return existing, true, nil
}

func (r *Repository) dailyByKey(ctx context.Context, studentID string, date time.Time) (DailyRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, class_id, academic_year_id, date, status, note, recorded_by, created_at
		FROM attendance_daily WHERE student_id = $1 AND date = $2
	`, studentID, date)
	var rec DailyRecord
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.AcademicYearID, &rec.Date,
		&rec.Status, &rec.Note, &rec.RecordedBy, &rec.CreatedAt)
	return rec, err
}

// MarkLesson inserts a per-lesson record unless one already exists for the
// (student, day, schedule) key.
func (r *Repository) MarkLesson(ctx context.Context, rec LessonRecord) (LessonRecord, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Date = DateOf(rec.Date)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_lesson (id, student_id, class_id, academic_year_id, schedule_id, date, status, note, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (student_id, date, schedule_id) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.ClassID, rec.AcademicYearID, rec.ScheduleID, rec.Date, rec.Status, rec.Note, rec.RecordedBy)
	err := row.Scan(&rec.CreatedAt)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return LessonRecord{}, false, err
	}

	existing, err := r.lessonByKey(ctx, rec.StudentID, rec.Date, rec.ScheduleID)
	if err != nil {
		return LessonRecord{}, false, err
	}
	return existing, true, nil
}

func (r *Repository) lessonByKey(ctx context.Context, studentID string, date time.Time, scheduleID string) (LessonRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, class_id, academic_year_id, schedule_id, date, status, note, recorded_by, created_at
		FROM attendance_lesson WHERE student_id = $1 AND date = $2 AND schedule_id = $3
	`, studentID, date, scheduleID)
	var rec LessonRecord
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.AcademicYearID, &rec.ScheduleID,
		&rec.Date, &rec.Status, &rec.Note, &rec.RecordedBy, &rec.CreatedAt)
	return rec, err
}

// ListDaily returns a class's daily records for one date.
func (r *Repository) ListDaily(ctx context.Context, classID string, date time.Time) ([]DailyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, class_id, academic_year_id, date, status, note, recorded_by, created_at
		FROM attendance_daily WHERE class_id = $1 AND date = $2
		ORDER BY student_id
	`, classID, DateOf(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyRecord
	for rows.Next() {
		var rec DailyRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.AcademicYearID, &rec.Date,
			&rec.Status, &rec.Note, &rec.RecordedBy, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListLesson returns the records for one schedule slot on one date.
func (r *Repository) ListLesson(ctx context.Context, scheduleID string, date time.Time) ([]LessonRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, class_id, academic_year_id, schedule_id, date, status, note, recorded_by, created_at
		FROM attendance_lesson WHERE schedule_id = $1 AND date = $2
		ORDER BY student_id
	`, scheduleID, DateOf(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LessonRecord
	for rows.Next() {
		var rec LessonRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.AcademicYearID, &rec.ScheduleID,
			&rec.Date, &rec.Status, &rec.Note, &rec.RecordedBy, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StudentSummary counts a student's records per status across both families,
// for report cards.
func (r *Repository) StudentSummary(ctx context.Context, studentID string) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM (
			SELECT status FROM attendance_daily WHERE student_id = $1
			UNION ALL
			SELECT status FROM attendance_lesson WHERE student_id = $1
		) s GROUP BY status
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := map[Status]int{StatusPresent: 0, StatusSick: 0, StatusPermission: 0, StatusAbsent: 0}
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		summary[s] = n
	}
	return summary, rows.Err()
}
