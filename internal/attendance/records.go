package attendance

import (
	"errors"
	"time"
)

// Status is the daily state recorded for a student.
type Status string

const (
	StatusPresent    Status = "Present"
	StatusSick       Status = "Sick"
	StatusPermission Status = "Permission"
	StatusAbsent     Status = "Absent"
)

// ValidStatus reports whether s is one of the four recordable states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPresent, StatusSick, StatusPermission, StatusAbsent:
		return true
	}
	return false
}

var (
	ErrMissingToken      = errors.New("token required")
	ErrUnknownStudent    = errors.New("student not found")
	ErrNoActiveYear      = errors.New("no active academic year")
	ErrNoClassAssignment = errors.New("student has no valid class assignment")
)

// DailyRecord is one attendance fact per (student, day). It is a separate
// family from LessonRecord: the two never share an identity key, so a daily
// mark can never collide with a per-lesson mark.
type DailyRecord struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	ClassID        string    `json:"class_id"`
	AcademicYearID string    `json:"academic_year_id"`
	Date           time.Time `json:"date"`
	Status         Status    `json:"status"`
	Note           string    `json:"note"`
	RecordedBy     string    `json:"recorded_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// LessonRecord is one attendance fact per (student, day, schedule slot).
type LessonRecord struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	ClassID        string    `json:"class_id"`
	AcademicYearID string    `json:"academic_year_id"`
	ScheduleID     string    `json:"schedule_id"`
	Date           time.Time `json:"date"`
	Status         Status    `json:"status"`
	Note           string    `json:"note"`
	RecordedBy     string    `json:"recorded_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// DateOf truncates t to its calendar day in UTC, the granularity of both
// identity keys.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
