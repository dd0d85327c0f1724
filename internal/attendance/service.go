package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"siakad/internal/roster"
	"siakad/internal/token"
)

// Ledger is the store-side contract the service marks against. Both methods
// are insert-if-absent under the record's identity key.
type Ledger interface {
	MarkDaily(ctx context.Context, rec DailyRecord) (DailyRecord, bool, error)
	MarkLesson(ctx context.Context, rec LessonRecord) (LessonRecord, bool, error)
}

// Directory resolves students, classes and the active academic year. The
// roster repository implements it; tests substitute fakes.
type Directory interface {
	Student(ctx context.Context, id string) (*roster.Student, error)
	ClassByName(ctx context.Context, name string) (*roster.Class, error)
	ActiveYear(ctx context.Context) (*roster.AcademicYear, error)
}

// Service coordinates QR scan intake and batch marking.
type Service struct {
	codec  *token.Codec
	ledger Ledger
	dir    Directory
}

// NewService creates a service.
func NewService(codec *token.Codec, ledger Ledger, dir Directory) *Service {
	return &Service{codec: codec, ledger: ledger, dir: dir}
}

// IssueToken produces a fresh proof-of-presence token for a student.
func (s *Service) IssueToken(studentID string, now time.Time) (string, error) {
	return s.codec.Issue(studentID, now)
}

// ScanResult is the outcome of a successful scan. AlreadyPresent marks the
// idempotent case: the student had a daily record for today, the existing
// record is returned and nothing was written.
type ScanResult struct {
	AlreadyPresent bool           `json:"already_present"`
	Student        roster.Student `json:"student"`
	Record         DailyRecord    `json:"record"`
}

// ScanQR runs the scan pipeline: decode, freshness, student, year+class,
// mark. Each gate fails with its own sentinel so the operator sees why a
// scan was rejected. now is the server receive time and is the only clock
// consulted for freshness.
func (s *Service) ScanQR(ctx context.Context, rawToken, scannedBy string, now time.Time) (ScanResult, error) {
	if rawToken == "" {
		return ScanResult{}, ErrMissingToken
	}

	payload, err := s.codec.Decode(rawToken, now)
	if err != nil {
		return ScanResult{}, err
	}

	student, err := s.dir.Student(ctx, payload.StudentID)
	if err != nil {
		return ScanResult{}, err
	}
	if student == nil || !student.Active {
		return ScanResult{}, ErrUnknownStudent
	}

	year, err := s.dir.ActiveYear(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	if year == nil {
		return ScanResult{}, ErrNoActiveYear
	}

	if student.ClassName == "" {
		return ScanResult{}, ErrNoClassAssignment
	}
	class, err := s.dir.ClassByName(ctx, student.ClassName)
	if err != nil {
		return ScanResult{}, err
	}
	if class == nil {
		return ScanResult{}, ErrNoClassAssignment
	}

	rec, existed, err := s.ledger.MarkDaily(ctx, DailyRecord{
		StudentID:      student.ID,
		ClassID:        class.ID,
		AcademicYearID: year.ID,
		Date:           DateOf(now),
		Status:         StatusPresent,
		Note:           fmt.Sprintf("QR scan by %s", scannedBy),
		RecordedBy:     scannedBy,
	})
	if err != nil {
		return ScanResult{}, err
	}
	return ScanResult{AlreadyPresent: existed, Student: *student, Record: rec}, nil
}

// BatchEntry is one student's row in a class batch.
type BatchEntry struct {
	StudentID string `json:"student_id" binding:"required"`
	Status    Status `json:"status" binding:"required"`
	Note      string `json:"note"`
}

// BatchRequest marks a whole class for one date. When ScheduleID is set the
// per-lesson family is used, otherwise the daily family.
type BatchRequest struct {
	ClassID        string
	AcademicYearID string
	ScheduleID     string
	Date           time.Time
	RecordedBy     string
	Entries        []BatchEntry
}

// BatchResult reports what a batch did.
type BatchResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
}

// MarkBatch applies each entry as an independent idempotent mark. A bad row
// is logged and counted, never aborts the rest of the class.
func (s *Service) MarkBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	var res BatchResult
	for _, e := range req.Entries {
		if e.StudentID == "" || !ValidStatus(e.Status) {
			res.Failed++
			continue
		}

		var existed bool
		var err error
		if req.ScheduleID != "" {
			_, existed, err = s.ledger.MarkLesson(ctx, LessonRecord{
				StudentID:      e.StudentID,
				ClassID:        req.ClassID,
				AcademicYearID: req.AcademicYearID,
				ScheduleID:     req.ScheduleID,
				Date:           DateOf(req.Date),
				Status:         e.Status,
				Note:           e.Note,
				RecordedBy:     req.RecordedBy,
			})
		} else {
			_, existed, err = s.ledger.MarkDaily(ctx, DailyRecord{
				StudentID:      e.StudentID,
				ClassID:        req.ClassID,
				AcademicYearID: req.AcademicYearID,
				Date:           DateOf(req.Date),
				Status:         e.Status,
				Note:           e.Note,
				RecordedBy:     req.RecordedBy,
			})
		}
		if err != nil {
			log.Printf("batch mark failed for student %s: %v", e.StudentID, err)
			res.Failed++
			continue
		}
		if existed {
			res.Existing++
		} else {
			res.Created++
		}
	}
	return res, nil
}
