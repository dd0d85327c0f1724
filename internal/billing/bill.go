package billing

import (
	"errors"
	"time"
)

// BillStatus is the lifecycle state of a charge. Paid and cancelled are
// terminal.
type BillStatus string

const (
	StatusUnpaid    BillStatus = "unpaid"
	StatusPaid      BillStatus = "paid"
	StatusCancelled BillStatus = "cancelled"
)

var (
	ErrBillNotFound = errors.New("bill not found")
	ErrNotUnpaid    = errors.New("bill is not unpaid")
)

// Bill is one charge against one student. At most one non-cancelled bill may
// exist per (student, title); a cancelled bill never blocks regeneration
// under the same title.
type Bill struct {
	ID        string     `json:"id"`
	StudentID string     `json:"student_id"`
	Title     string     `json:"title"`
	Amount    int64      `json:"amount"` // rupiah
	Status    BillStatus `json:"status"`
	DueDate   time.Time  `json:"due_date"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
