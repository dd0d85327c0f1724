package billing

import (
	"context"
	"errors"
	"log"
	"time"

	"siakad/internal/roster"
)

// Store is the bill persistence contract the generator writes through.
// CreateBill must be insert-if-absent on the (student, title) cycle key.
type Store interface {
	CreateBill(ctx context.Context, b Bill) (Bill, bool, error)
	UnpaidBills(ctx context.Context) ([]Bill, error)
}

// Population resolves the students a cycle targets.
type Population interface {
	ActiveStudents(ctx context.Context, target roster.Target) ([]roster.Student, error)
}

// CycleDefinition describes one billing run. Title uniquely identifies the
// cycle, e.g. "SPP Maret 2025".
type CycleDefinition struct {
	Title   string        `json:"title" binding:"required"`
	Amount  int64         `json:"amount" binding:"required"`
	DueDate time.Time     `json:"due_date" binding:"required"`
	Target  roster.Target `json:"target"`
}

// CycleResult reports what one generation run did.
type CycleResult struct {
	Title   string `json:"title"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Service generates billing cycles and computes receivables aging.
type Service struct {
	store Store
	pop   Population
}

// NewService creates a service.
func NewService(store Store, pop Population) *Service {
	return &Service{store: store, pop: pop}
}

// GenerateCycle creates one unpaid bill per targeted student. Students that
// already carry a non-cancelled bill under the cycle title are skipped by
// the store's uniqueness constraint, which makes the whole run safe to
// retry after a crash or a duplicate scheduler fire. A store error for one
// student is logged and isolated; the rest of the population still gets
// billed.
func (s *Service) GenerateCycle(ctx context.Context, def CycleDefinition) (CycleResult, error) {
	if def.Title == "" {
		return CycleResult{}, errors.New("cycle title required")
	}
	if def.Amount <= 0 {
		return CycleResult{}, errors.New("amount must be positive")
	}
	if def.DueDate.IsZero() {
		return CycleResult{}, errors.New("due date required")
	}

	students, err := s.pop.ActiveStudents(ctx, def.Target)
	if err != nil {
		return CycleResult{}, err
	}

	res := CycleResult{Title: def.Title}
	for _, st := range students {
		_, created, err := s.store.CreateBill(ctx, Bill{
			StudentID: st.ID,
			Title:     def.Title,
			Amount:    def.Amount,
			Status:    StatusUnpaid,
			DueDate:   def.DueDate,
		})
		if err != nil {
			log.Printf("bill create failed for student %s in %q: %v", st.ID, def.Title, err)
			res.Failed++
			continue
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}
