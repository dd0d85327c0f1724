package billing

import (
	"context"
	"sort"
	"time"
)

// AgingRow is one student's outstanding balance bucketed by days overdue.
// The three buckets always partition TotalOutstanding exactly.
type AgingRow struct {
	StudentID        string `json:"student_id"`
	TotalOutstanding int64  `json:"total_outstanding"`
	Current          int64  `json:"current"`    // < 30 days overdue, including not yet due
	Watch            int64  `json:"watch"`      // 30-59 days
	Delinquent       int64  `json:"delinquent"` // >= 60 days
}

// AgingReport buckets every unpaid bill by age as of the given date.
func (s *Service) AgingReport(ctx context.Context, asOf time.Time) ([]AgingRow, error) {
	bills, err := s.store.UnpaidBills(ctx)
	if err != nil {
		return nil, err
	}
	return BucketBills(bills, asOf), nil
}

// BucketBills is the pure aggregation: every student with at least one
// unpaid bill appears exactly once, each bill lands in exactly one bucket,
// and a bill that is not yet due still counts as current. Paid or cancelled
// bills are ignored. Rows come back sorted by student id for stable output;
// callers may re-sort.
func BucketBills(bills []Bill, asOf time.Time) []AgingRow {
	asOfDay := truncateDay(asOf)
	byStudent := make(map[string]*AgingRow)

	for _, b := range bills {
		if b.Status != StatusUnpaid {
			continue
		}
		row, ok := byStudent[b.StudentID]
		if !ok {
			row = &AgingRow{StudentID: b.StudentID}
			byStudent[b.StudentID] = row
		}

		ageDays := int(asOfDay.Sub(truncateDay(b.DueDate)).Hours() / 24)
		switch {
		case ageDays < 30:
			row.Current += b.Amount
		case ageDays < 60:
			row.Watch += b.Amount
		default:
			row.Delinquent += b.Amount
		}
		row.TotalOutstanding += b.Amount
	}

	out := make([]AgingRow, 0, len(byStudent))
	for _, row := range byStudent {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
