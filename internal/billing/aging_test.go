package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBucketBoundaries(t *testing.T) {
	due := day(2025, 1, 1)
	cases := []struct {
		asOf   time.Time
		bucket string
	}{
		{day(2024, 12, 20), "current"}, // not yet due
		{day(2025, 1, 1), "current"},   // due today
		{day(2025, 1, 30), "current"},  // 29 days
		{day(2025, 1, 31), "watch"},    // 30 days
		{day(2025, 3, 1), "watch"},     // 59 days
		{day(2025, 3, 2), "delinquent"}, // 60 days
		{day(2025, 3, 5), "delinquent"}, // 63 days
	}

	for _, tc := range cases {
		rows := BucketBills([]Bill{{StudentID: "s1", Amount: 150000, Status: StatusUnpaid, DueDate: due}}, tc.asOf)
		assert.Len(t, rows, 1, "asOf %s", tc.asOf)
		row := rows[0]
		assert.Equal(t, int64(150000), row.TotalOutstanding)
		switch tc.bucket {
		case "current":
			assert.Equal(t, int64(150000), row.Current, "asOf %s", tc.asOf)
		case "watch":
			assert.Equal(t, int64(150000), row.Watch, "asOf %s", tc.asOf)
		case "delinquent":
			assert.Equal(t, int64(150000), row.Delinquent, "asOf %s", tc.asOf)
		}
	}
}

func TestBucketsPartitionTotalExactly(t *testing.T) {
	bills := []Bill{
		{StudentID: "s1", Amount: 150000, Status: StatusUnpaid, DueDate: day(2025, 1, 10)},
		{StudentID: "s1", Amount: 150000, Status: StatusUnpaid, DueDate: day(2025, 2, 10)},
		{StudentID: "s1", Amount: 75000, Status: StatusUnpaid, DueDate: day(2025, 3, 10)},
		{StudentID: "s1", Amount: 200000, Status: StatusUnpaid, DueDate: day(2025, 5, 10)}, // not yet due
		{StudentID: "s2", Amount: 150000, Status: StatusUnpaid, DueDate: day(2024, 11, 10)},
	}

	for _, asOf := range []time.Time{
		day(2024, 1, 1), day(2025, 2, 9), day(2025, 3, 12), day(2025, 4, 10), day(2026, 1, 1),
	} {
		rows := BucketBills(bills, asOf)
		assert.Len(t, rows, 2, "asOf %s", asOf)
		for _, row := range rows {
			assert.Equal(t, row.TotalOutstanding, row.Current+row.Watch+row.Delinquent,
				"buckets must partition the total for %s asOf %s", row.StudentID, asOf)
		}
	}
}

func TestBucketIgnoresSettledBills(t *testing.T) {
	paidAt := day(2025, 2, 1)
	bills := []Bill{
		{StudentID: "s1", Amount: 150000, Status: StatusPaid, DueDate: day(2025, 1, 10), PaidAt: &paidAt},
		{StudentID: "s1", Amount: 150000, Status: StatusCancelled, DueDate: day(2025, 1, 10)},
		{StudentID: "s2", Amount: 150000, Status: StatusUnpaid, DueDate: day(2025, 1, 10)},
	}

	rows := BucketBills(bills, day(2025, 2, 1))
	assert.Len(t, rows, 1)
	assert.Equal(t, "s2", rows[0].StudentID)
}

func TestBucketEachStudentAppearsOnce(t *testing.T) {
	var bills []Bill
	for i := 0; i < 5; i++ {
		bills = append(bills, Bill{StudentID: "s1", Amount: 10000, Status: StatusUnpaid, DueDate: day(2025, 1, 1+i)})
	}
	rows := BucketBills(bills, day(2025, 3, 1))
	assert.Len(t, rows, 1)
	assert.Equal(t, int64(50000), rows[0].TotalOutstanding)
}

func TestBucketEmptyInput(t *testing.T) {
	assert.Empty(t, BucketBills(nil, day(2025, 3, 1)))
}

// The scenario from the operations runbook: 59 days overdue is watch, 63 is
// delinquent.
func TestWatchToDelinquentTransition(t *testing.T) {
	bill := Bill{StudentID: "s1", Amount: 150000, Status: StatusUnpaid, DueDate: day(2025, 1, 1)}

	rows := BucketBills([]Bill{bill}, day(2025, 3, 1))
	assert.Equal(t, int64(150000), rows[0].Watch)
	assert.Zero(t, rows[0].Delinquent)

	rows = BucketBills([]Bill{bill}, day(2025, 3, 5))
	assert.Zero(t, rows[0].Watch)
	assert.Equal(t, int64(150000), rows[0].Delinquent)
}
