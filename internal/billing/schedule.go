package billing

import (
	"fmt"
	"time"

	"siakad/internal/roster"
)

var monthNames = []string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthlyCycle builds the recurring tuition definition for the month of now:
// title "SPP <bulan> <tahun>", due on dueDay of the same month, targeting
// every active student.
func MonthlyCycle(now time.Time, amount int64, dueDay int) CycleDefinition {
	if dueDay < 1 || dueDay > 28 {
		dueDay = 10
	}
	y, m, _ := now.UTC().Date()
	return CycleDefinition{
		Title:   fmt.Sprintf("SPP %s %d", monthNames[m-1], y),
		Amount:  amount,
		DueDate: time.Date(y, m, dueDay, 0, 0, 0, 0, time.UTC),
		Target:  roster.Target{Type: roster.TargetAll},
	}
}

// NextRun returns the next 1st of the month at 00:01 UTC after now, the
// moment the monthly job fires.
func NextRun(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	run := time.Date(y, m, 1, 0, 1, 0, 0, time.UTC)
	if !run.After(now.UTC()) {
		run = run.AddDate(0, 1, 0)
	}
	return run
}
