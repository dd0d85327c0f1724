package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"siakad/internal/roster"
)

func TestMonthlyCycle(t *testing.T) {
	def := MonthlyCycle(time.Date(2025, 3, 1, 0, 1, 0, 0, time.UTC), 150000, 10)
	assert.Equal(t, "SPP Maret 2025", def.Title)
	assert.Equal(t, int64(150000), def.Amount)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), def.DueDate)
	assert.Equal(t, roster.TargetAll, def.Target.Type)

	def = MonthlyCycle(time.Date(2025, 12, 15, 9, 0, 0, 0, time.UTC), 175000, 5)
	assert.Equal(t, "SPP Desember 2025", def.Title)
	assert.Equal(t, time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), def.DueDate)
}

func TestMonthlyCycleClampsDueDay(t *testing.T) {
	def := MonthlyCycle(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), 150000, 31)
	assert.Equal(t, 10, def.DueDate.Day())
}

func TestNextRun(t *testing.T) {
	// Mid-month rolls to the next month's 1st.
	next := NextRun(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 4, 1, 0, 1, 0, 0, time.UTC), next)

	// Exactly at the fire time schedules the following month, not itself.
	next = NextRun(time.Date(2025, 3, 1, 0, 1, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 4, 1, 0, 1, 0, 0, time.UTC), next)

	// December wraps the year.
	next = NextRun(time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC), next)
}
