package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScanOutcomes counts QR scans by result: marked, already_present, or a
	// rejection reason.
	ScanOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siakad",
		Name:      "scan_outcomes_total",
		Help:      "QR attendance scans by outcome.",
	}, []string{"outcome"})

	// AttendanceMarks counts ledger writes by family and status.
	AttendanceMarks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siakad",
		Name:      "attendance_marks_total",
		Help:      "Attendance records created, by family and status.",
	}, []string{"family", "status"})

	// BillsGenerated counts billing cycle outcomes per run.
	BillsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siakad",
		Name:      "bills_generated_total",
		Help:      "Bills created or skipped by cycle generation.",
	}, []string{"result"})
)

// Register wires the collectors into the default registry promhttp serves.
func Register() {
	prometheus.MustRegister(ScanOutcomes, AttendanceMarks, BillsGenerated)
}
