package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied at startup. The compound unique indexes on the
// attendance and bill tables are the concurrency control for idempotent
// marking and billing generation, so they must exist before the server
// accepts any traffic.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS academic_years (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		full_name  TEXT NOT NULL,
		nisn       TEXT,
		class_name TEXT,
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_daily (
		id               TEXT PRIMARY KEY,
		student_id       TEXT NOT NULL,
		class_id         TEXT NOT NULL,
		academic_year_id TEXT NOT NULL,
		date             DATE NOT NULL,
		status           TEXT NOT NULL,
		note             TEXT NOT NULL DEFAULT '',
		recorded_by      TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS attendance_daily_key
		ON attendance_daily (student_id, date)`,
	`CREATE TABLE IF NOT EXISTS attendance_lesson (
		id               TEXT PRIMARY KEY,
		student_id       TEXT NOT NULL,
		class_id         TEXT NOT NULL,
		academic_year_id TEXT NOT NULL,
		schedule_id      TEXT NOT NULL,
		date             DATE NOT NULL,
		status           TEXT NOT NULL,
		note             TEXT NOT NULL DEFAULT '',
		recorded_by      TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS attendance_lesson_key
		ON attendance_lesson (student_id, date, schedule_id)`,
	`CREATE TABLE IF NOT EXISTS bills (
		id         TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		title      TEXT NOT NULL,
		amount     BIGINT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'unpaid',
		due_date   DATE NOT NULL,
		paid_at    TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// Cancelled bills are excluded so a cancelled cycle can be regenerated
	// under the same title.
	`CREATE UNIQUE INDEX IF NOT EXISTS bills_cycle_key
		ON bills (student_id, title) WHERE status <> 'cancelled'`,
}

// Migrate applies the schema idempotently.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
