package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists bills in Postgres. The partial unique index on
// (student_id, title) over non-cancelled rows is the dedup guarantee for
// cycle generation; concurrent or repeated runs race at the store and
// exactly one insert per student wins.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateBill inserts a bill unless the student already carries a
// non-cancelled bill with the same title. The second return reports whether
// a row was actually created.
func (r *Repository) CreateBill(ctx context.Context, b Bill) (Bill, bool, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = StatusUnpaid
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO bills (id, student_id, title, amount, status, due_date)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (student_id, title) WHERE status <> 'cancelled' DO NOTHING
		RETURNING created_at
	`, b.ID, b.StudentID, b.Title, b.Amount, b.Status, b.DueDate)
	err := row.Scan(&b.CreatedAt)
	if err == nil {
		return b, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Bill{}, false, nil
	}
	return Bill{}, false, err
}

// Get returns a bill by id.
func (r *Repository) Get(ctx context.Context, id string) (Bill, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, title, amount, status, due_date, paid_at, created_at
		FROM bills WHERE id = $1
	`, id)
	var b Bill
	err := row.Scan(&b.ID, &b.StudentID, &b.Title, &b.Amount, &b.Status, &b.DueDate, &b.PaidAt, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	return b, err
}

// MarkPaid transitions an unpaid bill to paid. Only unpaid bills are
// payable; anything else reports ErrNotUnpaid.
func (r *Repository) MarkPaid(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bills SET status = 'paid', paid_at = $2
		WHERE id = $1 AND status = 'unpaid'
	`, id, at)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, id, res)
}

// Cancel transitions an unpaid bill to cancelled, freeing its cycle key.
func (r *Repository) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bills SET status = 'cancelled'
		WHERE id = $1 AND status = 'unpaid'
	`, id)
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, id, res)
}

func (r *Repository) checkTransition(ctx context.Context, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotUnpaid
}

// ListFilter narrows List results; zero values mean no filter.
type ListFilter struct {
	StudentID string
	Status    BillStatus
	Title     string
}

// List returns bills matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Bill, error) {
	query := `SELECT id, student_id, title, amount, status, due_date, paid_at, created_at FROM bills`
	args := []any{}
	clauses := []string{}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, "student_id = $"+itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, "status = $"+itoa(len(args)))
	}
	if f.Title != "" {
		args = append(args, f.Title)
		clauses = append(clauses, "title = $"+itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.StudentID, &b.Title, &b.Amount, &b.Status, &b.DueDate, &b.PaidAt, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UnpaidBills returns every unpaid bill, the aging report's input.
func (r *Repository) UnpaidBills(ctx context.Context) ([]Bill, error) {
	return r.List(ctx, ListFilter{Status: StatusUnpaid})
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
