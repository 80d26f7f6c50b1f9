package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/brightpath/agency-api/internal/models"
)

// LedgerRepository aggregates invoices, payments and tutor invoices for the
// fiscal-year reports.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

type statsRow struct {
	BookedRevenue       decimal.Decimal `db:"booked_revenue"`
	PaidRevenue         decimal.Decimal `db:"paid_revenue"`
	OutstandingInvoices int             `db:"outstanding_invoices"`
	OverdueInvoices     int             `db:"overdue_invoices"`
}

type expenditureRow struct {
	BookedExpenditure decimal.Decimal `db:"booked_expenditure"`
	PaidExpenditure   decimal.Decimal `db:"paid_expenditure"`
}

// Stats computes the fiscal-year financial summary.
func (r *LedgerRepository) Stats(ctx context.Context, start, end time.Time) (*models.AdminStats, error) {
	const revenueQuery = `SELECT
        COALESCE(SUM(amount) FILTER (WHERE status <> 'cancelled'), 0) AS booked_revenue,
        COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS paid_revenue,
        COUNT(*) FILTER (WHERE status IN ('sent', 'partial', 'approved')) AS outstanding_invoices,
        COUNT(*) FILTER (WHERE status = 'overdue') AS overdue_invoices
        FROM invoices WHERE created_at >= $1 AND created_at < $2`
	var revenue statsRow
	if err := r.db.GetContext(ctx, &revenue, revenueQuery, start, end); err != nil {
		return nil, fmt.Errorf("revenue stats: %w", err)
	}

	const expenditureQuery = `SELECT
        COALESCE(SUM(amount), 0) AS booked_expenditure,
        COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS paid_expenditure
        FROM tutor_invoices WHERE created_at >= $1 AND created_at < $2`
	var expenditure expenditureRow
	if err := r.db.GetContext(ctx, &expenditure, expenditureQuery, start, end); err != nil {
		return nil, fmt.Errorf("expenditure stats: %w", err)
	}

	return &models.AdminStats{
		BookedRevenue:       revenue.BookedRevenue,
		PaidRevenue:         revenue.PaidRevenue,
		BookedExpenditure:   expenditure.BookedExpenditure,
		PaidExpenditure:     expenditure.PaidExpenditure,
		OutstandingInvoices: revenue.OutstandingInvoices,
		OverdueInvoices:     revenue.OverdueInvoices,
	}, nil
}

// ParentLedgerRow is one invoice with its parent grouping keys.
type ParentLedgerRow struct {
	StudentID   string `db:"student_id"`
	StudentName string `db:"student_name"`
	models.LedgerInvoice
}

// ParentRows returns all parent invoices in the window ordered by student.
func (r *LedgerRepository) ParentRows(ctx context.Context, start, end time.Time) ([]ParentLedgerRow, error) {
	const query = `SELECT i.student_id, s.full_name AS student_name,
        i.id, i.invoice_number, i.kind, i.amount, i.status, i.created_at, NULL AS rejection_reason
        FROM invoices i
        JOIN students s ON s.id = i.student_id
        WHERE i.created_at >= $1 AND i.created_at < $2
        ORDER BY s.full_name, i.created_at`
	var rows []ParentLedgerRow
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("parent ledger rows: %w", err)
	}
	return rows, nil
}

// TutorLedgerRow is one tutor invoice with its grouping keys and the latest
// rejection note of the underlying timesheet, if it was ever rejected.
type TutorLedgerRow struct {
	TutorID   string `db:"tutor_id"`
	TutorName string `db:"tutor_name"`
	models.LedgerInvoice
}

// TutorRows returns all tutor invoices in the window ordered by tutor.
func (r *LedgerRepository) TutorRows(ctx context.Context, start, end time.Time) ([]TutorLedgerRow, error) {
	const query = `SELECT ti.tutor_id, t.full_name AS tutor_name,
        ti.id, ti.invoice_number, ti.amount, ti.status, ti.created_at,
        h.notes AS rejection_reason
        FROM tutor_invoices ti
        JOIN tutors t ON t.id = ti.tutor_id
        LEFT JOIN LATERAL (
            SELECT notes FROM timesheet_status_history
            WHERE weekly_timesheet_id = ti.weekly_timesheet_id AND to_status = 'rejected'
            ORDER BY created_at DESC LIMIT 1
        ) h ON TRUE
        WHERE ti.created_at >= $1 AND ti.created_at < $2
        ORDER BY t.full_name, ti.created_at`
	var rows []TutorLedgerRow
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("tutor ledger rows: %w", err)
	}
	return rows, nil
}
