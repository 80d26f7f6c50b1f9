package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/brightpath/agency-api/internal/models"
)

// TutorInvoiceRepository handles persistence of tutor payables.
type TutorInvoiceRepository struct {
	db *sqlx.DB
}

// NewTutorInvoiceRepository constructs the repository.
func NewTutorInvoiceRepository(db *sqlx.DB) *TutorInvoiceRepository {
	return &TutorInvoiceRepository{db: db}
}

const tutorInvoiceColumns = `id, tutor_id, weekly_timesheet_id, invoice_number, amount, hours_worked, status, paid_at, created_at`

// FindByID returns a tutor invoice by its ID.
func (r *TutorInvoiceRepository) FindByID(ctx context.Context, id string) (*models.TutorInvoice, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_invoices WHERE id = $1", tutorInvoiceColumns)
	var invoice models.TutorInvoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByTimesheet returns the invoice issued for a timesheet, if any.
func (r *TutorInvoiceRepository) FindByTimesheet(ctx context.Context, timesheetID string) (*models.TutorInvoice, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_invoices WHERE weekly_timesheet_id = $1", tutorInvoiceColumns)
	var invoice models.TutorInvoice
	if err := r.db.GetContext(ctx, &invoice, query, timesheetID); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns tutor invoices, optionally scoped by tutor and status.
func (r *TutorInvoiceRepository) List(ctx context.Context, tutorID string, status models.TutorInvoiceStatus) ([]models.TutorInvoice, error) {
	var conditions []string
	var args []interface{}
	if tutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, tutorID)
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, status)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf("SELECT %s FROM tutor_invoices%s ORDER BY created_at DESC", tutorInvoiceColumns, clause)
	var invoices []models.TutorInvoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, fmt.Errorf("list tutor invoices: %w", err)
	}
	return invoices, nil
}

// MarkPaid transitions an approved invoice to paid. The status guard makes the
// transition fail with sql.ErrNoRows if the invoice is not approved.
func (r *TutorInvoiceRepository) MarkPaid(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE tutor_invoices SET status = $2, paid_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.TutorInvoiceStatusPaid, at.UTC(), models.TutorInvoiceStatusApproved)
	if err != nil {
		return fmt.Errorf("mark tutor invoice paid: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
