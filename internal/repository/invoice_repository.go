package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/brightpath/agency-api/internal/models"
)

// InvoiceRepository handles persistence of parent invoices and their payments.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, student_id, invoice_number, kind, amount, status, sessions_included,
        sent_at, due_date, scheduled_send_date, parent_claimed_paid,
        reminder_first_sent_at, reminder_second_sent_at, reminder_final_sent_at, created_at, updated_at`

const insertInvoiceQuery = `INSERT INTO invoices (id, student_id, invoice_number, kind, amount, status, sessions_included,
        sent_at, due_date, scheduled_send_date, parent_claimed_paid,
        reminder_first_sent_at, reminder_second_sent_at, reminder_final_sent_at, created_at, updated_at)
        VALUES (:id, :student_id, :invoice_number, :kind, :amount, :status, :sessions_included,
        :sent_at, :due_date, :scheduled_send_date, :parent_claimed_paid,
        :reminder_first_sent_at, :reminder_second_sent_at, :reminder_final_sent_at, :created_at, :updated_at)`

func insertInvoiceTx(ctx context.Context, tx *sqlx.Tx, invoice *models.Invoice) error {
	prepareInvoice(invoice)
	if _, err := tx.NamedExecContext(ctx, insertInvoiceQuery, invoice); err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func prepareInvoice(invoice *models.Invoice) {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now
}

// Create persists a new invoice.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	prepareInvoice(invoice)
	if _, err := r.db.NamedExecContext(ctx, insertInvoiceQuery, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// FindByID returns an invoice by its ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1", invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns invoices filtered by the provided criteria.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM invoices%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		invoiceColumns, clause, size, offset)
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM invoices" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// MarkOutstandingOverdue supersedes the student's open invoices ahead of a
// fresh package invoice.
func (r *InvoiceRepository) MarkOutstandingOverdue(ctx context.Context, studentID string) error {
	const query = `UPDATE invoices SET status = $2, updated_at = NOW()
        WHERE student_id = $1 AND status IN ($3, $4)`
	if _, err := r.db.ExecContext(ctx, query, studentID,
		models.InvoiceStatusOverdue, models.InvoiceStatusSent, models.InvoiceStatusPartial); err != nil {
		return fmt.Errorf("mark invoices overdue: %w", err)
	}
	return nil
}

// UpdateStatus rewrites an invoice status.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	const query = `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return nil
}

// ProcessScheduled promotes scheduled invoices whose send date has passed to
// sent, stamping sent_at and the due date. Already-sent invoices are untouched,
// so re-running the sweep is a no-op.
func (r *InvoiceRepository) ProcessScheduled(ctx context.Context, now time.Time, dueDays int) ([]models.Invoice, error) {
	query := fmt.Sprintf(`UPDATE invoices
        SET status = $1, sent_at = $2, due_date = $2 + make_interval(days => $3), scheduled_send_date = NULL, updated_at = NOW()
        WHERE status = $4 AND scheduled_send_date IS NOT NULL AND scheduled_send_date <= $2
        RETURNING %s`, invoiceColumns)
	var promoted []models.Invoice
	if err := r.db.SelectContext(ctx, &promoted, query,
		models.InvoiceStatusSent, now.UTC(), dueDays, models.InvoiceStatusScheduled); err != nil {
		return nil, fmt.Errorf("process scheduled invoices: %w", err)
	}
	return promoted, nil
}

// ListUnpaidSent returns sent invoices that still await payment, for the
// reminder and alert sweeps.
func (r *InvoiceRepository) ListUnpaidSent(ctx context.Context) ([]models.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices
        WHERE status = $1 AND sent_at IS NOT NULL ORDER BY sent_at`, invoiceColumns)
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, models.InvoiceStatusSent); err != nil {
		return nil, fmt.Errorf("list unpaid invoices: %w", err)
	}
	return invoices, nil
}

// ReminderStage identifies one of the three one-shot reminder thresholds.
type ReminderStage int

const (
	ReminderFirst ReminderStage = iota
	ReminderSecond
	ReminderFinal
)

func (s ReminderStage) column() string {
	switch s {
	case ReminderSecond:
		return "reminder_second_sent_at"
	case ReminderFinal:
		return "reminder_final_sent_at"
	default:
		return "reminder_first_sent_at"
	}
}

// StampReminder records that a reminder stage fired. The guard on the column
// being NULL makes the stamp idempotent under concurrent sweeps; it reports
// whether this call won the stamp.
func (r *InvoiceRepository) StampReminder(ctx context.Context, id string, stage ReminderStage, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE invoices SET %s = $2, updated_at = NOW() WHERE id = $1 AND %s IS NULL`,
		stage.column(), stage.column())
	res, err := r.db.ExecContext(ctx, query, id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("stamp reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("stamp reminder: %w", err)
	}
	return affected == 1, nil
}

// SetParentClaimedPaid records the parent's self-reported payment flag.
func (r *InvoiceRepository) SetParentClaimedPaid(ctx context.Context, id string, claimed bool) error {
	const query = `UPDATE invoices SET parent_claimed_paid = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, claimed); err != nil {
		return fmt.Errorf("set parent claimed paid: %w", err)
	}
	return nil
}

// ApplyPaymentTx records a payment and recomputes the invoice status from the
// covered total in one transaction.
func (r *InvoiceRepository) ApplyPaymentTx(ctx context.Context, invoice *models.Invoice, payment *models.Payment) (models.InvoiceStatus, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin apply payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.ReceivedAt.IsZero() {
		payment.ReceivedAt = now
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	const insertPayment = `INSERT INTO payments (id, invoice_id, tutor_invoice_id, student_id, amount, method, reference, received_at, created_at)
        VALUES (:id, :invoice_id, :tutor_invoice_id, :student_id, :amount, :method, :reference, :received_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertPayment, payment); err != nil {
		return "", fmt.Errorf("insert payment: %w", err)
	}

	const sumQuery = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`
	var covered decimal.Decimal
	if err := tx.GetContext(ctx, &covered, sumQuery, invoice.ID); err != nil {
		return "", fmt.Errorf("sum payments: %w", err)
	}

	status := models.InvoiceStatusPartial
	if covered.GreaterThanOrEqual(invoice.Amount) {
		status = models.InvoiceStatusPaid
	}
	const updateStatus = `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateStatus, invoice.ID, status); err != nil {
		return "", fmt.Errorf("update invoice status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit apply payment: %w", err)
	}
	return status, nil
}
