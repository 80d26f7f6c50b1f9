package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/brightpath/agency-api/internal/models"
)

// AlertRepository handles persistence of session-logging and invoice-payment
// alerts plus their compliance aggregates.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const sessionAlertColumns = `id, session_occurrence_id, tutor_id, status, hours_late, dismissed_by, dismiss_reason, resolved_at, created_at`

const invoiceAlertColumns = `id, invoice_id, student_id, status, days_overdue, dismissed_by, dismiss_reason, resolved_at, created_at`

// CreateSessionAlert persists a new pending session-logging alert.
func (r *AlertRepository) CreateSessionAlert(ctx context.Context, alert *models.SessionLoggingAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Status == "" {
		alert.Status = models.AlertStatusPending
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO session_logging_alerts (id, session_occurrence_id, tutor_id, status, hours_late, dismissed_by, dismiss_reason, resolved_at, created_at)
        VALUES (:id, :session_occurrence_id, :tutor_id, :status, :hours_late, :dismissed_by, :dismiss_reason, :resolved_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create session alert: %w", err)
	}
	return nil
}

// FindPendingSessionAlert returns the pending alert for an occurrence, if any.
func (r *AlertRepository) FindPendingSessionAlert(ctx context.Context, occurrenceID string) (*models.SessionLoggingAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_logging_alerts
        WHERE session_occurrence_id = $1 AND status = $2 LIMIT 1`, sessionAlertColumns)
	var alert models.SessionLoggingAlert
	if err := r.db.GetContext(ctx, &alert, query, occurrenceID, models.AlertStatusPending); err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindSessionAlertByID returns a session alert by its ID.
func (r *AlertRepository) FindSessionAlertByID(ctx context.Context, id string) (*models.SessionLoggingAlert, error) {
	query := fmt.Sprintf("SELECT %s FROM session_logging_alerts WHERE id = $1", sessionAlertColumns)
	var alert models.SessionLoggingAlert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, err
	}
	return &alert, nil
}

// ResolveSessionAlert marks a pending alert resolved with the observed lateness.
func (r *AlertRepository) ResolveSessionAlert(ctx context.Context, id string, hoursLate decimal.Decimal, at time.Time) error {
	const query = `UPDATE session_logging_alerts SET status = $2, hours_late = $3, resolved_at = $4
        WHERE id = $1 AND status = $5`
	if _, err := r.db.ExecContext(ctx, query, id, models.AlertStatusResolved, hoursLate, at.UTC(), models.AlertStatusPending); err != nil {
		return fmt.Errorf("resolve session alert: %w", err)
	}
	return nil
}

// DismissSessionAlert records an explicit admin dismissal.
func (r *AlertRepository) DismissSessionAlert(ctx context.Context, id, dismissedBy, reason string) error {
	const query = `UPDATE session_logging_alerts SET status = $2, dismissed_by = $3, dismiss_reason = $4, resolved_at = NOW()
        WHERE id = $1 AND status = $5`
	if _, err := r.db.ExecContext(ctx, query, id, models.AlertStatusDismissed, dismissedBy, reason, models.AlertStatusPending); err != nil {
		return fmt.Errorf("dismiss session alert: %w", err)
	}
	return nil
}

// ListSessionAlerts returns session alerts, optionally filtered by status.
func (r *AlertRepository) ListSessionAlerts(ctx context.Context, status models.AlertStatus) ([]models.SessionLoggingAlert, error) {
	query := fmt.Sprintf("SELECT %s FROM session_logging_alerts", sessionAlertColumns)
	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	var alerts []models.SessionLoggingAlert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("list session alerts: %w", err)
	}
	return alerts, nil
}

// CreateInvoiceAlert persists a new pending invoice-payment alert.
func (r *AlertRepository) CreateInvoiceAlert(ctx context.Context, alert *models.InvoicePaymentAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Status == "" {
		alert.Status = models.AlertStatusPending
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO invoice_payment_alerts (id, invoice_id, student_id, status, days_overdue, dismissed_by, dismiss_reason, resolved_at, created_at)
        VALUES (:id, :invoice_id, :student_id, :status, :days_overdue, :dismissed_by, :dismiss_reason, :resolved_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create invoice alert: %w", err)
	}
	return nil
}

// ExistsInvoiceAlert checks whether any alert exists for an invoice.
func (r *AlertRepository) ExistsInvoiceAlert(ctx context.Context, invoiceID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM invoice_payment_alerts WHERE invoice_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, invoiceID); err != nil {
		return false, fmt.Errorf("check invoice alert: %w", err)
	}
	return count > 0, nil
}

// FindPendingInvoiceAlert returns the pending alert for an invoice, if any.
func (r *AlertRepository) FindPendingInvoiceAlert(ctx context.Context, invoiceID string) (*models.InvoicePaymentAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoice_payment_alerts
        WHERE invoice_id = $1 AND status = $2 LIMIT 1`, invoiceAlertColumns)
	var alert models.InvoicePaymentAlert
	if err := r.db.GetContext(ctx, &alert, query, invoiceID, models.AlertStatusPending); err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindInvoiceAlertByID returns an invoice alert by its ID.
func (r *AlertRepository) FindInvoiceAlertByID(ctx context.Context, id string) (*models.InvoicePaymentAlert, error) {
	query := fmt.Sprintf("SELECT %s FROM invoice_payment_alerts WHERE id = $1", invoiceAlertColumns)
	var alert models.InvoicePaymentAlert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, err
	}
	return &alert, nil
}

// ResolveInvoiceAlert marks a pending alert resolved with the days overdue.
func (r *AlertRepository) ResolveInvoiceAlert(ctx context.Context, id string, daysOverdue int, at time.Time) error {
	const query = `UPDATE invoice_payment_alerts SET status = $2, days_overdue = $3, resolved_at = $4
        WHERE id = $1 AND status = $5`
	if _, err := r.db.ExecContext(ctx, query, id, models.AlertStatusResolved, daysOverdue, at.UTC(), models.AlertStatusPending); err != nil {
		return fmt.Errorf("resolve invoice alert: %w", err)
	}
	return nil
}

// DismissInvoiceAlert records an explicit admin dismissal.
func (r *AlertRepository) DismissInvoiceAlert(ctx context.Context, id, dismissedBy, reason string) error {
	const query = `UPDATE invoice_payment_alerts SET status = $2, dismissed_by = $3, dismiss_reason = $4, resolved_at = NOW()
        WHERE id = $1 AND status = $5`
	if _, err := r.db.ExecContext(ctx, query, id, models.AlertStatusDismissed, dismissedBy, reason, models.AlertStatusPending); err != nil {
		return fmt.Errorf("dismiss invoice alert: %w", err)
	}
	return nil
}

// ListInvoiceAlerts returns invoice alerts, optionally filtered by status.
func (r *AlertRepository) ListInvoiceAlerts(ctx context.Context, status models.AlertStatus) ([]models.InvoicePaymentAlert, error) {
	query := fmt.Sprintf("SELECT %s FROM invoice_payment_alerts", invoiceAlertColumns)
	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	var alerts []models.InvoicePaymentAlert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("list invoice alerts: %w", err)
	}
	return alerts, nil
}

// TutorComplianceStats aggregates logging punctuality per tutor.
func (r *AlertRepository) TutorComplianceStats(ctx context.Context) ([]models.TutorCompliance, error) {
	const query = `SELECT t.id AS tutor_id, t.full_name AS tutor_name,
        (SELECT COUNT(*) FROM session_occurrences o WHERE o.tutor_id = t.id AND o.status = 'completed') AS completed_sessions,
        COUNT(*) FILTER (WHERE a.status = 'resolved') AS late_sessions,
        COUNT(*) FILTER (WHERE a.status = 'pending') AS pending_alerts,
        COALESCE(AVG(a.hours_late) FILTER (WHERE a.status = 'resolved'), 0) AS avg_hours_late
        FROM tutors t
        LEFT JOIN session_logging_alerts a ON a.tutor_id = t.id
        GROUP BY t.id, t.full_name
        ORDER BY t.full_name`
	var stats []models.TutorCompliance
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("tutor compliance stats: %w", err)
	}
	return stats, nil
}

// ParentComplianceStats aggregates payment punctuality per parent.
func (r *AlertRepository) ParentComplianceStats(ctx context.Context) ([]models.ParentCompliance, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name,
        (SELECT COUNT(*) FROM invoices i WHERE i.student_id = s.id AND i.sent_at IS NOT NULL) AS sent_invoices,
        COUNT(*) FILTER (WHERE a.status = 'resolved') AS late_invoices,
        COUNT(*) FILTER (WHERE a.status = 'pending') AS pending_alerts,
        COALESCE(AVG(a.days_overdue) FILTER (WHERE a.status = 'resolved'), 0) AS avg_days_overdue
        FROM students s
        LEFT JOIN invoice_payment_alerts a ON a.student_id = s.id
        GROUP BY s.id, s.full_name
        ORDER BY s.full_name`
	var stats []models.ParentCompliance
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("parent compliance stats: %w", err)
	}
	return stats, nil
}
