package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/internal/repository"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type alertRepository interface {
	CreateSessionAlert(ctx context.Context, alert *models.SessionLoggingAlert) error
	FindPendingSessionAlert(ctx context.Context, occurrenceID string) (*models.SessionLoggingAlert, error)
	FindSessionAlertByID(ctx context.Context, id string) (*models.SessionLoggingAlert, error)
	ResolveSessionAlert(ctx context.Context, id string, hoursLate decimal.Decimal, at time.Time) error
	DismissSessionAlert(ctx context.Context, id, dismissedBy, reason string) error
	ListSessionAlerts(ctx context.Context, status models.AlertStatus) ([]models.SessionLoggingAlert, error)
	CreateInvoiceAlert(ctx context.Context, alert *models.InvoicePaymentAlert) error
	ExistsInvoiceAlert(ctx context.Context, invoiceID string) (bool, error)
	FindPendingInvoiceAlert(ctx context.Context, invoiceID string) (*models.InvoicePaymentAlert, error)
	FindInvoiceAlertByID(ctx context.Context, id string) (*models.InvoicePaymentAlert, error)
	ResolveInvoiceAlert(ctx context.Context, id string, daysOverdue int, at time.Time) error
	DismissInvoiceAlert(ctx context.Context, id, dismissedBy, reason string) error
	ListInvoiceAlerts(ctx context.Context, status models.AlertStatus) ([]models.InvoicePaymentAlert, error)
	TutorComplianceStats(ctx context.Context) ([]models.TutorCompliance, error)
	ParentComplianceStats(ctx context.Context) ([]models.ParentCompliance, error)
}

type unloggedSessionLister interface {
	ListUnlogged(ctx context.Context, cutoff time.Time) ([]models.SessionOccurrence, error)
}

type reminderInvoiceStore interface {
	ListUnpaidSent(ctx context.Context) ([]models.Invoice, error)
	StampReminder(ctx context.Context, id string, stage repository.ReminderStage, at time.Time) (bool, error)
}

type notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// AlertService runs the compliance sweeps: unlogged sessions, unpaid invoices
// and the staged payment reminders. Sweeps are idempotent so the background
// ticker can re-run them freely.
type AlertService struct {
	alerts        alertRepository
	sessions      unloggedSessionLister
	invoices      reminderInvoiceStore
	notifications notifier
	grace         time.Duration
	alertAfter    time.Duration
	reminderDays  [3]int
	logger        *zap.Logger
	metrics       metricsRecorder
	clock         func() time.Time
}

// NewAlertService constructs AlertService. grace is how long after a session
// ends before an unlogged occurrence is flagged; alertAfter is how long a sent
// invoice may go unpaid; reminderDays are the three days-since-sent thresholds.
func NewAlertService(alerts alertRepository, sessions unloggedSessionLister, invoices reminderInvoiceStore,
	notifications notifier, grace, alertAfter time.Duration, reminderDays [3]int,
	logger *zap.Logger, metrics metricsRecorder) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	if alertAfter <= 0 {
		alertAfter = 48 * time.Hour
	}
	if reminderDays == [3]int{} {
		reminderDays = [3]int{2, 4, 5}
	}
	return &AlertService{
		alerts:        alerts,
		sessions:      sessions,
		invoices:      invoices,
		notifications: notifications,
		grace:         grace,
		alertAfter:    alertAfter,
		reminderDays:  reminderDays,
		logger:        logger,
		metrics:       metrics,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock, for tests.
func (s *AlertService) WithClock(clock func() time.Time) *AlertService {
	s.clock = clock
	return s
}

// ScanSessionLogging flags occurrences that ended more than the grace period
// ago without a logged entry. Each occurrence is flagged at most once.
func (s *AlertService) ScanSessionLogging(ctx context.Context) (int, error) {
	now := s.clock()
	occurrences, err := s.sessions.ListUnlogged(ctx, now.Add(-s.grace))
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list unlogged sessions")
	}

	raised := 0
	for i := range occurrences {
		occ := occurrences[i]
		alert := &models.SessionLoggingAlert{
			SessionOccurrenceID: occ.ID,
			TutorID:             occ.TutorID,
		}
		if err := s.alerts.CreateSessionAlert(ctx, alert); err != nil {
			s.logger.Warn("failed to create session alert",
				zap.String("occurrence_id", occ.ID), zap.Error(err))
			continue
		}
		raised++
		s.metrics.AlertRaised("session_logging")
		s.notify(ctx, &models.Notification{
			RecipientKind: models.RecipientTutor,
			RecipientID:   &occ.TutorID,
			Kind:          models.NotificationSessionLoggingAlert,
			Subject:       "Session not logged",
			Body:          fmt.Sprintf("A session that ended on %s has not been logged yet.", occ.EndsAt.Format("2006-01-02 15:04")),
		})
	}
	if raised > 0 {
		s.logger.Info("session logging sweep", zap.Int("alerts_raised", raised))
	}
	return raised, nil
}

// ResolveForOccurrence closes the pending alert for an occurrence once its
// session is logged, recording how many hours passed between the alert being
// raised and the logging.
func (s *AlertService) ResolveForOccurrence(ctx context.Context, occurrence *models.SessionOccurrence, loggedAt time.Time) error {
	alert, err := s.alerts.FindPendingSessionAlert(ctx, occurrence.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return appErrors.Internal(err, "failed to load session alert")
	}

	hoursLate := decimal.NewFromFloat(loggedAt.Sub(alert.CreatedAt).Hours()).Round(2)
	if hoursLate.IsNegative() {
		hoursLate = decimal.Zero
	}
	if err := s.alerts.ResolveSessionAlert(ctx, alert.ID, hoursLate, loggedAt); err != nil {
		return appErrors.Internal(err, "failed to resolve session alert")
	}
	return nil
}

// ScanInvoicePayment flags sent invoices that stayed unpaid beyond the alert
// window. Invoices the parent already claims to have paid are still flagged;
// the claim is surfaced on the alert listing, not trusted.
func (s *AlertService) ScanInvoicePayment(ctx context.Context) (int, error) {
	now := s.clock()
	invoices, err := s.invoices.ListUnpaidSent(ctx)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list unpaid invoices")
	}

	raised := 0
	for i := range invoices {
		invoice := invoices[i]
		if invoice.SentAt == nil || now.Sub(*invoice.SentAt) < s.alertAfter {
			continue
		}
		exists, err := s.alerts.ExistsInvoiceAlert(ctx, invoice.ID)
		if err != nil {
			return raised, appErrors.Internal(err, "failed to check invoice alert")
		}
		if exists {
			continue
		}
		alert := &models.InvoicePaymentAlert{
			InvoiceID: invoice.ID,
			StudentID: invoice.StudentID,
		}
		if err := s.alerts.CreateInvoiceAlert(ctx, alert); err != nil {
			s.logger.Warn("failed to create invoice alert",
				zap.String("invoice_id", invoice.ID), zap.Error(err))
			continue
		}
		raised++
		s.metrics.AlertRaised("invoice_payment")
		s.notify(ctx, &models.Notification{
			RecipientKind: models.RecipientAdmin,
			Kind:          models.NotificationInvoicePaymentAlert,
			Subject:       "Invoice unpaid",
			Body:          fmt.Sprintf("Invoice %s is still unpaid.", invoice.InvoiceNumber),
		})
	}
	if raised > 0 {
		s.logger.Info("invoice payment sweep", zap.Int("alerts_raised", raised))
	}
	return raised, nil
}

// ResolveForInvoicePayment closes the pending alert for an invoice once it is
// fully paid, recording how many days past due the payment landed.
func (s *AlertService) ResolveForInvoicePayment(ctx context.Context, invoice *models.Invoice, now time.Time) error {
	alert, err := s.alerts.FindPendingInvoiceAlert(ctx, invoice.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return appErrors.Internal(err, "failed to load invoice alert")
	}

	daysOverdue := 0
	if invoice.DueDate != nil {
		daysOverdue = int(now.Sub(*invoice.DueDate).Hours() / 24)
		if daysOverdue < 0 {
			daysOverdue = 0
		}
	}
	if err := s.alerts.ResolveInvoiceAlert(ctx, alert.ID, daysOverdue, now); err != nil {
		return appErrors.Internal(err, "failed to resolve invoice alert")
	}
	return nil
}

// CheckAndSendInvoiceReminders walks unpaid sent invoices and fires each
// reminder stage at most once, measured in days since the invoice was sent.
// Invoices whose parents claim payment are skipped until an admin confirms or
// disputes the claim.
func (s *AlertService) CheckAndSendInvoiceReminders(ctx context.Context) (int, error) {
	now := s.clock()
	invoices, err := s.invoices.ListUnpaidSent(ctx)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list unpaid invoices")
	}

	stages := []struct {
		stage repository.ReminderStage
		name  string
		days  int
	}{
		{repository.ReminderFirst, "first", s.reminderDays[0]},
		{repository.ReminderSecond, "second", s.reminderDays[1]},
		{repository.ReminderFinal, "final", s.reminderDays[2]},
	}

	sent := 0
	for i := range invoices {
		invoice := invoices[i]
		if invoice.SentAt == nil || invoice.ParentClaimedPaid {
			continue
		}
		daysSinceSent := int(now.Sub(*invoice.SentAt).Hours() / 24)
		for _, st := range stages {
			if daysSinceSent < st.days {
				continue
			}
			won, err := s.invoices.StampReminder(ctx, invoice.ID, st.stage, now)
			if err != nil {
				return sent, appErrors.Internal(err, "failed to stamp reminder")
			}
			if !won {
				continue
			}
			sent++
			s.metrics.ReminderSent(st.name)
			s.notify(ctx, &models.Notification{
				RecipientKind: models.RecipientParent,
				RecipientID:   &invoice.StudentID,
				Kind:          models.NotificationInvoiceReminder,
				Subject:       fmt.Sprintf("Payment reminder for invoice %s", invoice.InvoiceNumber),
				Body:          fmt.Sprintf("Invoice %s has been awaiting payment for %d day(s).", invoice.InvoiceNumber, daysSinceSent),
			})
		}
	}
	if sent > 0 {
		s.logger.Info("reminder sweep", zap.Int("reminders_sent", sent))
	}
	return sent, nil
}

// DismissSessionAlert records an admin dismissal of a pending session alert.
func (s *AlertService) DismissSessionAlert(ctx context.Context, id, dismissedBy, reason string) (*models.SessionLoggingAlert, error) {
	alert, err := s.alerts.FindSessionAlertByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return nil, appErrors.Internal(err, "failed to load alert")
	}
	if alert.Status != models.AlertStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot dismiss a %s alert", alert.Status))
	}
	if err := s.alerts.DismissSessionAlert(ctx, id, dismissedBy, reason); err != nil {
		return nil, appErrors.Internal(err, "failed to dismiss alert")
	}
	alert, err = s.alerts.FindSessionAlertByID(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load alert")
	}
	return alert, nil
}

// DismissInvoiceAlert records an admin dismissal of a pending invoice alert.
func (s *AlertService) DismissInvoiceAlert(ctx context.Context, id, dismissedBy, reason string) (*models.InvoicePaymentAlert, error) {
	alert, err := s.alerts.FindInvoiceAlertByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return nil, appErrors.Internal(err, "failed to load alert")
	}
	if alert.Status != models.AlertStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot dismiss a %s alert", alert.Status))
	}
	if err := s.alerts.DismissInvoiceAlert(ctx, id, dismissedBy, reason); err != nil {
		return nil, appErrors.Internal(err, "failed to dismiss alert")
	}
	alert, err = s.alerts.FindInvoiceAlertByID(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load alert")
	}
	return alert, nil
}

// ListSessionAlerts returns session alerts, optionally filtered by status.
func (s *AlertService) ListSessionAlerts(ctx context.Context, status models.AlertStatus) ([]models.SessionLoggingAlert, error) {
	alerts, err := s.alerts.ListSessionAlerts(ctx, status)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list alerts")
	}
	return alerts, nil
}

// ListInvoiceAlerts returns invoice alerts, optionally filtered by status.
func (s *AlertService) ListInvoiceAlerts(ctx context.Context, status models.AlertStatus) ([]models.InvoicePaymentAlert, error) {
	alerts, err := s.alerts.ListInvoiceAlerts(ctx, status)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list alerts")
	}
	return alerts, nil
}

// Compliance builds the punctuality report for tutors and parents.
func (s *AlertService) Compliance(ctx context.Context) (*models.ComplianceReport, error) {
	tutors, err := s.alerts.TutorComplianceStats(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to aggregate tutor compliance")
	}
	for i := range tutors {
		if tutors[i].CompletedSessions > 0 {
			tutors[i].LateRatePercent = 100 * float64(tutors[i].LateSessions) / float64(tutors[i].CompletedSessions)
		}
	}
	parents, err := s.alerts.ParentComplianceStats(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to aggregate parent compliance")
	}
	for i := range parents {
		if parents[i].SentInvoices > 0 {
			parents[i].LateRatePercent = 100 * float64(parents[i].LateInvoices) / float64(parents[i].SentInvoices)
		}
	}
	return &models.ComplianceReport{Tutors: tutors, Parents: parents}, nil
}

func (s *AlertService) notify(ctx context.Context, n *models.Notification) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Notify(ctx, n); err != nil {
		s.logger.Warn("failed to send notification", zap.String("kind", n.Kind), zap.Error(err))
	}
}
