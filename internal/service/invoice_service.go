package service

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
	"github.com/brightpath/agency-api/pkg/export"
)

type invoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
	MarkOutstandingOverdue(ctx context.Context, studentID string) error
	UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error
	ProcessScheduled(ctx context.Context, now time.Time, dueDays int) ([]models.Invoice, error)
	SetParentClaimedPaid(ctx context.Context, id string, claimed bool) error
	ApplyPaymentTx(ctx context.Context, invoice *models.Invoice, payment *models.Payment) (models.InvoiceStatus, error)
}

type invoiceStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ClearRecurringSendDate(ctx context.Context, id string) error
}

type tutorInvoiceRepository interface {
	FindByID(ctx context.Context, id string) (*models.TutorInvoice, error)
	List(ctx context.Context, tutorID string, status models.TutorInvoiceStatus) ([]models.TutorInvoice, error)
	MarkPaid(ctx context.Context, id string, at time.Time) error
}

type paymentAlertResolver interface {
	ResolveForInvoicePayment(ctx context.Context, invoice *models.Invoice, now time.Time) error
}

type settingsReader interface {
	IntValue(ctx context.Context, key string, fallback int) int
}

// RecordPaymentRequest describes a payment applied to an invoice.
type RecordPaymentRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
}

// CreateAdhocInvoiceRequest describes a manual charge outside session billing.
type CreateAdhocInvoiceRequest struct {
	StudentID   string  `json:"student_id" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description"`
}

// InvoiceService owns parent invoice generation, the scheduled-invoice sweep
// and payment application, plus the tutor payable lifecycle.
type InvoiceService struct {
	invoices      invoiceRepository
	students      invoiceStudentStore
	tutorInvoices tutorInvoiceRepository
	settings      settingsReader
	alerts        paymentAlertResolver
	defaultDue    int
	validator     *validator.Validate
	logger        *zap.Logger
	metrics       metricsRecorder
	clock         func() time.Time
}

// NewInvoiceService constructs InvoiceService.
func NewInvoiceService(invoices invoiceRepository, students invoiceStudentStore, tutorInvoices tutorInvoiceRepository,
	settings settingsReader, alerts paymentAlertResolver, defaultDueDays int,
	validate *validator.Validate, logger *zap.Logger, metrics metricsRecorder) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if defaultDueDays <= 0 {
		defaultDueDays = 6
	}
	return &InvoiceService{
		invoices:      invoices,
		students:      students,
		tutorInvoices: tutorInvoices,
		settings:      settings,
		alerts:        alerts,
		defaultDue:    defaultDueDays,
		validator:     validate,
		logger:        logger,
		metrics:       metrics,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock, for tests.
func (s *InvoiceService) WithClock(clock func() time.Time) *InvoiceService {
	s.clock = clock
	return s
}

// invoiceSlug normalises a name into the uppercase token used in invoice numbers.
func invoiceSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "UNKNOWN"
	}
	return b.String()
}

func (s *InvoiceService) invoiceNumber(prefix, name string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%04d", prefix, invoiceSlug(name), at.Format("20060102"), rand.Intn(10000))
}

func (s *InvoiceService) dueDays(ctx context.Context) int {
	if s.settings == nil {
		return s.defaultDue
	}
	return s.settings.IntValue(ctx, models.SettingInvoiceDueDays, s.defaultDue)
}

// PrepareSessionInvoice builds the candidate invoice issued when a student's
// session credit runs out. The second return reports whether the student's
// one-shot recurring send date must be cleared once the invoice is persisted.
func (s *InvoiceService) PrepareSessionInvoice(ctx context.Context, student *models.Student) (*models.Invoice, bool, error) {
	now := s.clock()
	amount := student.ParentRate.Mul(decimal.NewFromInt(int64(student.SessionsBooked))).Round(2)

	invoice := &models.Invoice{
		StudentID:        student.ID,
		InvoiceNumber:    s.invoiceNumber("INV", student.FullName, now),
		Amount:           amount,
		SessionsIncluded: student.SessionsBooked,
	}

	clearRecurring := false
	if student.AutoInvoiceEnabled {
		invoice.Kind = models.InvoiceKindRecurring
		if student.RecurringInvoiceSendDate != nil && student.RecurringInvoiceSendDate.After(now) {
			sendDate := student.RecurringInvoiceSendDate.UTC()
			invoice.Status = models.InvoiceStatusScheduled
			invoice.ScheduledSendDate = &sendDate
			clearRecurring = true
		} else {
			s.markSent(ctx, invoice, now)
		}
	} else {
		invoice.Kind = models.InvoiceKindPackage
		s.markSent(ctx, invoice, now)
	}
	return invoice, clearRecurring, nil
}

func (s *InvoiceService) markSent(ctx context.Context, invoice *models.Invoice, now time.Time) {
	due := now.AddDate(0, 0, s.dueDays(ctx))
	invoice.Status = models.InvoiceStatusSent
	invoice.SentAt = &now
	invoice.DueDate = &due
}

// GenerateForSessionPackage issues a fresh package invoice for a student,
// superseding any outstanding sent or partially paid invoices.
func (s *InvoiceService) GenerateForSessionPackage(ctx context.Context, studentID string) (*models.Invoice, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.invoices.MarkOutstandingOverdue(ctx, studentID); err != nil {
		return nil, appErrors.Internal(err, "failed to supersede invoices")
	}

	now := s.clock()
	invoice := &models.Invoice{
		StudentID:        student.ID,
		InvoiceNumber:    s.invoiceNumber("INV", student.FullName, now),
		Kind:             models.InvoiceKindPackage,
		Amount:           student.ParentRate.Mul(decimal.NewFromInt(int64(student.SessionsBooked))).Round(2),
		SessionsIncluded: student.SessionsBooked,
	}
	s.markSent(ctx, invoice, now)

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, appErrors.Internal(err, "failed to create invoice")
	}
	s.metrics.InvoiceIssued(string(invoice.Kind))
	s.logger.Info("package invoice issued",
		zap.String("student_id", studentID),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("amount", invoice.Amount.StringFixed(2)),
	)
	return invoice, nil
}

// GenerateRecurringForStudent issues the recurring package invoice. A future
// recurring send date produces a scheduled invoice and consumes the date.
func (s *InvoiceService) GenerateRecurringForStudent(ctx context.Context, studentID string) (*models.Invoice, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	invoice := &models.Invoice{
		StudentID:        student.ID,
		InvoiceNumber:    s.invoiceNumber("INV", student.FullName, now),
		Kind:             models.InvoiceKindRecurring,
		Amount:           student.ParentRate.Mul(decimal.NewFromInt(int64(student.SessionsBooked))).Round(2),
		SessionsIncluded: student.SessionsBooked,
	}
	clearRecurring := false
	if student.RecurringInvoiceSendDate != nil && student.RecurringInvoiceSendDate.After(now) {
		sendDate := student.RecurringInvoiceSendDate.UTC()
		invoice.Status = models.InvoiceStatusScheduled
		invoice.ScheduledSendDate = &sendDate
		clearRecurring = true
	} else {
		s.markSent(ctx, invoice, now)
	}

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, appErrors.Internal(err, "failed to create invoice")
	}
	if clearRecurring {
		if err := s.students.ClearRecurringSendDate(ctx, studentID); err != nil {
			return nil, appErrors.Internal(err, "failed to clear recurring send date")
		}
	}
	s.metrics.InvoiceIssued(string(invoice.Kind))
	return invoice, nil
}

// CreateAdhoc issues a manual invoice outside session billing.
func (s *InvoiceService) CreateAdhoc(ctx context.Context, req CreateAdhocInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	invoice := &models.Invoice{
		StudentID:     student.ID,
		InvoiceNumber: s.invoiceNumber("ADH", student.FullName, now),
		Kind:          models.InvoiceKindAdhoc,
		Amount:        decimal.NewFromFloat(req.Amount).Round(2),
	}
	s.markSent(ctx, invoice, now)

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, appErrors.Internal(err, "failed to create invoice")
	}
	s.metrics.InvoiceIssued(string(invoice.Kind))
	return invoice, nil
}

// ProcessScheduled promotes due scheduled invoices to sent. Idempotent:
// already-sent invoices are never touched.
func (s *InvoiceService) ProcessScheduled(ctx context.Context) ([]models.Invoice, error) {
	promoted, err := s.invoices.ProcessScheduled(ctx, s.clock(), s.dueDays(ctx))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to process scheduled invoices")
	}
	for i := range promoted {
		s.metrics.InvoiceIssued(string(promoted[i].Kind))
	}
	if len(promoted) > 0 {
		s.logger.Info("scheduled invoices sent", zap.Int("count", len(promoted)))
	}
	return promoted, nil
}

// ApplyPayment records money against an invoice and recomputes its status.
func (s *InvoiceService) ApplyPayment(ctx context.Context, invoiceID string, req RecordPaymentRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	switch invoice.Status {
	case models.InvoiceStatusPaid, models.InvoiceStatusCancelled, models.InvoiceStatusScheduled:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot pay a %s invoice", invoice.Status))
	}

	payment := &models.Payment{
		InvoiceID: &invoice.ID,
		StudentID: &invoice.StudentID,
		Amount:    decimal.NewFromFloat(req.Amount).Round(2),
		Method:    req.Method,
		Reference: req.Reference,
	}
	status, err := s.invoices.ApplyPaymentTx(ctx, invoice, payment)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to apply payment")
	}

	if status == models.InvoiceStatusPaid && s.alerts != nil {
		if err := s.alerts.ResolveForInvoicePayment(ctx, invoice, s.clock()); err != nil {
			s.logger.Warn("failed to resolve payment alert", zap.String("invoice_id", invoice.ID), zap.Error(err))
		}
	}
	return s.loadInvoice(ctx, invoiceID)
}

// MarkParentClaimedPaid records the parent's self-reported payment. The admin
// confirmed paid status is only reached through ApplyPayment.
func (s *InvoiceService) MarkParentClaimedPaid(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	switch invoice.Status {
	case models.InvoiceStatusPaid, models.InvoiceStatusCancelled, models.InvoiceStatusScheduled:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot claim payment on a %s invoice", invoice.Status))
	}
	if err := s.invoices.SetParentClaimedPaid(ctx, invoiceID, true); err != nil {
		return nil, appErrors.Internal(err, "failed to record claimed payment")
	}
	return s.loadInvoice(ctx, invoiceID)
}

// Cancel voids an invoice that has not been paid.
func (s *InvoiceService) Cancel(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	switch invoice.Status {
	case models.InvoiceStatusPaid, models.InvoiceStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot cancel a %s invoice", invoice.Status))
	}
	if err := s.invoices.UpdateStatus(ctx, invoiceID, models.InvoiceStatusCancelled); err != nil {
		return nil, appErrors.Internal(err, "failed to cancel invoice")
	}
	return s.loadInvoice(ctx, invoiceID)
}

// Get returns an invoice.
func (s *InvoiceService) Get(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	return s.loadInvoice(ctx, invoiceID)
}

// List returns invoices with pagination metadata.
func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list invoices")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return invoices, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Statement renders the invoice as a printable dataset.
func (s *InvoiceService) Statement(ctx context.Context, invoiceID string) (export.Dataset, string, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	student, err := s.loadStudent(ctx, invoice.StudentID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	row := map[string]string{
		"Invoice":  invoice.InvoiceNumber,
		"Student":  student.FullName,
		"Kind":     string(invoice.Kind),
		"Sessions": fmt.Sprintf("%d", invoice.SessionsIncluded),
		"Amount":   invoice.Amount.StringFixed(2),
		"Status":   string(invoice.Status),
	}
	if invoice.DueDate != nil {
		row["Due"] = invoice.DueDate.Format("2006-01-02")
	} else {
		row["Due"] = "-"
	}
	dataset := export.Dataset{
		Headers: []string{"Invoice", "Student", "Kind", "Sessions", "Amount", "Status", "Due"},
		Rows:    []map[string]string{row},
	}
	return dataset, "Invoice " + invoice.InvoiceNumber, nil
}

// ListTutorInvoices returns tutor payables.
func (s *InvoiceService) ListTutorInvoices(ctx context.Context, tutorID string, status models.TutorInvoiceStatus) ([]models.TutorInvoice, error) {
	invoices, err := s.tutorInvoices.List(ctx, tutorID, status)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list tutor invoices")
	}
	return invoices, nil
}

// MarkTutorInvoicePaid settles an approved tutor payable.
func (s *InvoiceService) MarkTutorInvoicePaid(ctx context.Context, id string) (*models.TutorInvoice, error) {
	if _, err := s.tutorInvoices.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor invoice not found")
		}
		return nil, appErrors.Internal(err, "failed to load tutor invoice")
	}
	if err := s.tutorInvoices.MarkPaid(ctx, id, s.clock()); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "tutor invoice is not approved")
		}
		return nil, appErrors.Internal(err, "failed to mark tutor invoice paid")
	}
	invoice, err := s.tutorInvoices.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load tutor invoice")
	}
	return invoice, nil
}

func (s *InvoiceService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	return student, nil
}

func (s *InvoiceService) loadInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Internal(err, "failed to load invoice")
	}
	return invoice, nil
}
