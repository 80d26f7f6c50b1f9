package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type invoiceRepoStub struct {
	invoice       *models.Invoice
	created       *models.Invoice
	overdueFor    string
	statusSet     models.InvoiceStatus
	promoted      []models.Invoice
	promotedDue   int
	claimedID     string
	claimedValue  bool
	payment       *models.Payment
	paymentStatus models.InvoiceStatus
}

func (s *invoiceRepoStub) Create(ctx context.Context, invoice *models.Invoice) error {
	s.created = invoice
	return nil
}

func (s *invoiceRepoStub) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	if s.invoice == nil || s.invoice.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.invoice, nil
}

func (s *invoiceRepoStub) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	if s.invoice == nil {
		return nil, 0, nil
	}
	return []models.Invoice{*s.invoice}, 1, nil
}

func (s *invoiceRepoStub) MarkOutstandingOverdue(ctx context.Context, studentID string) error {
	s.overdueFor = studentID
	return nil
}

func (s *invoiceRepoStub) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus) error {
	s.statusSet = status
	return nil
}

func (s *invoiceRepoStub) ProcessScheduled(ctx context.Context, now time.Time, dueDays int) ([]models.Invoice, error) {
	s.promotedDue = dueDays
	return s.promoted, nil
}

func (s *invoiceRepoStub) SetParentClaimedPaid(ctx context.Context, id string, claimed bool) error {
	s.claimedID = id
	s.claimedValue = claimed
	return nil
}

func (s *invoiceRepoStub) ApplyPaymentTx(ctx context.Context, invoice *models.Invoice, payment *models.Payment) (models.InvoiceStatus, error) {
	s.payment = payment
	return s.paymentStatus, nil
}

type invStudentStub struct {
	student   *models.Student
	clearedID string
}

func (s *invStudentStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s.student == nil || s.student.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

func (s *invStudentStub) ClearRecurringSendDate(ctx context.Context, id string) error {
	s.clearedID = id
	return nil
}

type invTutorInvoiceStub struct {
	invoice     *models.TutorInvoice
	markPaidErr error
	paidAt      time.Time
}

func (s *invTutorInvoiceStub) FindByID(ctx context.Context, id string) (*models.TutorInvoice, error) {
	if s.invoice == nil || s.invoice.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.invoice, nil
}

func (s *invTutorInvoiceStub) List(ctx context.Context, tutorID string, status models.TutorInvoiceStatus) ([]models.TutorInvoice, error) {
	if s.invoice == nil {
		return nil, nil
	}
	return []models.TutorInvoice{*s.invoice}, nil
}

func (s *invTutorInvoiceStub) MarkPaid(ctx context.Context, id string, at time.Time) error {
	if s.markPaidErr != nil {
		return s.markPaidErr
	}
	s.paidAt = at
	return nil
}

type invAlertStub struct {
	resolved *models.Invoice
	at       time.Time
}

func (s *invAlertStub) ResolveForInvoicePayment(ctx context.Context, invoice *models.Invoice, now time.Time) error {
	s.resolved = invoice
	s.at = now
	return nil
}

type settingsStub struct {
	values map[string]int
}

func (s *settingsStub) IntValue(ctx context.Context, key string, fallback int) int {
	if v, ok := s.values[key]; ok {
		return v
	}
	return fallback
}

type invoiceFixture struct {
	repo          *invoiceRepoStub
	students      *invStudentStub
	tutorInvoices *invTutorInvoiceStub
	settings      *settingsStub
	alerts        *invAlertStub
	metrics       *metricsStub
	svc           *InvoiceService
}

func newInvoiceFixture() *invoiceFixture {
	f := &invoiceFixture{
		repo: &invoiceRepoStub{paymentStatus: models.InvoiceStatusPartial},
		students: &invStudentStub{student: &models.Student{
			ID:             "student-1",
			FullName:       "Alice Smith",
			ParentRate:     decimal.NewFromInt(75),
			SessionsBooked: 10,
		}},
		tutorInvoices: &invTutorInvoiceStub{},
		settings:      &settingsStub{values: map[string]int{}},
		alerts:        &invAlertStub{},
		metrics:       newMetricsStub(),
	}
	f.svc = NewInvoiceService(f.repo, f.students, f.tutorInvoices, f.settings, f.alerts,
		6, nil, zap.NewNop(), f.metrics).WithClock(testClock)
	return f
}

func TestInvoiceSlug(t *testing.T) {
	assert.Equal(t, "ALICESMITH", invoiceSlug("Alice Smith"))
	assert.Equal(t, "JANEOBRIEN2", invoiceSlug("Jane O'Brien-2"))
	assert.Equal(t, "UNKNOWN", invoiceSlug("--- ---"))
}

func TestPrepareSessionInvoicePackage(t *testing.T) {
	f := newInvoiceFixture()

	invoice, clear, err := f.svc.PrepareSessionInvoice(context.Background(), f.students.student)
	require.NoError(t, err)

	assert.False(t, clear)
	assert.Equal(t, models.InvoiceKindPackage, invoice.Kind)
	assert.Equal(t, models.InvoiceStatusSent, invoice.Status)
	assert.True(t, invoice.Amount.Equal(decimal.RequireFromString("750.00")))
	assert.Equal(t, 10, invoice.SessionsIncluded)
	assert.True(t, strings.HasPrefix(invoice.InvoiceNumber, "INV-ALICESMITH-20260115-"))
	require.NotNil(t, invoice.DueDate)
	assert.Equal(t, testClock().AddDate(0, 0, 6), *invoice.DueDate)
	require.NotNil(t, invoice.SentAt)
	assert.Equal(t, testClock(), *invoice.SentAt)
}

func TestPrepareSessionInvoiceScheduledRecurring(t *testing.T) {
	f := newInvoiceFixture()
	sendDate := testClock().AddDate(0, 0, 3)
	f.students.student.AutoInvoiceEnabled = true
	f.students.student.RecurringInvoiceSendDate = &sendDate

	invoice, clear, err := f.svc.PrepareSessionInvoice(context.Background(), f.students.student)
	require.NoError(t, err)

	assert.True(t, clear)
	assert.Equal(t, models.InvoiceKindRecurring, invoice.Kind)
	assert.Equal(t, models.InvoiceStatusScheduled, invoice.Status)
	require.NotNil(t, invoice.ScheduledSendDate)
	assert.Equal(t, sendDate, *invoice.ScheduledSendDate)
	assert.Nil(t, invoice.SentAt)
	assert.Nil(t, invoice.DueDate)
}

func TestPrepareSessionInvoicePastRecurringDateSendsNow(t *testing.T) {
	f := newInvoiceFixture()
	sendDate := testClock().AddDate(0, 0, -1)
	f.students.student.AutoInvoiceEnabled = true
	f.students.student.RecurringInvoiceSendDate = &sendDate

	invoice, clear, err := f.svc.PrepareSessionInvoice(context.Background(), f.students.student)
	require.NoError(t, err)

	assert.False(t, clear)
	assert.Equal(t, models.InvoiceKindRecurring, invoice.Kind)
	assert.Equal(t, models.InvoiceStatusSent, invoice.Status)
}

func TestDueDaysSettingOverridesDefault(t *testing.T) {
	f := newInvoiceFixture()
	f.settings.values[models.SettingInvoiceDueDays] = 14

	invoice, _, err := f.svc.PrepareSessionInvoice(context.Background(), f.students.student)
	require.NoError(t, err)
	require.NotNil(t, invoice.DueDate)
	assert.Equal(t, testClock().AddDate(0, 0, 14), *invoice.DueDate)
}

func TestGenerateForSessionPackageSupersedesOutstanding(t *testing.T) {
	f := newInvoiceFixture()

	invoice, err := f.svc.GenerateForSessionPackage(context.Background(), "student-1")
	require.NoError(t, err)

	assert.Equal(t, "student-1", f.repo.overdueFor)
	assert.Same(t, invoice, f.repo.created)
	assert.Equal(t, models.InvoiceKindPackage, invoice.Kind)
	assert.Equal(t, 1, f.metrics.invoices[string(models.InvoiceKindPackage)])
}

func TestGenerateRecurringConsumesSendDate(t *testing.T) {
	f := newInvoiceFixture()
	sendDate := testClock().AddDate(0, 0, 5)
	f.students.student.RecurringInvoiceSendDate = &sendDate

	invoice, err := f.svc.GenerateRecurringForStudent(context.Background(), "student-1")
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceStatusScheduled, invoice.Status)
	assert.Equal(t, "student-1", f.students.clearedID)
}

func TestCreateAdhocInvoice(t *testing.T) {
	f := newInvoiceFixture()

	invoice, err := f.svc.CreateAdhoc(context.Background(), CreateAdhocInvoiceRequest{
		StudentID:   "student-1",
		Amount:      25.5,
		Description: "exam fee",
	})
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceKindAdhoc, invoice.Kind)
	assert.True(t, invoice.Amount.Equal(decimal.RequireFromString("25.50")))
	assert.True(t, strings.HasPrefix(invoice.InvoiceNumber, "ADH-ALICESMITH-"))
	assert.Equal(t, models.InvoiceStatusSent, invoice.Status)
}

func TestCreateAdhocRejectsNonPositiveAmount(t *testing.T) {
	f := newInvoiceFixture()

	_, err := f.svc.CreateAdhoc(context.Background(), CreateAdhocInvoiceRequest{
		StudentID: "student-1",
		Amount:    0,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProcessScheduledCountsPromotions(t *testing.T) {
	f := newInvoiceFixture()
	f.repo.promoted = []models.Invoice{
		{ID: "inv-1", Kind: models.InvoiceKindRecurring},
		{ID: "inv-2", Kind: models.InvoiceKindRecurring},
	}

	promoted, err := f.svc.ProcessScheduled(context.Background())
	require.NoError(t, err)

	assert.Len(t, promoted, 2)
	assert.Equal(t, 6, f.repo.promotedDue)
	assert.Equal(t, 2, f.metrics.invoices[string(models.InvoiceKindRecurring)])
}

func sentInvoice() *models.Invoice {
	due := testClock().AddDate(0, 0, -2)
	return &models.Invoice{
		ID:        "inv-1",
		StudentID: "student-1",
		Status:    models.InvoiceStatusSent,
		Amount:    decimal.NewFromInt(750),
		DueDate:   &due,
	}
}

func TestApplyPaymentPartial(t *testing.T) {
	f := newInvoiceFixture()
	f.repo.invoice = sentInvoice()
	f.repo.paymentStatus = models.InvoiceStatusPartial

	_, err := f.svc.ApplyPayment(context.Background(), "inv-1", RecordPaymentRequest{
		Amount: 300,
		Method: "bank_transfer",
	})
	require.NoError(t, err)

	require.NotNil(t, f.repo.payment)
	assert.True(t, f.repo.payment.Amount.Equal(decimal.RequireFromString("300.00")))
	assert.Equal(t, "inv-1", *f.repo.payment.InvoiceID)
	assert.Nil(t, f.alerts.resolved)
}

func TestApplyPaymentResolvesAlertWhenPaid(t *testing.T) {
	f := newInvoiceFixture()
	f.repo.invoice = sentInvoice()
	f.repo.paymentStatus = models.InvoiceStatusPaid

	_, err := f.svc.ApplyPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 750})
	require.NoError(t, err)

	require.NotNil(t, f.alerts.resolved)
	assert.Equal(t, "inv-1", f.alerts.resolved.ID)
	assert.Equal(t, testClock(), f.alerts.at)
}

func TestApplyPaymentGuardsTerminalStatuses(t *testing.T) {
	for _, status := range []models.InvoiceStatus{
		models.InvoiceStatusPaid,
		models.InvoiceStatusCancelled,
		models.InvoiceStatusScheduled,
	} {
		f := newInvoiceFixture()
		f.repo.invoice = sentInvoice()
		f.repo.invoice.Status = status

		_, err := f.svc.ApplyPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 10})
		require.Error(t, err, string(status))
		assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	}
}

func TestMarkParentClaimedPaid(t *testing.T) {
	f := newInvoiceFixture()
	f.repo.invoice = sentInvoice()

	_, err := f.svc.MarkParentClaimedPaid(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", f.repo.claimedID)
	assert.True(t, f.repo.claimedValue)
}

func TestCancelGuardsPaidInvoice(t *testing.T) {
	f := newInvoiceFixture()
	f.repo.invoice = sentInvoice()
	f.repo.invoice.Status = models.InvoiceStatusPaid

	_, err := f.svc.Cancel(context.Background(), "inv-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestCancelSentInvoice(t *testing.T) {
	f := newInvoiceFixture()
	f.repo.invoice = sentInvoice()

	_, err := f.svc.Cancel(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCancelled, f.repo.statusSet)
}

func TestStatementDataset(t *testing.T) {
	f := newInvoiceFixture()
	f.repo.invoice = sentInvoice()
	f.repo.invoice.InvoiceNumber = "INV-ALICESMITH-20260113-0042"
	f.repo.invoice.Kind = models.InvoiceKindPackage
	f.repo.invoice.SessionsIncluded = 10

	dataset, title, err := f.svc.Statement(context.Background(), "inv-1")
	require.NoError(t, err)

	assert.Equal(t, "Invoice INV-ALICESMITH-20260113-0042", title)
	require.Len(t, dataset.Rows, 1)
	row := dataset.Rows[0]
	assert.Equal(t, "Alice Smith", row["Student"])
	assert.Equal(t, "750.00", row["Amount"])
	assert.Equal(t, "package", row["Kind"])
	assert.Equal(t, "2026-01-13", row["Due"])
}

func TestMarkTutorInvoicePaid(t *testing.T) {
	f := newInvoiceFixture()
	f.tutorInvoices.invoice = &models.TutorInvoice{ID: "ti-1", Status: models.TutorInvoiceStatusApproved}

	invoice, err := f.svc.MarkTutorInvoicePaid(context.Background(), "ti-1")
	require.NoError(t, err)
	assert.Equal(t, "ti-1", invoice.ID)
	assert.Equal(t, testClock(), f.tutorInvoices.paidAt)
}

func TestMarkTutorInvoicePaidNotFound(t *testing.T) {
	f := newInvoiceFixture()

	_, err := f.svc.MarkTutorInvoicePaid(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarkTutorInvoicePaidRequiresApprovedStatus(t *testing.T) {
	f := newInvoiceFixture()
	f.tutorInvoices.invoice = &models.TutorInvoice{ID: "ti-1", Status: models.TutorInvoiceStatusPaid}
	f.tutorInvoices.markPaidErr = sql.ErrNoRows

	_, err := f.svc.MarkTutorInvoicePaid(context.Background(), "ti-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}
