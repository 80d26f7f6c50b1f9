package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/internal/repository"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type timesheetRepoStub struct {
	sheet       *models.WeeklyTimesheet
	editable    *models.WeeklyTimesheet
	created     *models.WeeklyTimesheet
	entries     []models.TimesheetEntry
	entry       *models.TimesheetEntry
	totals      *models.TimesheetTotals
	history     []models.TimesheetStatusHistory
	logResult   *repository.LogSessionResult
	logErr      error

	loggedEntry     *models.TimesheetEntry
	loggedCandidate *models.Invoice
	loggedClear     bool
	updatedEntry    *models.TimesheetEntry
	deletedEntry    *models.TimesheetEntry
	submittedBy     string
	reviewParams    *repository.ReviewParams
	reviewInvoice   *models.TutorInvoice
}

func (s *timesheetRepoStub) FindWeeklyByID(ctx context.Context, id string) (*models.WeeklyTimesheet, error) {
	if s.sheet == nil || s.sheet.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.sheet, nil
}

func (s *timesheetRepoStub) FindEditableForWeek(ctx context.Context, tutorID string, weekStart time.Time) (*models.WeeklyTimesheet, error) {
	if s.editable == nil {
		return nil, sql.ErrNoRows
	}
	return s.editable, nil
}

func (s *timesheetRepoStub) CreateWeekly(ctx context.Context, ts *models.WeeklyTimesheet) error {
	ts.ID = "ts-new"
	ts.Status = models.TimesheetStatusDraft
	s.created = ts
	return nil
}

func (s *timesheetRepoStub) ListWeekly(ctx context.Context, filter models.TimesheetFilter) ([]models.WeeklyTimesheet, int, error) {
	if s.sheet == nil {
		return nil, 0, nil
	}
	return []models.WeeklyTimesheet{*s.sheet}, 1, nil
}

func (s *timesheetRepoStub) ListEntries(ctx context.Context, timesheetID string) ([]models.TimesheetEntry, error) {
	return s.entries, nil
}

func (s *timesheetRepoStub) FindEntryByID(ctx context.Context, id string) (*models.TimesheetEntry, error) {
	if s.entry == nil || s.entry.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.entry, nil
}

func (s *timesheetRepoStub) UpdateEntry(ctx context.Context, entry *models.TimesheetEntry) error {
	s.updatedEntry = entry
	return nil
}

func (s *timesheetRepoStub) History(ctx context.Context, timesheetID string) ([]models.TimesheetStatusHistory, error) {
	return s.history, nil
}

func (s *timesheetRepoStub) Totals(ctx context.Context, timesheetID string) (*models.TimesheetTotals, error) {
	return s.totals, nil
}

func (s *timesheetRepoStub) LogSessionTx(ctx context.Context, entry *models.TimesheetEntry, candidate *models.Invoice, clearRecurringDate bool) (*repository.LogSessionResult, error) {
	s.loggedEntry = entry
	s.loggedCandidate = candidate
	s.loggedClear = clearRecurringDate
	if s.logErr != nil {
		return nil, s.logErr
	}
	return s.logResult, nil
}

func (s *timesheetRepoStub) DeleteEntryTx(ctx context.Context, entry *models.TimesheetEntry) error {
	s.deletedEntry = entry
	return nil
}

func (s *timesheetRepoStub) SubmitTx(ctx context.Context, ts *models.WeeklyTimesheet, changedBy string) error {
	s.submittedBy = changedBy
	return nil
}

func (s *timesheetRepoStub) ReviewTx(ctx context.Context, params repository.ReviewParams) (*models.TutorInvoice, error) {
	s.reviewParams = &params
	return s.reviewInvoice, nil
}

type tsStudentStub struct {
	student *models.Student
	err     error
}

func (s *tsStudentStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.student, nil
}

type tsTutorStub struct {
	tutor *models.Tutor
	err   error
}

func (s *tsTutorStub) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tutor, nil
}

type tsOccurrenceStub struct {
	occurrence *models.SessionOccurrence
}

func (s *tsOccurrenceStub) FindByID(ctx context.Context, id string) (*models.SessionOccurrence, error) {
	if s.occurrence == nil {
		return nil, sql.ErrNoRows
	}
	return s.occurrence, nil
}

type tsTutorInvoiceStub struct {
	invoice *models.TutorInvoice
	err     error
}

func (s *tsTutorInvoiceStub) FindByTimesheet(ctx context.Context, timesheetID string) (*models.TutorInvoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.invoice == nil {
		return nil, sql.ErrNoRows
	}
	return s.invoice, nil
}

type tsRateStub struct {
	rates models.ResolvedRates
	err   error
}

func (s *tsRateStub) Resolve(ctx context.Context, studentID, tutorID string) (models.ResolvedRates, error) {
	return s.rates, s.err
}

type tsInvoicePrepStub struct {
	candidate *models.Invoice
	clear     bool
	student   *models.Student
}

func (s *tsInvoicePrepStub) PrepareSessionInvoice(ctx context.Context, student *models.Student) (*models.Invoice, bool, error) {
	s.student = student
	return s.candidate, s.clear, nil
}

type tsAlertStub struct {
	resolved *models.SessionOccurrence
	loggedAt time.Time
}

func (s *tsAlertStub) ResolveForOccurrence(ctx context.Context, occurrence *models.SessionOccurrence, loggedAt time.Time) error {
	s.resolved = occurrence
	s.loggedAt = loggedAt
	return nil
}

type metricsStub struct {
	sessions  int
	invoices  map[string]int
	alerts    map[string]int
	reminders map[string]int
}

func newMetricsStub() *metricsStub {
	return &metricsStub{
		invoices:  map[string]int{},
		alerts:    map[string]int{},
		reminders: map[string]int{},
	}
}

func (m *metricsStub) SessionLogged()            { m.sessions++ }
func (m *metricsStub) InvoiceIssued(kind string) { m.invoices[kind]++ }
func (m *metricsStub) AlertRaised(kind string)   { m.alerts[kind]++ }
func (m *metricsStub) ReminderSent(stage string) { m.reminders[stage]++ }

type timesheetFixture struct {
	repo          *timesheetRepoStub
	students      *tsStudentStub
	tutors        *tsTutorStub
	occurrences   *tsOccurrenceStub
	tutorInvoices *tsTutorInvoiceStub
	rates         *tsRateStub
	invoices      *tsInvoicePrepStub
	alerts        *tsAlertStub
	metrics       *metricsStub
	svc           *TimesheetService
}

var testClock = func() time.Time {
	return time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)
}

func newTimesheetFixture(recompute bool) *timesheetFixture {
	f := &timesheetFixture{
		repo: &timesheetRepoStub{
			editable: &models.WeeklyTimesheet{
				ID:        "ts-1",
				TutorID:   "tutor-1",
				WeekStart: time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC),
				Status:    models.TimesheetStatusDraft,
			},
			logResult: &repository.LogSessionResult{Remaining: 5},
		},
		students: &tsStudentStub{student: &models.Student{
			ID:             "student-1",
			FullName:       "Alice Smith",
			ParentRate:     decimal.NewFromInt(75),
			TutorRate:      decimal.NewFromInt(30),
			SessionsBooked: 10,
		}},
		tutors:        &tsTutorStub{tutor: &models.Tutor{ID: "tutor-1", FullName: "Jane Doe"}},
		occurrences:   &tsOccurrenceStub{},
		tutorInvoices: &tsTutorInvoiceStub{err: sql.ErrNoRows},
		rates: &tsRateStub{rates: models.ResolvedRates{
			TutorRate:  decimal.NewFromInt(30),
			ParentRate: decimal.NewFromInt(75),
		}},
		invoices: &tsInvoicePrepStub{candidate: &models.Invoice{Kind: models.InvoiceKindPackage}},
		alerts:   &tsAlertStub{},
		metrics:  newMetricsStub(),
	}
	f.svc = NewTimesheetService(f.repo, f.students, f.tutors, f.occurrences, f.tutorInvoices,
		f.rates, f.invoices, f.alerts, recompute, nil, zap.NewNop(), f.metrics).WithClock(testClock)
	return f
}

func TestLogSessionSnapshotsRates(t *testing.T) {
	f := newTimesheetFixture(false)

	result, err := f.svc.LogSession(context.Background(), "tutor-1", LogSessionRequest{
		StudentID:     "student-1",
		SessionDate:   time.Date(2026, time.January, 14, 16, 0, 0, 0, time.UTC),
		DurationHours: 1.5,
		Notes:         "algebra",
	})
	require.NoError(t, err)

	assert.Equal(t, "ts-1", result.TimesheetID)
	assert.Equal(t, 5, result.SessionsRemaining)
	assert.False(t, result.InvoiceIssued)
	assert.True(t, result.Entry.TutorEarnings.Equal(decimal.RequireFromString("45.00")))
	assert.True(t, result.Entry.ParentBilling.Equal(decimal.RequireFromString("112.50")))
	assert.Equal(t, 1, f.metrics.sessions)
	assert.Empty(t, f.metrics.invoices)
	require.NotNil(t, f.invoices.student)
	assert.Equal(t, "student-1", f.invoices.student.ID)
}

func TestLogSessionCreatesDraftWhenNoEditableSheet(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.editable = nil

	result, err := f.svc.LogSession(context.Background(), "tutor-1", LogSessionRequest{
		StudentID:     "student-1",
		SessionDate:   time.Date(2026, time.January, 14, 16, 0, 0, 0, time.UTC),
		DurationHours: 1,
	})
	require.NoError(t, err)

	require.NotNil(t, f.repo.created)
	assert.Equal(t, "ts-new", result.TimesheetID)
	assert.Equal(t, "tutor-1", f.repo.created.TutorID)
	assert.Equal(t, time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC), f.repo.created.WeekStart)
}

func TestLogSessionIssuesInvoiceOnCrossing(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.logResult = &repository.LogSessionResult{Remaining: 0, Invoiced: true}

	result, err := f.svc.LogSession(context.Background(), "tutor-1", LogSessionRequest{
		StudentID:     "student-1",
		SessionDate:   time.Date(2026, time.January, 14, 16, 0, 0, 0, time.UTC),
		DurationHours: 1,
	})
	require.NoError(t, err)

	assert.True(t, result.InvoiceIssued)
	assert.Equal(t, 0, result.SessionsRemaining)
	assert.Equal(t, 1, f.metrics.invoices[string(models.InvoiceKindPackage)])
	assert.Same(t, f.invoices.candidate, f.repo.loggedCandidate)
}

func TestLogSessionUnknownStudent(t *testing.T) {
	f := newTimesheetFixture(false)
	f.students.err = sql.ErrNoRows

	_, err := f.svc.LogSession(context.Background(), "tutor-1", LogSessionRequest{
		StudentID:     "missing",
		SessionDate:   testClock(),
		DurationHours: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLogSessionRejectsInvalidDuration(t *testing.T) {
	f := newTimesheetFixture(false)

	_, err := f.svc.LogSession(context.Background(), "tutor-1", LogSessionRequest{
		StudentID:     "student-1",
		SessionDate:   testClock(),
		DurationHours: 25,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLogSessionOccurrenceMismatch(t *testing.T) {
	f := newTimesheetFixture(false)
	occID := "occ-1"
	f.occurrences.occurrence = &models.SessionOccurrence{
		ID:        occID,
		TutorID:   "someone-else",
		StudentID: "student-1",
	}

	_, err := f.svc.LogSession(context.Background(), "tutor-1", LogSessionRequest{
		StudentID:           "student-1",
		SessionDate:         testClock(),
		DurationHours:       1,
		SessionOccurrenceID: &occID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLogSessionOccurrenceAlreadyLogged(t *testing.T) {
	f := newTimesheetFixture(false)
	occID := "occ-1"
	entryID := "entry-9"
	f.occurrences.occurrence = &models.SessionOccurrence{
		ID:               occID,
		TutorID:          "tutor-1",
		StudentID:        "student-1",
		TimesheetEntryID: &entryID,
	}

	_, err := f.svc.LogSession(context.Background(), "tutor-1", LogSessionRequest{
		StudentID:           "student-1",
		SessionDate:         testClock(),
		DurationHours:       1,
		SessionOccurrenceID: &occID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLogSessionResolvesPendingAlert(t *testing.T) {
	f := newTimesheetFixture(false)
	occID := "occ-1"
	f.occurrences.occurrence = &models.SessionOccurrence{
		ID:        occID,
		TutorID:   "tutor-1",
		StudentID: "student-1",
		EndsAt:    time.Date(2026, time.January, 13, 17, 0, 0, 0, time.UTC),
	}

	_, err := f.svc.LogSession(context.Background(), "tutor-1", LogSessionRequest{
		StudentID:           "student-1",
		SessionDate:         time.Date(2026, time.January, 13, 16, 0, 0, 0, time.UTC),
		DurationHours:       1,
		SessionOccurrenceID: &occID,
	})
	require.NoError(t, err)

	require.NotNil(t, f.alerts.resolved)
	assert.Equal(t, occID, f.alerts.resolved.ID)
	assert.Equal(t, testClock(), f.alerts.loggedAt)
}

func editableEntry() *models.TimesheetEntry {
	return &models.TimesheetEntry{
		ID:                "entry-1",
		WeeklyTimesheetID: "ts-1",
		TutorID:           "tutor-1",
		StudentID:         "student-1",
		SessionDate:       time.Date(2026, time.January, 13, 16, 0, 0, 0, time.UTC),
		DurationHours:     decimal.NewFromInt(2),
		TutorEarnings:     decimal.NewFromInt(60),
		ParentBilling:     decimal.NewFromInt(150),
	}
}

func TestUpdateEntryUsesStudentDefaultRates(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = f.repo.editable
	f.repo.entry = editableEntry()
	// The student's defaults have changed since the entry was logged; the edit
	// picks them up. Allocation rates differ too and must not apply here.
	f.students.student.TutorRate = decimal.NewFromInt(32)
	f.students.student.ParentRate = decimal.NewFromInt(78)
	f.rates.rates = models.ResolvedRates{
		TutorRate:  decimal.NewFromInt(40),
		ParentRate: decimal.NewFromInt(80),
	}

	entry, err := f.svc.UpdateEntryByTutor(context.Background(), "tutor-1", "entry-1", UpdateEntryRequest{
		SessionDate:   time.Date(2026, time.January, 14, 16, 0, 0, 0, time.UTC),
		DurationHours: 3,
	})
	require.NoError(t, err)

	assert.True(t, entry.TutorEarnings.Equal(decimal.RequireFromString("96.00")))
	assert.True(t, entry.ParentBilling.Equal(decimal.RequireFromString("234.00")))
	assert.NotNil(t, f.repo.updatedEntry)
}

func TestUpdateEntryRecomputesWhenConfigured(t *testing.T) {
	f := newTimesheetFixture(true)
	f.repo.sheet = f.repo.editable
	f.repo.entry = editableEntry()
	f.rates.rates = models.ResolvedRates{
		TutorRate:  decimal.NewFromInt(40),
		ParentRate: decimal.NewFromInt(80),
	}

	entry, err := f.svc.UpdateEntryByTutor(context.Background(), "tutor-1", "entry-1", UpdateEntryRequest{
		SessionDate:   time.Date(2026, time.January, 14, 16, 0, 0, 0, time.UTC),
		DurationHours: 2,
	})
	require.NoError(t, err)

	assert.True(t, entry.TutorEarnings.Equal(decimal.RequireFromString("80.00")))
	assert.True(t, entry.ParentBilling.Equal(decimal.RequireFromString("160.00")))
}

func TestUpdateEntryRejectsWeekChange(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = f.repo.editable
	f.repo.entry = editableEntry()

	_, err := f.svc.UpdateEntryByTutor(context.Background(), "tutor-1", "entry-1", UpdateEntryRequest{
		SessionDate:   time.Date(2026, time.January, 21, 16, 0, 0, 0, time.UTC),
		DurationHours: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateEntryForbiddenForOtherTutor(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = f.repo.editable
	f.repo.entry = editableEntry()

	_, err := f.svc.UpdateEntryByTutor(context.Background(), "intruder", "entry-1", UpdateEntryRequest{
		SessionDate:   time.Date(2026, time.January, 14, 16, 0, 0, 0, time.UTC),
		DurationHours: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpdateEntryBlockedOnSubmittedSheet(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = &models.WeeklyTimesheet{
		ID:        "ts-1",
		TutorID:   "tutor-1",
		WeekStart: time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC),
		Status:    models.TimesheetStatusSubmitted,
	}
	f.repo.entry = editableEntry()

	_, err := f.svc.UpdateEntryByTutor(context.Background(), "tutor-1", "entry-1", UpdateEntryRequest{
		SessionDate:   time.Date(2026, time.January, 14, 16, 0, 0, 0, time.UTC),
		DurationHours: 1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestDeleteEntryRestoresCredit(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = f.repo.editable
	f.repo.entry = editableEntry()

	err := f.svc.DeleteEntry(context.Background(), "tutor-1", "entry-1")
	require.NoError(t, err)
	require.NotNil(t, f.repo.deletedEntry)
	assert.Equal(t, "entry-1", f.repo.deletedEntry.ID)
}

func TestSubmitRejectsEmptyTimesheet(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = f.repo.editable
	f.repo.entries = nil

	_, err := f.svc.Submit(context.Background(), "tutor-1", "ts-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSubmitRejectsApprovedTimesheet(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = &models.WeeklyTimesheet{ID: "ts-1", TutorID: "tutor-1", Status: models.TimesheetStatusApproved}

	_, err := f.svc.Submit(context.Background(), "tutor-1", "ts-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSubmitForbiddenForOtherTutor(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = f.repo.editable

	_, err := f.svc.Submit(context.Background(), "intruder", "ts-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitHandsOverRejectedSheet(t *testing.T) {
	f := newTimesheetFixture(false)
	notes := "fix hours"
	f.repo.sheet = &models.WeeklyTimesheet{
		ID:             "ts-1",
		TutorID:        "tutor-1",
		Status:         models.TimesheetStatusRejected,
		RejectionNotes: &notes,
	}
	f.repo.entries = []models.TimesheetEntry{*editableEntry()}

	_, err := f.svc.Submit(context.Background(), "tutor-1", "ts-1")
	require.NoError(t, err)
	assert.Equal(t, "tutor-1", f.repo.submittedBy)
}

func submittedSheet() *models.WeeklyTimesheet {
	return &models.WeeklyTimesheet{
		ID:        "ts-1",
		TutorID:   "tutor-1",
		WeekStart: time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC),
		Status:    models.TimesheetStatusSubmitted,
	}
}

func TestReviewRejectRequiresNotes(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = submittedSheet()

	_, err := f.svc.Review(context.Background(), "admin-1", "ts-1", ReviewRequest{
		Decision: models.ReviewDecisionReject,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReviewOnlySubmittedSheets(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = f.repo.editable // draft

	_, err := f.svc.Review(context.Background(), "admin-1", "ts-1", ReviewRequest{
		Decision: models.ReviewDecisionApprove,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestReviewApproveIssuesTutorInvoice(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = submittedSheet()
	f.repo.reviewInvoice = &models.TutorInvoice{
		ID:            "ti-1",
		InvoiceNumber: "JANEDOE-20260115-0001",
		Status:        models.TutorInvoiceStatusApproved,
	}

	result, err := f.svc.Review(context.Background(), "admin-1", "ts-1", ReviewRequest{
		Decision: models.ReviewDecisionApprove,
	})
	require.NoError(t, err)

	require.NotNil(t, f.repo.reviewParams)
	assert.True(t, f.repo.reviewParams.Approve)
	assert.Equal(t, "admin-1", f.repo.reviewParams.ReviewerID)
	assert.Equal(t, "JANEDOE-20260115-", f.repo.reviewParams.InvoicePrefix)
	require.NotNil(t, result.TutorInvoice)
	assert.Equal(t, "ti-1", result.TutorInvoice.ID)
}

func TestReviewApproveConflictsWhenAlreadyInvoiced(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = submittedSheet()
	f.tutorInvoices.err = nil
	f.tutorInvoices.invoice = &models.TutorInvoice{ID: "ti-existing", WeeklyTimesheetID: "ts-1"}

	_, err := f.svc.Review(context.Background(), "admin-1", "ts-1", ReviewRequest{
		Decision: models.ReviewDecisionApprove,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReviewRejectSkipsInvoicing(t *testing.T) {
	f := newTimesheetFixture(false)
	f.repo.sheet = submittedSheet()

	result, err := f.svc.Review(context.Background(), "admin-1", "ts-1", ReviewRequest{
		Decision: models.ReviewDecisionReject,
		Notes:    "wrong durations",
	})
	require.NoError(t, err)

	require.NotNil(t, f.repo.reviewParams)
	assert.False(t, f.repo.reviewParams.Approve)
	assert.Equal(t, "wrong durations", f.repo.reviewParams.Notes)
	assert.Empty(t, f.repo.reviewParams.InvoicePrefix)
	assert.Nil(t, result.TutorInvoice)
}
