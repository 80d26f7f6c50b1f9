package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/internal/repository"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type timesheetRepository interface {
	FindWeeklyByID(ctx context.Context, id string) (*models.WeeklyTimesheet, error)
	FindEditableForWeek(ctx context.Context, tutorID string, weekStart time.Time) (*models.WeeklyTimesheet, error)
	CreateWeekly(ctx context.Context, ts *models.WeeklyTimesheet) error
	ListWeekly(ctx context.Context, filter models.TimesheetFilter) ([]models.WeeklyTimesheet, int, error)
	ListEntries(ctx context.Context, timesheetID string) ([]models.TimesheetEntry, error)
	FindEntryByID(ctx context.Context, id string) (*models.TimesheetEntry, error)
	UpdateEntry(ctx context.Context, entry *models.TimesheetEntry) error
	History(ctx context.Context, timesheetID string) ([]models.TimesheetStatusHistory, error)
	Totals(ctx context.Context, timesheetID string) (*models.TimesheetTotals, error)
	LogSessionTx(ctx context.Context, entry *models.TimesheetEntry, candidate *models.Invoice, clearRecurringDate bool) (*repository.LogSessionResult, error)
	DeleteEntryTx(ctx context.Context, entry *models.TimesheetEntry) error
	SubmitTx(ctx context.Context, ts *models.WeeklyTimesheet, changedBy string) error
	ReviewTx(ctx context.Context, params repository.ReviewParams) (*models.TutorInvoice, error)
}

type rateResolver interface {
	Resolve(ctx context.Context, studentID, tutorID string) (models.ResolvedRates, error)
}

type invoicePreparer interface {
	PrepareSessionInvoice(ctx context.Context, student *models.Student) (*models.Invoice, bool, error)
}

type occurrenceReader interface {
	FindByID(ctx context.Context, id string) (*models.SessionOccurrence, error)
}

type sessionAlertResolver interface {
	ResolveForOccurrence(ctx context.Context, occurrence *models.SessionOccurrence, loggedAt time.Time) error
}

type tutorInvoiceReader interface {
	FindByTimesheet(ctx context.Context, timesheetID string) (*models.TutorInvoice, error)
}

// LogSessionRequest describes one tutoring session to record.
type LogSessionRequest struct {
	StudentID           string    `json:"student_id" validate:"required"`
	SessionDate         time.Time `json:"session_date" validate:"required"`
	DurationHours       float64   `json:"duration_hours" validate:"required,gt=0,lte=24"`
	Notes               string    `json:"notes"`
	SessionOccurrenceID *string   `json:"session_occurrence_id,omitempty"`
	GroupSessionID      *string   `json:"group_session_id,omitempty"`
}

// UpdateEntryRequest describes an edit to a logged session.
type UpdateEntryRequest struct {
	SessionDate   time.Time `json:"session_date" validate:"required"`
	DurationHours float64   `json:"duration_hours" validate:"required,gt=0,lte=24"`
	Notes         string    `json:"notes"`
}

// ReviewRequest carries an admin verdict on a submitted timesheet.
type ReviewRequest struct {
	Decision models.ReviewDecision `json:"decision" validate:"required,oneof=approve reject"`
	Notes    string                `json:"notes"`
}

// LogSessionResult reports what happened when a session was logged.
type LogSessionResult struct {
	Entry             *models.TimesheetEntry `json:"entry"`
	TimesheetID       string                 `json:"timesheet_id"`
	SessionsRemaining int                    `json:"sessions_remaining"`
	InvoiceIssued     bool                   `json:"invoice_issued"`
}

// TimesheetService drives the weekly timesheet workflow: logging sessions into
// an editable sheet, the tutor's submit, and the admin review that fans out
// into invoicing.
type TimesheetService struct {
	repo          timesheetRepository
	students      studentReader
	tutors        tutorReader
	occurrences   occurrenceReader
	tutorInvoices tutorInvoiceReader
	rates         rateResolver
	invoices      invoicePreparer
	alerts        sessionAlertResolver
	recomputeRate bool
	validator     *validator.Validate
	logger        *zap.Logger
	metrics       metricsRecorder
	clock         func() time.Time
}

// NewTimesheetService constructs TimesheetService. recomputeRates selects
// whether edits re-resolve rates from the current allocation instead of the
// student's current default rates.
func NewTimesheetService(repo timesheetRepository, students studentReader, tutors tutorReader,
	occurrences occurrenceReader, tutorInvoices tutorInvoiceReader, rates rateResolver,
	invoices invoicePreparer, alerts sessionAlertResolver, recomputeRates bool,
	validate *validator.Validate, logger *zap.Logger, metrics metricsRecorder) *TimesheetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &TimesheetService{
		repo:          repo,
		students:      students,
		tutors:        tutors,
		occurrences:   occurrences,
		tutorInvoices: tutorInvoices,
		rates:         rates,
		invoices:      invoices,
		alerts:        alerts,
		recomputeRate: recomputeRates,
		validator:     validate,
		logger:        logger,
		metrics:       metrics,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock, for tests.
func (s *TimesheetService) WithClock(clock func() time.Time) *TimesheetService {
	s.clock = clock
	return s
}

// LogSession records a session on the tutor's editable timesheet for the
// session's week, creating the sheet when needed. The entry insert, the
// student's credit decrement and any resulting package invoice commit
// together.
func (s *TimesheetService) LogSession(ctx context.Context, tutorID string, req LogSessionRequest) (*LogSessionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if _, err := s.tutors.FindByID(ctx, tutorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Internal(err, "failed to load tutor")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}

	rates, err := s.rates.Resolve(ctx, req.StudentID, tutorID)
	if err != nil {
		return nil, err
	}

	var occurrence *models.SessionOccurrence
	if req.SessionOccurrenceID != nil {
		occurrence, err = s.loadOccurrence(ctx, *req.SessionOccurrenceID, tutorID, req.StudentID)
		if err != nil {
			return nil, err
		}
	}

	sheet, err := s.editableSheetFor(ctx, tutorID, WeekStartOf(req.SessionDate))
	if err != nil {
		return nil, err
	}

	duration := decimal.NewFromFloat(req.DurationHours)
	entry := &models.TimesheetEntry{
		WeeklyTimesheetID:   sheet.ID,
		TutorID:             tutorID,
		StudentID:           req.StudentID,
		SessionDate:         req.SessionDate.UTC(),
		DurationHours:       duration,
		TutorEarnings:       rates.TutorRate.Mul(duration).Round(2),
		ParentBilling:       rates.ParentRate.Mul(duration).Round(2),
		Notes:               req.Notes,
		SessionOccurrenceID: req.SessionOccurrenceID,
		GroupSessionID:      req.GroupSessionID,
	}

	candidate, clearRecurring, err := s.invoices.PrepareSessionInvoice(ctx, student)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.LogSessionTx(ctx, entry, candidate, clearRecurring)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to log session")
	}
	s.metrics.SessionLogged()
	if result.Invoiced {
		s.metrics.InvoiceIssued(string(candidate.Kind))
	}

	if occurrence != nil && s.alerts != nil {
		if err := s.alerts.ResolveForOccurrence(ctx, occurrence, s.clock()); err != nil {
			s.logger.Warn("failed to resolve session alert",
				zap.String("occurrence_id", occurrence.ID), zap.Error(err))
		}
	}

	s.logger.Info("session logged",
		zap.String("tutor_id", tutorID),
		zap.String("student_id", req.StudentID),
		zap.String("timesheet_id", sheet.ID),
		zap.Int("sessions_remaining", result.Remaining),
		zap.Bool("invoice_issued", result.Invoiced),
	)
	return &LogSessionResult{
		Entry:             entry,
		TimesheetID:       sheet.ID,
		SessionsRemaining: result.Remaining,
		InvoiceIssued:     result.Invoiced,
	}, nil
}

// UpdateEntryByTutor edits a logged session. Only the owning tutor may edit,
// and only while the sheet is in an editable state.
func (s *TimesheetService) UpdateEntryByTutor(ctx context.Context, tutorID, entryID string, req UpdateEntryRequest) (*models.TimesheetEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}
	entry, sheet, err := s.ownedEditableEntry(ctx, tutorID, entryID)
	if err != nil {
		return nil, err
	}

	tutorRate, parentRate, err := s.ratesForEdit(ctx, entry)
	if err != nil {
		return nil, err
	}

	duration := decimal.NewFromFloat(req.DurationHours)
	entry.SessionDate = req.SessionDate.UTC()
	entry.DurationHours = duration
	entry.TutorEarnings = tutorRate.Mul(duration).Round(2)
	entry.ParentBilling = parentRate.Mul(duration).Round(2)
	entry.Notes = req.Notes

	if !WeekStartOf(entry.SessionDate).Equal(WeekStartOf(sheet.WeekStart)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session date must stay within the timesheet week")
	}
	if err := s.repo.UpdateEntry(ctx, entry); err != nil {
		return nil, appErrors.Internal(err, "failed to update entry")
	}
	return entry, nil
}

// ratesForEdit returns the per-hour rates to apply on an edit: the student's
// current default rates, or the current allocation when allocation
// recomputation is enabled.
func (s *TimesheetService) ratesForEdit(ctx context.Context, entry *models.TimesheetEntry) (decimal.Decimal, decimal.Decimal, error) {
	if s.recomputeRate {
		rates, err := s.rates.Resolve(ctx, entry.StudentID, entry.TutorID)
		if err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, err
		}
		return rates.TutorRate, rates.ParentRate, nil
	}
	student, err := s.students.FindByID(ctx, entry.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Decimal{}, decimal.Decimal{}, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return decimal.Decimal{}, decimal.Decimal{}, appErrors.Internal(err, "failed to load student")
	}
	return student.TutorRate, student.ParentRate, nil
}

// DeleteEntry removes a logged session and restores the student's credit.
func (s *TimesheetService) DeleteEntry(ctx context.Context, tutorID, entryID string) error {
	entry, _, err := s.ownedEditableEntry(ctx, tutorID, entryID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteEntryTx(ctx, entry); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "entry not found")
		}
		return appErrors.Internal(err, "failed to delete entry")
	}
	s.logger.Info("session entry deleted",
		zap.String("tutor_id", tutorID),
		zap.String("entry_id", entryID),
		zap.String("student_id", entry.StudentID),
	)
	return nil
}

// Submit hands a timesheet over for review. Rejected sheets resubmit along the
// same path, clearing the rejection notes.
func (s *TimesheetService) Submit(ctx context.Context, tutorID, timesheetID string) (*models.WeeklyTimesheet, error) {
	sheet, err := s.loadSheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	if sheet.TutorID != tutorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "timesheet belongs to another tutor")
	}
	if !sheet.Status.Editable() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot submit a %s timesheet", sheet.Status))
	}
	entries, err := s.repo.ListEntries(ctx, timesheetID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list entries")
	}
	if len(entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot submit an empty timesheet")
	}
	if err := s.repo.SubmitTx(ctx, sheet, tutorID); err != nil {
		return nil, appErrors.Internal(err, "failed to submit timesheet")
	}
	s.logger.Info("timesheet submitted",
		zap.String("timesheet_id", timesheetID),
		zap.String("tutor_id", tutorID),
		zap.Int("entries", len(entries)),
	)
	return s.loadSheet(ctx, timesheetID)
}

// ReviewResult bundles the outcome of an admin review.
type ReviewResult struct {
	Timesheet    *models.WeeklyTimesheet `json:"timesheet"`
	TutorInvoice *models.TutorInvoice    `json:"tutor_invoice,omitempty"`
}

// Review applies an approve/reject verdict to a submitted timesheet. Approval
// issues the tutor's payable for the week (at most once per sheet) and marks
// the affected students' open parent invoices approved, atomically with the
// status change.
func (s *TimesheetService) Review(ctx context.Context, reviewerID, timesheetID string, req ReviewRequest) (*ReviewResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	approve := req.Decision == models.ReviewDecisionApprove
	if !approve && req.Notes == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires notes")
	}

	sheet, err := s.loadSheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	if sheet.Status != models.TimesheetStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot review a %s timesheet", sheet.Status))
	}

	params := repository.ReviewParams{
		Timesheet:  sheet,
		ReviewerID: reviewerID,
		Approve:    approve,
		Notes:      req.Notes,
	}
	if approve {
		if existing, err := s.tutorInvoices.FindByTimesheet(ctx, timesheetID); err == nil && existing != nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "timesheet already invoiced")
		} else if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Internal(err, "failed to check tutor invoice")
		}
		tutor, err := s.tutors.FindByID(ctx, sheet.TutorID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
			}
			return nil, appErrors.Internal(err, "failed to load tutor")
		}
		params.InvoicePrefix = fmt.Sprintf("%s-%s-", invoiceSlug(tutor.FullName), s.clock().Format("20060102"))
	}

	invoice, err := s.repo.ReviewTx(ctx, params)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to review timesheet")
	}

	s.logger.Info("timesheet reviewed",
		zap.String("timesheet_id", timesheetID),
		zap.String("reviewer_id", reviewerID),
		zap.String("decision", string(req.Decision)),
		zap.Bool("tutor_invoice_issued", invoice != nil),
	)
	updated, err := s.loadSheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	return &ReviewResult{Timesheet: updated, TutorInvoice: invoice}, nil
}

// Get returns a timesheet with its entries.
func (s *TimesheetService) Get(ctx context.Context, timesheetID string) (*models.TimesheetDetail, error) {
	sheet, err := s.loadSheet(ctx, timesheetID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, timesheetID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list entries")
	}
	return &models.TimesheetDetail{WeeklyTimesheet: *sheet, Entries: entries}, nil
}

// Totals returns the aggregate earnings, billing and hours of a timesheet.
func (s *TimesheetService) Totals(ctx context.Context, timesheetID string) (*models.TimesheetTotals, error) {
	if _, err := s.loadSheet(ctx, timesheetID); err != nil {
		return nil, err
	}
	totals, err := s.repo.Totals(ctx, timesheetID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to aggregate timesheet")
	}
	return totals, nil
}

// History returns the status audit trail of a timesheet.
func (s *TimesheetService) History(ctx context.Context, timesheetID string) ([]models.TimesheetStatusHistory, error) {
	if _, err := s.loadSheet(ctx, timesheetID); err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, timesheetID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load status history")
	}
	return history, nil
}

// List returns timesheets matching the filter.
func (s *TimesheetService) List(ctx context.Context, filter models.TimesheetFilter) ([]models.WeeklyTimesheet, *models.Pagination, error) {
	sheets, total, err := s.repo.ListWeekly(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list timesheets")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sheets, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// editableSheetFor finds the editable sheet for the tutor+week or starts a new
// draft. Submitted and approved sheets are never reused.
func (s *TimesheetService) editableSheetFor(ctx context.Context, tutorID string, weekStart time.Time) (*models.WeeklyTimesheet, error) {
	sheet, err := s.repo.FindEditableForWeek(ctx, tutorID, weekStart)
	if err == nil {
		return sheet, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Internal(err, "failed to load timesheet")
	}
	sheet = &models.WeeklyTimesheet{TutorID: tutorID, WeekStart: weekStart}
	if err := s.repo.CreateWeekly(ctx, sheet); err != nil {
		return nil, appErrors.Internal(err, "failed to create timesheet")
	}
	return sheet, nil
}

func (s *TimesheetService) ownedEditableEntry(ctx context.Context, tutorID, entryID string) (*models.TimesheetEntry, *models.WeeklyTimesheet, error) {
	entry, err := s.repo.FindEntryByID(ctx, entryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "entry not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load entry")
	}
	if entry.TutorID != tutorID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "entry belongs to another tutor")
	}
	sheet, err := s.loadSheet(ctx, entry.WeeklyTimesheetID)
	if err != nil {
		return nil, nil, err
	}
	if !sheet.Status.Editable() {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot modify entries of a %s timesheet", sheet.Status))
	}
	return entry, sheet, nil
}

func (s *TimesheetService) loadOccurrence(ctx context.Context, id, tutorID, studentID string) (*models.SessionOccurrence, error) {
	occurrence, err := s.occurrences.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session occurrence not found")
		}
		return nil, appErrors.Internal(err, "failed to load occurrence")
	}
	if occurrence.TutorID != tutorID || occurrence.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "occurrence does not match tutor and student")
	}
	if occurrence.TimesheetEntryID != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "occurrence already logged")
	}
	return occurrence, nil
}

func (s *TimesheetService) loadSheet(ctx context.Context, id string) (*models.WeeklyTimesheet, error) {
	sheet, err := s.repo.FindWeeklyByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timesheet not found")
		}
		return nil, appErrors.Internal(err, "failed to load timesheet")
	}
	return sheet, nil
}
