package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/agency-api/internal/models"
)

func newTimesheetRepoMock(t *testing.T) (*TimesheetRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewTimesheetRepository(sqlxDB), mock, func() { sqlxDB.Close() }
}

func testEntry() *models.TimesheetEntry {
	return &models.TimesheetEntry{
		WeeklyTimesheetID: "ts-1",
		TutorID:           "tutor-1",
		StudentID:         "student-1",
		SessionDate:       time.Date(2026, time.January, 14, 16, 0, 0, 0, time.UTC),
		DurationHours:     decimal.NewFromInt(1),
		TutorEarnings:     decimal.NewFromInt(30),
		ParentBilling:     decimal.NewFromInt(75),
	}
}

func TestLogSessionTxWithoutCrossingSkipsInvoice(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timesheet_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET sessions_remaining = sessions_remaining - 1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"sessions_remaining"}).AddRow(3))
	mock.ExpectCommit()

	candidate := &models.Invoice{StudentID: "student-1", Kind: models.InvoiceKindPackage}
	result, err := repo.LogSessionTx(context.Background(), testEntry(), candidate, false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Remaining)
	assert.False(t, result.Invoiced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogSessionTxIssuesInvoiceOnCrossing(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timesheet_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET sessions_remaining = sessions_remaining - 1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"sessions_remaining"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET status = $2")).
		WithArgs("student-1", models.InvoiceStatusOverdue, models.InvoiceStatusSent, models.InvoiceStatusPartial).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET recurring_invoice_send_date = NULL")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	candidate := &models.Invoice{StudentID: "student-1", Kind: models.InvoiceKindRecurring}
	result, err := repo.LogSessionTx(context.Background(), testEntry(), candidate, true)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Remaining)
	assert.True(t, result.Invoiced)
	assert.NotEmpty(t, candidate.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogSessionTxBalanceAlreadyConsumed(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timesheet_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET sessions_remaining = sessions_remaining - 1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"sessions_remaining"}).AddRow(-2))
	mock.ExpectCommit()

	candidate := &models.Invoice{StudentID: "student-1", Kind: models.InvoiceKindPackage}
	result, err := repo.LogSessionTx(context.Background(), testEntry(), candidate, false)
	require.NoError(t, err)

	// The boundary was crossed on an earlier call; no second invoice.
	assert.False(t, result.Invoiced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogSessionTxLinksOccurrence(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	entry := testEntry()
	occID := "occ-1"
	entry.SessionOccurrenceID = &occID

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timesheet_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE session_occurrences SET timesheet_entry_id = $2")).
		WithArgs(occID, sqlmock.AnyArg(), models.OccurrenceStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET sessions_remaining = sessions_remaining - 1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"sessions_remaining"}).AddRow(4))
	mock.ExpectCommit()

	_, err := repo.LogSessionTx(context.Background(), entry, nil, false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewTxApproveIssuesTutorInvoice(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	sheet := &models.WeeklyTimesheet{
		ID:      "ts-1",
		TutorID: "tutor-1",
		Status:  models.TimesheetStatusSubmitted,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE weekly_timesheets")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timesheet_entries SET status = $2")).
		WithArgs("ts-1", models.EntryStatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timesheet_status_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(tutor_earnings), 0)")).
		WithArgs("ts-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_earnings", "total_billing", "total_hours", "entry_count"}).
			AddRow("90.00", "225.00", "3", 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tutor_invoices")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tutor_invoices")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	invoice, err := repo.ReviewTx(context.Background(), ReviewParams{
		Timesheet:     sheet,
		ReviewerID:    "admin-1",
		Approve:       true,
		InvoicePrefix: "JANEDOE-20260115-",
	})
	require.NoError(t, err)

	require.NotNil(t, invoice)
	assert.Equal(t, "JANEDOE-20260115-0042", invoice.InvoiceNumber)
	assert.True(t, invoice.Amount.Equal(decimal.RequireFromString("90.00")))
	assert.Equal(t, models.TutorInvoiceStatusApproved, invoice.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewTxApproveZeroEarningsSkipsInvoice(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	sheet := &models.WeeklyTimesheet{ID: "ts-1", TutorID: "tutor-1", Status: models.TimesheetStatusSubmitted}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE weekly_timesheets")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timesheet_entries SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timesheet_status_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(tutor_earnings), 0)")).
		WithArgs("ts-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_earnings", "total_billing", "total_hours", "entry_count"}).
			AddRow("0", "0", "0", 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	invoice, err := repo.ReviewTx(context.Background(), ReviewParams{
		Timesheet: sheet, ReviewerID: "admin-1", Approve: true,
	})
	require.NoError(t, err)
	assert.Nil(t, invoice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewTxRejectStopsAfterAudit(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	sheet := &models.WeeklyTimesheet{ID: "ts-1", TutorID: "tutor-1", Status: models.TimesheetStatusSubmitted}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE weekly_timesheets")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timesheet_entries SET status = $2")).
		WithArgs("ts-1", models.EntryStatusRejected).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timesheet_status_history")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	invoice, err := repo.ReviewTx(context.Background(), ReviewParams{
		Timesheet:  sheet,
		ReviewerID: "admin-1",
		Approve:    false,
		Notes:      "wrong durations",
	})
	require.NoError(t, err)
	assert.Nil(t, invoice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEntryTxRestoresCredit(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	entry := testEntry()
	entry.ID = "entry-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE session_occurrences SET timesheet_entry_id = NULL")).
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timesheet_entries WHERE id = $1")).
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET sessions_remaining = sessions_remaining + 1")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteEntryTx(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindEditableForWeekFilters(t *testing.T) {
	repo, mock, closeFn := newTimesheetRepoMock(t)
	defer closeFn()

	weekStart := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "tutor_id", "week_start", "status", "rejection_notes",
		"submitted_at", "reviewed_at", "reviewed_by", "created_at"}).
		AddRow("ts-1", "tutor-1", weekStart, "draft", nil, nil, nil, nil, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM weekly_timesheets")).
		WithArgs("tutor-1", weekStart, models.TimesheetStatusDraft, models.TimesheetStatusRejected).
		WillReturnRows(rows)

	sheet, err := repo.FindEditableForWeek(context.Background(), "tutor-1", weekStart)
	require.NoError(t, err)
	assert.Equal(t, "ts-1", sheet.ID)
	assert.Equal(t, models.TimesheetStatusDraft, sheet.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
