package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/brightpath/agency-api/internal/models"
)

// TimesheetRepository handles persistence of weekly timesheets, their entries
// and the status audit trail.
type TimesheetRepository struct {
	db *sqlx.DB
}

// NewTimesheetRepository constructs the repository.
func NewTimesheetRepository(db *sqlx.DB) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

const weeklyColumns = `id, tutor_id, week_start, status, rejection_notes, submitted_at, reviewed_at, reviewed_by, created_at`

const entryColumns = `id, weekly_timesheet_id, tutor_id, student_id, session_date, duration_hours,
        tutor_earnings, parent_billing, status, notes, session_occurrence_id, group_session_id, created_at, updated_at`

// FindWeeklyByID returns a weekly timesheet by its ID.
func (r *TimesheetRepository) FindWeeklyByID(ctx context.Context, id string) (*models.WeeklyTimesheet, error) {
	query := fmt.Sprintf("SELECT %s FROM weekly_timesheets WHERE id = $1", weeklyColumns)
	var ts models.WeeklyTimesheet
	if err := r.db.GetContext(ctx, &ts, query, id); err != nil {
		return nil, err
	}
	return &ts, nil
}

// FindEditableForWeek returns the most recently created draft or rejected
// timesheet for the tutor+week, or sql.ErrNoRows when none is editable.
// Submitted and approved sheets for the same week are never reused.
func (r *TimesheetRepository) FindEditableForWeek(ctx context.Context, tutorID string, weekStart time.Time) (*models.WeeklyTimesheet, error) {
	query := fmt.Sprintf(`SELECT %s FROM weekly_timesheets
        WHERE tutor_id = $1 AND week_start = $2 AND status IN ($3, $4)
        ORDER BY created_at DESC LIMIT 1`, weeklyColumns)
	var ts models.WeeklyTimesheet
	if err := r.db.GetContext(ctx, &ts, query, tutorID, weekStart, models.TimesheetStatusDraft, models.TimesheetStatusRejected); err != nil {
		return nil, err
	}
	return &ts, nil
}

// CreateWeekly persists a new draft timesheet.
func (r *TimesheetRepository) CreateWeekly(ctx context.Context, ts *models.WeeklyTimesheet) error {
	if ts.ID == "" {
		ts.ID = uuid.NewString()
	}
	if ts.Status == "" {
		ts.Status = models.TimesheetStatusDraft
	}
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO weekly_timesheets (id, tutor_id, week_start, status, rejection_notes, submitted_at, reviewed_at, reviewed_by, created_at)
        VALUES (:id, :tutor_id, :week_start, :status, :rejection_notes, :submitted_at, :reviewed_at, :reviewed_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ts); err != nil {
		return fmt.Errorf("create weekly timesheet: %w", err)
	}
	return nil
}

// ListWeekly returns timesheets filtered by the provided criteria.
func (r *TimesheetRepository) ListWeekly(ctx context.Context, filter models.TimesheetFilter) ([]models.WeeklyTimesheet, int, error) {
	var conditions []string
	var args []interface{}

	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.WeekStart != nil {
		conditions = append(conditions, fmt.Sprintf("week_start = $%d", len(args)+1))
		args = append(args, *filter.WeekStart)
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

	query := fmt.Sprintf("SELECT %s FROM weekly_timesheets%s ORDER BY week_start DESC, created_at DESC LIMIT %d OFFSET %d",
		weeklyColumns, clause, size, offset)
	var sheets []models.WeeklyTimesheet
	if err := r.db.SelectContext(ctx, &sheets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timesheets: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM weekly_timesheets" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timesheets: %w", err)
	}
	return sheets, total, nil
}

// ListEntries returns all entries of a timesheet.
func (r *TimesheetRepository) ListEntries(ctx context.Context, timesheetID string) ([]models.TimesheetEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timesheet_entries WHERE weekly_timesheet_id = $1 ORDER BY session_date, created_at", entryColumns)
	var entries []models.TimesheetEntry
	if err := r.db.SelectContext(ctx, &entries, query, timesheetID); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// FindEntryByID returns a single entry.
func (r *TimesheetRepository) FindEntryByID(ctx context.Context, id string) (*models.TimesheetEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timesheet_entries WHERE id = $1", entryColumns)
	var entry models.TimesheetEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateEntry rewrites the mutable fields of an entry.
func (r *TimesheetRepository) UpdateEntry(ctx context.Context, entry *models.TimesheetEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timesheet_entries
        SET session_date = :session_date, duration_hours = :duration_hours, tutor_earnings = :tutor_earnings,
            parent_billing = :parent_billing, notes = :notes, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

// History returns the status audit trail for a timesheet.
func (r *TimesheetRepository) History(ctx context.Context, timesheetID string) ([]models.TimesheetStatusHistory, error) {
	const query = `SELECT id, weekly_timesheet_id, from_status, to_status, changed_by, notes, created_at
        FROM timesheet_status_history WHERE weekly_timesheet_id = $1 ORDER BY created_at`
	var history []models.TimesheetStatusHistory
	if err := r.db.SelectContext(ctx, &history, query, timesheetID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return history, nil
}

// Totals aggregates a timesheet's entries.
func (r *TimesheetRepository) Totals(ctx context.Context, timesheetID string) (*models.TimesheetTotals, error) {
	const query = `SELECT COALESCE(SUM(tutor_earnings), 0) AS total_earnings,
        COALESCE(SUM(parent_billing), 0) AS total_billing,
        COALESCE(SUM(duration_hours), 0) AS total_hours,
        COUNT(*) AS entry_count
        FROM timesheet_entries WHERE weekly_timesheet_id = $1`
	var totals models.TimesheetTotals
	if err := r.db.GetContext(ctx, &totals, query, timesheetID); err != nil {
		return nil, fmt.Errorf("timesheet totals: %w", err)
	}
	return &totals, nil
}

// LogSessionResult reports the outcome of the atomic session logging write.
type LogSessionResult struct {
	Remaining int
	Invoiced  bool
}

// LogSessionTx inserts the entry, decrements the student's session credit and,
// when the balance crosses into zero or below, issues the prepared candidate
// invoice — all in a single transaction. Outstanding sent/partial invoices of
// the student are superseded (marked overdue) before the new one is inserted.
func (r *TimesheetRepository) LogSessionTx(ctx context.Context, entry *models.TimesheetEntry, candidate *models.Invoice, clearRecurringDate bool) (*LogSessionResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin log session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.EntryStatusPending
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const insertEntry = `INSERT INTO timesheet_entries (id, weekly_timesheet_id, tutor_id, student_id, session_date,
        duration_hours, tutor_earnings, parent_billing, status, notes, session_occurrence_id, group_session_id, created_at, updated_at)
        VALUES (:id, :weekly_timesheet_id, :tutor_id, :student_id, :session_date,
        :duration_hours, :tutor_earnings, :parent_billing, :status, :notes, :session_occurrence_id, :group_session_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertEntry, entry); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if entry.SessionOccurrenceID != nil {
		const linkOccurrence = `UPDATE session_occurrences SET timesheet_entry_id = $2, status = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, linkOccurrence, *entry.SessionOccurrenceID, entry.ID, models.OccurrenceStatusCompleted); err != nil {
			return nil, fmt.Errorf("link occurrence: %w", err)
		}
	}

	const decrement = `UPDATE students SET sessions_remaining = sessions_remaining - 1, updated_at = NOW()
        WHERE id = $1 RETURNING sessions_remaining`
	var remaining int
	if err := tx.GetContext(ctx, &remaining, decrement, entry.StudentID); err != nil {
		return nil, fmt.Errorf("decrement session credit: %w", err)
	}

	result := &LogSessionResult{Remaining: remaining}

	// Invoice only on the call that crosses the boundary: a balance already at
	// or below zero has had its package invoiced.
	if candidate != nil && remaining <= 0 && remaining+1 > 0 {
		const supersede = `UPDATE invoices SET status = $2, updated_at = NOW()
            WHERE student_id = $1 AND status IN ($3, $4)`
		if _, err := tx.ExecContext(ctx, supersede, entry.StudentID,
			models.InvoiceStatusOverdue, models.InvoiceStatusSent, models.InvoiceStatusPartial); err != nil {
			return nil, fmt.Errorf("supersede invoices: %w", err)
		}
		if err := insertInvoiceTx(ctx, tx, candidate); err != nil {
			return nil, err
		}
		if clearRecurringDate {
			const clear = `UPDATE students SET recurring_invoice_send_date = NULL, updated_at = NOW() WHERE id = $1`
			if _, err := tx.ExecContext(ctx, clear, entry.StudentID); err != nil {
				return nil, fmt.Errorf("clear recurring send date: %w", err)
			}
		}
		result.Invoiced = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit log session: %w", err)
	}
	return result, nil
}

// DeleteEntryTx removes an entry and restores the student's session credit in
// one transaction. Any linked occurrence is unlinked.
func (r *TimesheetRepository) DeleteEntryTx(ctx context.Context, entry *models.TimesheetEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete entry: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const unlink = `UPDATE session_occurrences SET timesheet_entry_id = NULL WHERE timesheet_entry_id = $1`
	if _, err := tx.ExecContext(ctx, unlink, entry.ID); err != nil {
		return fmt.Errorf("unlink occurrence: %w", err)
	}

	const del = `DELETE FROM timesheet_entries WHERE id = $1`
	res, err := tx.ExecContext(ctx, del, entry.ID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	const restore = `UPDATE students SET sessions_remaining = sessions_remaining + 1, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, restore, entry.StudentID); err != nil {
		return fmt.Errorf("restore session credit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete entry: %w", err)
	}
	return nil
}

// SubmitTx moves a timesheet into submitted state, resets entry statuses to
// pending, clears rejection notes and appends the audit row.
func (r *TimesheetRepository) SubmitTx(ctx context.Context, ts *models.WeeklyTimesheet, changedBy string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	const updateSheet = `UPDATE weekly_timesheets
        SET status = $2, rejection_notes = NULL, submitted_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateSheet, ts.ID, models.TimesheetStatusSubmitted, now); err != nil {
		return fmt.Errorf("submit timesheet: %w", err)
	}

	const updateEntries = `UPDATE timesheet_entries SET status = $2, updated_at = NOW() WHERE weekly_timesheet_id = $1`
	if _, err := tx.ExecContext(ctx, updateEntries, ts.ID, models.EntryStatusPending); err != nil {
		return fmt.Errorf("reset entry statuses: %w", err)
	}

	if err := insertHistoryTx(ctx, tx, ts.ID, ts.Status, models.TimesheetStatusSubmitted, changedBy, ""); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submit: %w", err)
	}
	return nil
}

// ReviewParams carries the inputs of the atomic review write.
type ReviewParams struct {
	Timesheet     *models.WeeklyTimesheet
	ReviewerID    string
	Approve       bool
	Notes         string
	InvoicePrefix string // e.g. "JANEDOE-20260115-", sequence is appended inside the tx
}

// ReviewTx applies an approve/reject decision: the timesheet and its entries
// change status together, the audit row is appended and, on approval, the
// tutor invoice is issued (at most once, only for nonzero earnings) and the
// students' open parent invoices are marked approved.
func (r *TimesheetRepository) ReviewTx(ctx context.Context, params ReviewParams) (*models.TutorInvoice, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin review: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ts := params.Timesheet
	now := time.Now().UTC()

	toStatus := models.TimesheetStatusRejected
	entryStatus := models.EntryStatusRejected
	var rejectionNotes interface{}
	if params.Approve {
		toStatus = models.TimesheetStatusApproved
		entryStatus = models.EntryStatusApproved
	} else if params.Notes != "" {
		rejectionNotes = params.Notes
	}

	const updateSheet = `UPDATE weekly_timesheets
        SET status = $2, rejection_notes = $3, reviewed_at = $4, reviewed_by = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateSheet, ts.ID, toStatus, rejectionNotes, now, params.ReviewerID); err != nil {
		return nil, fmt.Errorf("review timesheet: %w", err)
	}

	const updateEntries = `UPDATE timesheet_entries SET status = $2, updated_at = NOW() WHERE weekly_timesheet_id = $1`
	if _, err := tx.ExecContext(ctx, updateEntries, ts.ID, entryStatus); err != nil {
		return nil, fmt.Errorf("propagate entry statuses: %w", err)
	}

	if err := insertHistoryTx(ctx, tx, ts.ID, ts.Status, toStatus, params.ReviewerID, params.Notes); err != nil {
		return nil, err
	}

	if !params.Approve {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit review: %w", err)
		}
		return nil, nil
	}

	const totalsQuery = `SELECT COALESCE(SUM(tutor_earnings), 0) AS total_earnings,
        COALESCE(SUM(parent_billing), 0) AS total_billing,
        COALESCE(SUM(duration_hours), 0) AS total_hours,
        COUNT(*) AS entry_count
        FROM timesheet_entries WHERE weekly_timesheet_id = $1`
	var totals models.TimesheetTotals
	if err := tx.GetContext(ctx, &totals, totalsQuery, ts.ID); err != nil {
		return nil, fmt.Errorf("timesheet totals: %w", err)
	}

	var invoice *models.TutorInvoice
	if totals.TotalEarnings.IsPositive() {
		const seqQuery = `SELECT COUNT(*) FROM tutor_invoices`
		var count int
		if err := tx.GetContext(ctx, &count, seqQuery); err != nil {
			return nil, fmt.Errorf("tutor invoice sequence: %w", err)
		}
		invoice = &models.TutorInvoice{
			ID:                uuid.NewString(),
			TutorID:           ts.TutorID,
			WeeklyTimesheetID: ts.ID,
			InvoiceNumber:     fmt.Sprintf("%s%04d", params.InvoicePrefix, count+1),
			Amount:            totals.TotalEarnings,
			HoursWorked:       totals.TotalHours,
			Status:            models.TutorInvoiceStatusApproved,
			CreatedAt:         now,
		}
		const insertInvoice = `INSERT INTO tutor_invoices (id, tutor_id, weekly_timesheet_id, invoice_number, amount, hours_worked, status, paid_at, created_at)
            VALUES (:id, :tutor_id, :weekly_timesheet_id, :invoice_number, :amount, :hours_worked, :status, :paid_at, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertInvoice, invoice); err != nil {
			return nil, fmt.Errorf("create tutor invoice: %w", err)
		}
	}

	const approveParentInvoices = `UPDATE invoices SET status = $2, updated_at = NOW()
        WHERE student_id IN (SELECT DISTINCT student_id FROM timesheet_entries WHERE weekly_timesheet_id = $1)
        AND status NOT IN ($3, $4)`
	if _, err := tx.ExecContext(ctx, approveParentInvoices, ts.ID,
		models.InvoiceStatusApproved, models.InvoiceStatusPaid, models.InvoiceStatusCancelled); err != nil {
		return nil, fmt.Errorf("approve parent invoices: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review: %w", err)
	}
	return invoice, nil
}

func insertHistoryTx(ctx context.Context, tx *sqlx.Tx, timesheetID string, from, to models.TimesheetStatus, changedBy, notes string) error {
	var actor interface{}
	if changedBy != "" {
		actor = changedBy
	}
	const query = `INSERT INTO timesheet_status_history (id, weekly_timesheet_id, from_status, to_status, changed_by, notes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), timesheetID, from, to, actor, notes); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}
