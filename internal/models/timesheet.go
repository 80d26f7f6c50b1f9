package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimesheetStatus is the lifecycle state of a weekly timesheet.
type TimesheetStatus string

const (
	TimesheetStatusDraft     TimesheetStatus = "draft"
	TimesheetStatusSubmitted TimesheetStatus = "submitted"
	TimesheetStatusApproved  TimesheetStatus = "approved"
	TimesheetStatusRejected  TimesheetStatus = "rejected"
)

// Editable reports whether a tutor may still change entries in this state.
func (s TimesheetStatus) Editable() bool {
	return s == TimesheetStatusDraft || s == TimesheetStatusRejected
}

// EntryStatus mirrors the owning timesheet status onto individual entries.
type EntryStatus string

const (
	EntryStatusPending  EntryStatus = "pending"
	EntryStatusApproved EntryStatus = "approved"
	EntryStatusRejected EntryStatus = "rejected"
)

// ReviewDecision is an admin verdict on a submitted timesheet.
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "approve"
	ReviewDecisionReject  ReviewDecision = "reject"
)

// WeeklyTimesheet groups a tutor's session entries for one calendar week.
// Several rows may exist for the same tutor+week: once a sheet leaves an
// editable state a fresh draft is started instead of reusing it.
type WeeklyTimesheet struct {
	ID             string          `db:"id" json:"id"`
	TutorID        string          `db:"tutor_id" json:"tutor_id"`
	WeekStart      time.Time       `db:"week_start" json:"week_start"`
	Status         TimesheetStatus `db:"status" json:"status"`
	RejectionNotes *string         `db:"rejection_notes" json:"rejection_notes,omitempty"`
	SubmittedAt    *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt     *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy     *string         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// TimesheetEntry records one tutoring session with rates snapshotted at
// creation time.
type TimesheetEntry struct {
	ID                  string          `db:"id" json:"id"`
	WeeklyTimesheetID   string          `db:"weekly_timesheet_id" json:"weekly_timesheet_id"`
	TutorID             string          `db:"tutor_id" json:"tutor_id"`
	StudentID           string          `db:"student_id" json:"student_id"`
	SessionDate         time.Time       `db:"session_date" json:"session_date"`
	DurationHours       decimal.Decimal `db:"duration_hours" json:"duration_hours"`
	TutorEarnings       decimal.Decimal `db:"tutor_earnings" json:"tutor_earnings"`
	ParentBilling       decimal.Decimal `db:"parent_billing" json:"parent_billing"`
	Status              EntryStatus     `db:"status" json:"status"`
	Notes               string          `db:"notes" json:"notes"`
	SessionOccurrenceID *string         `db:"session_occurrence_id" json:"session_occurrence_id,omitempty"`
	GroupSessionID      *string         `db:"group_session_id" json:"group_session_id,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// TimesheetStatusHistory is the append-only audit trail of status changes.
type TimesheetStatusHistory struct {
	ID                string          `db:"id" json:"id"`
	WeeklyTimesheetID string          `db:"weekly_timesheet_id" json:"weekly_timesheet_id"`
	FromStatus        TimesheetStatus `db:"from_status" json:"from_status"`
	ToStatus          TimesheetStatus `db:"to_status" json:"to_status"`
	ChangedBy         *string         `db:"changed_by" json:"changed_by,omitempty"`
	Notes             string          `db:"notes" json:"notes"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// TimesheetDetail bundles a timesheet with its entries.
type TimesheetDetail struct {
	WeeklyTimesheet
	Entries []TimesheetEntry `json:"entries"`
}

// TimesheetTotals aggregates a timesheet's entries for invoicing.
type TimesheetTotals struct {
	TotalEarnings decimal.Decimal `db:"total_earnings"`
	TotalBilling  decimal.Decimal `db:"total_billing"`
	TotalHours    decimal.Decimal `db:"total_hours"`
	EntryCount    int             `db:"entry_count"`
}

// TimesheetFilter scopes timesheet listings.
type TimesheetFilter struct {
	TutorID   string
	Status    TimesheetStatus
	WeekStart *time.Time
	Page      int
	PageSize  int
}
