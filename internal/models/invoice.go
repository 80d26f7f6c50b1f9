package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of a parent invoice.
type InvoiceStatus string

const (
	InvoiceStatusScheduled InvoiceStatus = "scheduled"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusApproved  InvoiceStatus = "approved"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// InvoiceKind distinguishes the invoice generation paths.
type InvoiceKind string

const (
	// InvoiceKindPackage is a one-off invoice issued when a session package
	// has been consumed.
	InvoiceKindPackage InvoiceKind = "package"
	// InvoiceKindRecurring is issued by the recurring generator, possibly
	// scheduled for a future send date.
	InvoiceKindRecurring InvoiceKind = "recurring"
	// InvoiceKindAdhoc covers manual charges such as exam fees or merchandise.
	InvoiceKindAdhoc InvoiceKind = "adhoc"
)

// Invoice is a parent-facing billing document.
type Invoice struct {
	ID                   string          `db:"id" json:"id"`
	StudentID            string          `db:"student_id" json:"student_id"`
	InvoiceNumber        string          `db:"invoice_number" json:"invoice_number"`
	Kind                 InvoiceKind     `db:"kind" json:"kind"`
	Amount               decimal.Decimal `db:"amount" json:"amount"`
	Status               InvoiceStatus   `db:"status" json:"status"`
	SessionsIncluded     int             `db:"sessions_included" json:"sessions_included"`
	SentAt               *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	DueDate              *time.Time      `db:"due_date" json:"due_date,omitempty"`
	ScheduledSendDate    *time.Time      `db:"scheduled_send_date" json:"scheduled_send_date,omitempty"`
	ParentClaimedPaid    bool            `db:"parent_claimed_paid" json:"parent_claimed_paid"`
	ReminderFirstSentAt  *time.Time      `db:"reminder_first_sent_at" json:"reminder_first_sent_at,omitempty"`
	ReminderSecondSentAt *time.Time      `db:"reminder_second_sent_at" json:"reminder_second_sent_at,omitempty"`
	ReminderFinalSentAt  *time.Time      `db:"reminder_final_sent_at" json:"reminder_final_sent_at,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// TutorInvoiceStatus is the lifecycle state of a tutor payable.
type TutorInvoiceStatus string

const (
	TutorInvoiceStatusApproved TutorInvoiceStatus = "approved"
	TutorInvoiceStatusPaid     TutorInvoiceStatus = "paid"
)

// TutorInvoice is the payable created when a weekly timesheet is approved.
// At most one exists per timesheet.
type TutorInvoice struct {
	ID                string             `db:"id" json:"id"`
	TutorID           string             `db:"tutor_id" json:"tutor_id"`
	WeeklyTimesheetID string             `db:"weekly_timesheet_id" json:"weekly_timesheet_id"`
	InvoiceNumber     string             `db:"invoice_number" json:"invoice_number"`
	Amount            decimal.Decimal    `db:"amount" json:"amount"`
	HoursWorked       decimal.Decimal    `db:"hours_worked" json:"hours_worked"`
	Status            TutorInvoiceStatus `db:"status" json:"status"`
	PaidAt            *time.Time         `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
}

// InvoiceFilter scopes invoice listings.
type InvoiceFilter struct {
	StudentID string
	Status    InvoiceStatus
	Kind      InvoiceKind
	Page      int
	PageSize  int
}
