package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertStatus is shared by both alert kinds.
type AlertStatus string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusResolved  AlertStatus = "resolved"
	AlertStatusDismissed AlertStatus = "dismissed"
)

// SessionLoggingAlert flags a past session occurrence with no logged entry.
// At most one pending alert exists per occurrence.
type SessionLoggingAlert struct {
	ID                  string           `db:"id" json:"id"`
	SessionOccurrenceID string           `db:"session_occurrence_id" json:"session_occurrence_id"`
	TutorID             string           `db:"tutor_id" json:"tutor_id"`
	Status              AlertStatus      `db:"status" json:"status"`
	HoursLate           *decimal.Decimal `db:"hours_late" json:"hours_late,omitempty"`
	DismissedBy         *string          `db:"dismissed_by" json:"dismissed_by,omitempty"`
	DismissReason       *string          `db:"dismiss_reason" json:"dismiss_reason,omitempty"`
	ResolvedAt          *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
}

// InvoicePaymentAlert flags a sent invoice that has gone unpaid too long.
type InvoicePaymentAlert struct {
	ID            string      `db:"id" json:"id"`
	InvoiceID     string      `db:"invoice_id" json:"invoice_id"`
	StudentID     string      `db:"student_id" json:"student_id"`
	Status        AlertStatus `db:"status" json:"status"`
	DaysOverdue   *int        `db:"days_overdue" json:"days_overdue,omitempty"`
	DismissedBy   *string     `db:"dismissed_by" json:"dismissed_by,omitempty"`
	DismissReason *string     `db:"dismiss_reason" json:"dismiss_reason,omitempty"`
	ResolvedAt    *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// TutorCompliance summarises a tutor's session-logging punctuality.
type TutorCompliance struct {
	TutorID           string  `db:"tutor_id" json:"tutor_id"`
	TutorName         string  `db:"tutor_name" json:"tutor_name"`
	CompletedSessions int     `db:"completed_sessions" json:"completed_sessions"`
	LateSessions      int     `db:"late_sessions" json:"late_sessions"`
	PendingAlerts     int     `db:"pending_alerts" json:"pending_alerts"`
	AvgHoursLate      float64 `db:"avg_hours_late" json:"avg_hours_late"`
	LateRatePercent   float64 `json:"late_rate_percent"`
}

// ParentCompliance summarises a parent's invoice payment punctuality.
type ParentCompliance struct {
	StudentID       string  `db:"student_id" json:"student_id"`
	StudentName     string  `db:"student_name" json:"student_name"`
	SentInvoices    int     `db:"sent_invoices" json:"sent_invoices"`
	LateInvoices    int     `db:"late_invoices" json:"late_invoices"`
	PendingAlerts   int     `db:"pending_alerts" json:"pending_alerts"`
	AvgDaysOverdue  float64 `db:"avg_days_overdue" json:"avg_days_overdue"`
	LateRatePercent float64 `json:"late_rate_percent"`
}

// ComplianceReport bundles both compliance views.
type ComplianceReport struct {
	Tutors  []TutorCompliance  `json:"tutors"`
	Parents []ParentCompliance `json:"parents"`
}
