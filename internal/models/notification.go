package models

import "time"

// RecipientKind identifies who a notification addresses.
type RecipientKind string

const (
	RecipientTutor  RecipientKind = "tutor"
	RecipientParent RecipientKind = "parent"
	RecipientAdmin  RecipientKind = "admin"
)

// Notification kinds.
const (
	NotificationInvoiceReminder     = "invoice_reminder"
	NotificationSessionLoggingAlert = "session_logging_alert"
	NotificationInvoicePaymentAlert = "invoice_payment_alert"
)

// Notification is a persisted message produced by the alert engine.
type Notification struct {
	ID            string        `db:"id" json:"id"`
	RecipientKind RecipientKind `db:"recipient_kind" json:"recipient_kind"`
	RecipientID   *string       `db:"recipient_id" json:"recipient_id,omitempty"`
	Kind          string        `db:"kind" json:"kind"`
	Subject       string        `db:"subject" json:"subject"`
	Body          string        `db:"body" json:"body"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}
