package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Student represents a learner with a prepaid session balance.
// ParentRate and TutorRate are the default hourly rates applied when no
// allocation-level override exists.
type Student struct {
	ID                       string          `db:"id" json:"id"`
	FullName                 string          `db:"full_name" json:"full_name"`
	Subject                  string          `db:"subject" json:"subject"`
	ParentRate               decimal.Decimal `db:"parent_rate" json:"parent_rate"`
	TutorRate                decimal.Decimal `db:"tutor_rate" json:"tutor_rate"`
	SessionsBooked           int             `db:"sessions_booked" json:"sessions_booked"`
	SessionsRemaining        int             `db:"sessions_remaining" json:"sessions_remaining"`
	AutoInvoiceEnabled       bool            `db:"auto_invoice_enabled" json:"auto_invoice_enabled"`
	RecurringInvoiceSendDate *time.Time      `db:"recurring_invoice_send_date" json:"recurring_invoice_send_date,omitempty"`
	Active                   bool            `db:"active" json:"active"`
	CreatedAt                time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`
}

// Tutor is the minimal tutor record referenced by timesheets and invoices.
type Tutor struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
