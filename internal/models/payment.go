package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records money received against a parent or tutor invoice.
type Payment struct {
	ID             string          `db:"id" json:"id"`
	InvoiceID      *string         `db:"invoice_id" json:"invoice_id,omitempty"`
	TutorInvoiceID *string         `db:"tutor_invoice_id" json:"tutor_invoice_id,omitempty"`
	StudentID      *string         `db:"student_id" json:"student_id,omitempty"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Method         string          `db:"method" json:"method"`
	Reference      string          `db:"reference" json:"reference"`
	ReceivedAt     time.Time       `db:"received_at" json:"received_at"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
