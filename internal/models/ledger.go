package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FiscalYear is a 12-month accounting window.
type FiscalYear struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Label renders the window as e.g. "FY2025/26".
func (fy FiscalYear) Label() string {
	return "FY" + fy.Start.Format("2006") + "/" + fy.End.AddDate(0, 0, -1).Format("06")
}

// Contains reports whether t falls inside the window.
func (fy FiscalYear) Contains(t time.Time) bool {
	return !t.Before(fy.Start) && t.Before(fy.End)
}

// AdminStats is the fiscal-year financial summary.
type AdminStats struct {
	FiscalYear          FiscalYear      `json:"fiscal_year"`
	BookedRevenue       decimal.Decimal `json:"booked_revenue"`
	PaidRevenue         decimal.Decimal `json:"paid_revenue"`
	BookedExpenditure   decimal.Decimal `json:"booked_expenditure"`
	PaidExpenditure     decimal.Decimal `json:"paid_expenditure"`
	OutstandingInvoices int             `json:"outstanding_invoices"`
	OverdueInvoices     int             `json:"overdue_invoices"`
}

// LedgerInvoice is one invoice line inside a ledger grouping.
type LedgerInvoice struct {
	ID              string          `db:"id" json:"id"`
	InvoiceNumber   string          `db:"invoice_number" json:"invoice_number"`
	Kind            InvoiceKind     `db:"kind" json:"kind"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Status          InvoiceStatus   `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
}

// ParentLedgerGroup groups invoices for one student/parent.
type ParentLedgerGroup struct {
	StudentID   string          `json:"student_id"`
	StudentName string          `json:"student_name"`
	Booked      decimal.Decimal `json:"booked"`
	Paid        decimal.Decimal `json:"paid"`
	Invoices    []LedgerInvoice `json:"invoices"`
}

// TutorLedgerGroup groups tutor invoices for one tutor.
type TutorLedgerGroup struct {
	TutorID   string          `json:"tutor_id"`
	TutorName string          `json:"tutor_name"`
	Booked    decimal.Decimal `json:"booked"`
	Paid      decimal.Decimal `json:"paid"`
	Invoices  []LedgerInvoice `json:"invoices"`
}

// GroupedLedger is the full fiscal-year ledger report.
type GroupedLedger struct {
	FiscalYear FiscalYear          `json:"fiscal_year"`
	Parents    []ParentLedgerGroup `json:"parents"`
	Tutors     []TutorLedgerGroup  `json:"tutors"`
}
