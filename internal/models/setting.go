package models

import "time"

// Setting keys recognised by the billing services.
const (
	SettingInvoiceDueDays       = "invoice_due_days"
	SettingFiscalYearStartMonth = "fiscal_year_start_month"
)

// Setting is a runtime override of a configuration default.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
