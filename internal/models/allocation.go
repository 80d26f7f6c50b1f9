package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Allocation links a student to a tutor with optional rate overrides.
// A nil rate means "use the student default" for that side of the billing.
type Allocation struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	TutorID    string           `db:"tutor_id" json:"tutor_id"`
	TutorRate  *decimal.Decimal `db:"tutor_rate" json:"tutor_rate,omitempty"`
	ParentRate *decimal.Decimal `db:"parent_rate" json:"parent_rate,omitempty"`
	IsPrimary  bool             `db:"is_primary" json:"is_primary"`
	Active     bool             `db:"active" json:"active"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// ResolvedRates is the outcome of rate resolution for a student+tutor pair.
type ResolvedRates struct {
	TutorRate  decimal.Decimal `json:"tutor_rate"`
	ParentRate decimal.Decimal `json:"parent_rate"`
}
