package models

import "time"

// OccurrenceStatus is the lifecycle state of a scheduled session occurrence.
type OccurrenceStatus string

const (
	OccurrenceStatusScheduled OccurrenceStatus = "scheduled"
	OccurrenceStatusConfirmed OccurrenceStatus = "confirmed"
	OccurrenceStatusCompleted OccurrenceStatus = "completed"
	OccurrenceStatusCancelled OccurrenceStatus = "cancelled"
)

// SessionOccurrence is a calendar slot that should eventually be backed by a
// logged timesheet entry.
type SessionOccurrence struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	TutorID          string           `db:"tutor_id" json:"tutor_id"`
	StartsAt         time.Time        `db:"starts_at" json:"starts_at"`
	EndsAt           time.Time        `db:"ends_at" json:"ends_at"`
	Status           OccurrenceStatus `db:"status" json:"status"`
	TimesheetEntryID *string          `db:"timesheet_entry_id" json:"timesheet_entry_id,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}
