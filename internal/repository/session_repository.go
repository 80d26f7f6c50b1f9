package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/brightpath/agency-api/internal/models"
)

// SessionRepository handles persistence of scheduled session occurrences.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const occurrenceColumns = `id, student_id, tutor_id, starts_at, ends_at, status, timesheet_entry_id, created_at`

// FindByID returns an occurrence by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.SessionOccurrence, error) {
	query := fmt.Sprintf("SELECT %s FROM session_occurrences WHERE id = $1", occurrenceColumns)
	var occurrence models.SessionOccurrence
	if err := r.db.GetContext(ctx, &occurrence, query, id); err != nil {
		return nil, err
	}
	return &occurrence, nil
}

// Create persists a new occurrence.
func (r *SessionRepository) Create(ctx context.Context, occurrence *models.SessionOccurrence) error {
	if occurrence.ID == "" {
		occurrence.ID = uuid.NewString()
	}
	if occurrence.Status == "" {
		occurrence.Status = models.OccurrenceStatusScheduled
	}
	if occurrence.CreatedAt.IsZero() {
		occurrence.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO session_occurrences (id, student_id, tutor_id, starts_at, ends_at, status, timesheet_entry_id, created_at)
        VALUES (:id, :student_id, :tutor_id, :starts_at, :ends_at, :status, :timesheet_entry_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, occurrence); err != nil {
		return fmt.Errorf("create occurrence: %w", err)
	}
	return nil
}

// ListUnlogged returns occurrences that ended before the cutoff, were never
// backed by a timesheet entry and have no alert yet.
func (r *SessionRepository) ListUnlogged(ctx context.Context, cutoff time.Time) ([]models.SessionOccurrence, error) {
	const query = `SELECT o.id, o.student_id, o.tutor_id, o.starts_at, o.ends_at, o.status, o.timesheet_entry_id, o.created_at
        FROM session_occurrences o
        WHERE o.status IN ($1, $2) AND o.ends_at < $3 AND o.timesheet_entry_id IS NULL
        AND NOT EXISTS (SELECT 1 FROM session_logging_alerts a WHERE a.session_occurrence_id = o.id)
        ORDER BY o.ends_at`
	var occurrences []models.SessionOccurrence
	if err := r.db.SelectContext(ctx, &occurrences, query,
		models.OccurrenceStatusScheduled, models.OccurrenceStatusConfirmed, cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("list unlogged occurrences: %w", err)
	}
	return occurrences, nil
}
