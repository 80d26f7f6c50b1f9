package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/brightpath/agency-api/internal/models"
)

// AllocationRepository handles persistence of student-tutor allocations.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository constructs the repository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

const allocationColumns = `id, student_id, tutor_id, tutor_rate, parent_rate, is_primary, active, created_at`

// FindActive returns the active allocation for a student+tutor pair, or
// sql.ErrNoRows when none exists.
func (r *AllocationRepository) FindActive(ctx context.Context, studentID, tutorID string) (*models.Allocation, error) {
	query := fmt.Sprintf(`SELECT %s FROM allocations WHERE student_id = $1 AND tutor_id = $2 AND active = TRUE`, allocationColumns)
	var allocation models.Allocation
	if err := r.db.GetContext(ctx, &allocation, query, studentID, tutorID); err != nil {
		return nil, err
	}
	return &allocation, nil
}

// Exists checks whether any allocation exists for the pair.
func (r *AllocationRepository) Exists(ctx context.Context, studentID, tutorID string) (bool, error) {
	const query = `SELECT 1 FROM allocations WHERE student_id = $1 AND tutor_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, tutorID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check allocation: %w", err)
	}
	return true, nil
}

// Create persists a new allocation.
func (r *AllocationRepository) Create(ctx context.Context, allocation *models.Allocation) error {
	if allocation.ID == "" {
		allocation.ID = uuid.NewString()
	}
	if allocation.CreatedAt.IsZero() {
		allocation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO allocations (id, student_id, tutor_id, tutor_rate, parent_rate, is_primary, active, created_at)
        VALUES (:id, :student_id, :tutor_id, :tutor_rate, :parent_rate, :is_primary, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, allocation); err != nil {
		return fmt.Errorf("create allocation: %w", err)
	}
	return nil
}

// ListByStudent returns all allocations for a student.
func (r *AllocationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Allocation, error) {
	query := fmt.Sprintf(`SELECT %s FROM allocations WHERE student_id = $1 ORDER BY created_at`, allocationColumns)
	var allocations []models.Allocation
	if err := r.db.SelectContext(ctx, &allocations, query, studentID); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return allocations, nil
}

// Delete removes an allocation.
func (r *AllocationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM allocations WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
