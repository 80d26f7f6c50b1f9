package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/brightpath/agency-api/internal/models"
)

// StudentRepository handles persistence of students and their session credit.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, full_name, subject, parent_rate, tutor_rate, sessions_booked, sessions_remaining,
        auto_invoice_enabled, recurring_invoice_send_date, active, created_at, updated_at`

// FindByID returns a student by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create persists a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, full_name, subject, parent_rate, tutor_rate, sessions_booked,
        sessions_remaining, auto_invoice_enabled, recurring_invoice_send_date, active, created_at, updated_at)
        VALUES (:id, :full_name, :subject, :parent_rate, :tutor_rate, :sessions_booked,
        :sessions_remaining, :auto_invoice_enabled, :recurring_invoice_send_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// TopUpSessions adds a purchased package to the student's balance and records
// the package size.
func (r *StudentRepository) TopUpSessions(ctx context.Context, id string, sessions int) (*models.Student, error) {
	query := fmt.Sprintf(`UPDATE students
        SET sessions_booked = $2, sessions_remaining = sessions_remaining + $2, updated_at = NOW()
        WHERE id = $1 RETURNING %s`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, sessions); err != nil {
		return nil, err
	}
	return &student, nil
}

// AdjustBalance shifts sessions_remaining by delta and returns the new value.
// No floor is applied: a negative balance means sessions are owed.
func (r *StudentRepository) AdjustBalance(ctx context.Context, id string, delta int) (int, error) {
	const query = `UPDATE students SET sessions_remaining = sessions_remaining + $2, updated_at = NOW()
        WHERE id = $1 RETURNING sessions_remaining`
	var remaining int
	if err := r.db.GetContext(ctx, &remaining, query, id, delta); err != nil {
		return 0, err
	}
	return remaining, nil
}

// ClearRecurringSendDate removes the one-shot recurring invoice schedule.
func (r *StudentRepository) ClearRecurringSendDate(ctx context.Context, id string) error {
	const query = `UPDATE students SET recurring_invoice_send_date = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("clear recurring send date: %w", err)
	}
	return nil
}
