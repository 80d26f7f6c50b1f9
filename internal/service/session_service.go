package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.SessionOccurrence, error)
	Create(ctx context.Context, occurrence *models.SessionOccurrence) error
}

// ScheduleSessionRequest describes a calendar slot to schedule.
type ScheduleSessionRequest struct {
	StudentID string    `json:"student_id" validate:"required"`
	TutorID   string    `json:"tutor_id" validate:"required"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
	EndsAt    time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

// SessionService manages scheduled session occurrences, the slots the
// logging-compliance sweep checks timesheet entries against.
type SessionService struct {
	repo      sessionRepository
	students  studentReader
	tutors    tutorReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionRepository, students studentReader, tutors tutorReader, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, students: students, tutors: tutors, validator: validate, logger: logger}
}

// Schedule registers a future session occurrence.
func (s *SessionService) Schedule(ctx context.Context, req ScheduleSessionRequest) (*models.SessionOccurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if _, err := s.tutors.FindByID(ctx, req.TutorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Internal(err, "failed to load tutor")
	}

	occurrence := &models.SessionOccurrence{
		StudentID: req.StudentID,
		TutorID:   req.TutorID,
		StartsAt:  req.StartsAt.UTC(),
		EndsAt:    req.EndsAt.UTC(),
	}
	if err := s.repo.Create(ctx, occurrence); err != nil {
		return nil, appErrors.Internal(err, "failed to schedule session")
	}
	return occurrence, nil
}

// Get returns an occurrence.
func (s *SessionService) Get(ctx context.Context, id string) (*models.SessionOccurrence, error) {
	occurrence, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session occurrence not found")
		}
		return nil, appErrors.Internal(err, "failed to load occurrence")
	}
	return occurrence, nil
}
