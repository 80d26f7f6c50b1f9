package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type tutorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	Create(ctx context.Context, tutor *models.Tutor) error
}

// CreateTutorRequest describes a new tutor.
type CreateTutorRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// TutorService manages the tutor roster.
type TutorService struct {
	repo      tutorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTutorService constructs TutorService.
func NewTutorService(repo tutorRepository, validate *validator.Validate, logger *zap.Logger) *TutorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorService{repo: repo, validator: validate, logger: logger}
}

// Create registers a new tutor.
func (s *TutorService) Create(ctx context.Context, req CreateTutorRequest) (*models.Tutor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor payload")
	}
	tutor := &models.Tutor{FullName: req.FullName, Email: req.Email, Active: true}
	if err := s.repo.Create(ctx, tutor); err != nil {
		return nil, appErrors.Internal(err, "failed to create tutor")
	}
	return tutor, nil
}

// Get returns a tutor.
func (s *TutorService) Get(ctx context.Context, id string) (*models.Tutor, error) {
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Internal(err, "failed to load tutor")
	}
	return tutor, nil
}
