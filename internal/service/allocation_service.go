package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type allocationRepository interface {
	FindActive(ctx context.Context, studentID, tutorID string) (*models.Allocation, error)
	Exists(ctx context.Context, studentID, tutorID string) (bool, error)
	Create(ctx context.Context, allocation *models.Allocation) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Allocation, error)
	Delete(ctx context.Context, id string) error
}

type tutorReader interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
}

// CreateAllocationRequest describes allocation creation.
type CreateAllocationRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	TutorID    string   `json:"tutor_id" validate:"required"`
	TutorRate  *float64 `json:"tutor_rate,omitempty" validate:"omitempty,gt=0"`
	ParentRate *float64 `json:"parent_rate,omitempty" validate:"omitempty,gt=0"`
	IsPrimary  bool     `json:"is_primary"`
}

// AllocationService manages student-tutor pairings.
type AllocationService struct {
	repo      allocationRepository
	students  studentReader
	tutors    tutorReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAllocationService constructs AllocationService.
func NewAllocationService(repo allocationRepository, students studentReader, tutors tutorReader, validate *validator.Validate, logger *zap.Logger) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{repo: repo, students: students, tutors: tutors, validator: validate, logger: logger}
}

// Create registers an allocation. A pair may be allocated at most once.
func (s *AllocationService) Create(ctx context.Context, req CreateAllocationRequest) (*models.Allocation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
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
	exists, err := s.repo.Exists(ctx, req.StudentID, req.TutorID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to validate allocation")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already allocated to tutor")
	}

	allocation := &models.Allocation{
		StudentID: req.StudentID,
		TutorID:   req.TutorID,
		IsPrimary: req.IsPrimary,
		Active:    true,
	}
	if req.TutorRate != nil {
		rate := decimal.NewFromFloat(*req.TutorRate)
		allocation.TutorRate = &rate
	}
	if req.ParentRate != nil {
		rate := decimal.NewFromFloat(*req.ParentRate)
		allocation.ParentRate = &rate
	}
	if err := s.repo.Create(ctx, allocation); err != nil {
		return nil, appErrors.Internal(err, "failed to create allocation")
	}
	return allocation, nil
}

// ListByStudent returns a student's allocations.
func (s *AllocationService) ListByStudent(ctx context.Context, studentID string) ([]models.Allocation, error) {
	allocations, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list allocations")
	}
	return allocations, nil
}

// Delete removes an allocation. Existing timesheet entries keep their
// snapshotted rates.
func (s *AllocationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return appErrors.Internal(err, "failed to delete allocation")
	}
	return nil
}
