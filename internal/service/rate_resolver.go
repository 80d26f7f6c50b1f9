package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type allocationReader interface {
	FindActive(ctx context.Context, studentID, tutorID string) (*models.Allocation, error)
}

// RateResolver determines the hourly rates for a student+tutor pair. An active
// allocation's non-null rates take precedence over the student's defaults; a
// missing allocation silently falls back to the defaults.
type RateResolver struct {
	students    studentReader
	allocations allocationReader
	logger      *zap.Logger
}

// NewRateResolver constructs a RateResolver.
func NewRateResolver(students studentReader, allocations allocationReader, logger *zap.Logger) *RateResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateResolver{students: students, allocations: allocations, logger: logger}
}

// Resolve returns the rates to snapshot for a session logged now. Rates are
// fixed at entry creation; later allocation changes do not rewrite history.
func (r *RateResolver) Resolve(ctx context.Context, studentID, tutorID string) (models.ResolvedRates, error) {
	student, err := r.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.ResolvedRates{}, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return models.ResolvedRates{}, appErrors.Internal(err, "failed to load student")
	}

	rates := models.ResolvedRates{TutorRate: student.TutorRate, ParentRate: student.ParentRate}

	allocation, err := r.allocations.FindActive(ctx, studentID, tutorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return rates, nil
		}
		return models.ResolvedRates{}, appErrors.Internal(err, "failed to load allocation")
	}
	if allocation.TutorRate != nil {
		rates.TutorRate = *allocation.TutorRate
	}
	if allocation.ParentRate != nil {
		rates.ParentRate = *allocation.ParentRate
	}
	return rates, nil
}
