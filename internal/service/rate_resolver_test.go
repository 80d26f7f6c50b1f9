package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type allocationStub struct {
	allocation *models.Allocation
}

func (s *allocationStub) FindActive(ctx context.Context, studentID, tutorID string) (*models.Allocation, error) {
	if s.allocation == nil {
		return nil, sql.ErrNoRows
	}
	return s.allocation, nil
}

func rateStudent() *models.Student {
	return &models.Student{
		ID:         "student-1",
		TutorRate:  decimal.NewFromInt(30),
		ParentRate: decimal.NewFromInt(75),
	}
}

func TestResolveFallsBackToStudentDefaults(t *testing.T) {
	resolver := NewRateResolver(&tsStudentStub{student: rateStudent()}, &allocationStub{}, zap.NewNop())

	rates, err := resolver.Resolve(context.Background(), "student-1", "tutor-1")
	require.NoError(t, err)

	assert.True(t, rates.TutorRate.Equal(decimal.NewFromInt(30)))
	assert.True(t, rates.ParentRate.Equal(decimal.NewFromInt(75)))
}

func TestResolveAppliesAllocationOverrides(t *testing.T) {
	tutorRate := decimal.NewFromInt(35)
	parentRate := decimal.NewFromInt(90)
	resolver := NewRateResolver(&tsStudentStub{student: rateStudent()}, &allocationStub{
		allocation: &models.Allocation{TutorRate: &tutorRate, ParentRate: &parentRate},
	}, zap.NewNop())

	rates, err := resolver.Resolve(context.Background(), "student-1", "tutor-1")
	require.NoError(t, err)

	assert.True(t, rates.TutorRate.Equal(tutorRate))
	assert.True(t, rates.ParentRate.Equal(parentRate))
}

func TestResolvePartialOverrideKeepsOtherDefault(t *testing.T) {
	tutorRate := decimal.NewFromInt(35)
	resolver := NewRateResolver(&tsStudentStub{student: rateStudent()}, &allocationStub{
		allocation: &models.Allocation{TutorRate: &tutorRate},
	}, zap.NewNop())

	rates, err := resolver.Resolve(context.Background(), "student-1", "tutor-1")
	require.NoError(t, err)

	assert.True(t, rates.TutorRate.Equal(decimal.NewFromInt(35)))
	assert.True(t, rates.ParentRate.Equal(decimal.NewFromInt(75)))
}

func TestResolveUnknownStudent(t *testing.T) {
	resolver := NewRateResolver(&tsStudentStub{err: sql.ErrNoRows}, &allocationStub{}, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), "missing", "tutor-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
