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

type studentRepoStub struct {
	created  *models.Student
	toppedUp *models.Student
	topUpErr error
}

func (s *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s.created == nil {
		return nil, sql.ErrNoRows
	}
	return s.created, nil
}

func (s *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	s.created = student
	return nil
}

func (s *studentRepoStub) TopUpSessions(ctx context.Context, id string, sessions int) (*models.Student, error) {
	if s.topUpErr != nil {
		return nil, s.topUpErr
	}
	return s.toppedUp, nil
}

func TestCreateStudentStartsBalanceAtPackageSize(t *testing.T) {
	repo := &studentRepoStub{}
	svc := NewStudentService(repo, nil, zap.NewNop())

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		FullName:       "Alice Smith",
		Subject:        "maths",
		ParentRate:     75,
		TutorRate:      30,
		SessionsBooked: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, student.SessionsRemaining)
	assert.True(t, student.Active)
	assert.True(t, student.ParentRate.Equal(decimal.NewFromInt(75)))
	assert.Same(t, student, repo.created)
}

func TestCreateStudentRequiresPositiveRates(t *testing.T) {
	svc := NewStudentService(&studentRepoStub{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		FullName:   "Alice Smith",
		ParentRate: 0,
		TutorRate:  30,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTopUpRejectsNonPositiveSessions(t *testing.T) {
	svc := NewStudentService(&studentRepoStub{}, nil, zap.NewNop())

	_, err := svc.TopUp(context.Background(), "student-1", TopUpRequest{Sessions: 0})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTopUpUnknownStudent(t *testing.T) {
	svc := NewStudentService(&studentRepoStub{topUpErr: sql.ErrNoRows}, nil, zap.NewNop())

	_, err := svc.TopUp(context.Background(), "missing", TopUpRequest{Sessions: 10})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTopUpCreditsBalance(t *testing.T) {
	repo := &studentRepoStub{toppedUp: &models.Student{
		ID:                "student-1",
		SessionsBooked:    10,
		SessionsRemaining: 12,
	}}
	svc := NewStudentService(repo, nil, zap.NewNop())

	student, err := svc.TopUp(context.Background(), "student-1", TopUpRequest{Sessions: 10})
	require.NoError(t, err)
	assert.Equal(t, 12, student.SessionsRemaining)
}
