package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	TopUpSessions(ctx context.Context, id string, sessions int) (*models.Student, error)
}

// TopUpRequest describes a session package purchase.
type TopUpRequest struct {
	Sessions int `json:"sessions" validate:"required,gt=0"`
}

// CreateStudentRequest describes a new student with billing defaults.
type CreateStudentRequest struct {
	FullName                 string     `json:"full_name" validate:"required"`
	Subject                  string     `json:"subject"`
	ParentRate               float64    `json:"parent_rate" validate:"required,gt=0"`
	TutorRate                float64    `json:"tutor_rate" validate:"required,gt=0"`
	SessionsBooked           int        `json:"sessions_booked" validate:"gte=0"`
	AutoInvoiceEnabled       bool       `json:"auto_invoice_enabled"`
	RecurringInvoiceSendDate *time.Time `json:"recurring_invoice_send_date,omitempty"`
}

// StudentService exposes the student record and its financial mutation paths.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// Create registers a new student. The session balance starts at the booked
// package size.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		FullName:                 req.FullName,
		Subject:                  req.Subject,
		ParentRate:               decimal.NewFromFloat(req.ParentRate),
		TutorRate:                decimal.NewFromFloat(req.TutorRate),
		SessionsBooked:           req.SessionsBooked,
		SessionsRemaining:        req.SessionsBooked,
		AutoInvoiceEnabled:       req.AutoInvoiceEnabled,
		RecurringInvoiceSendDate: req.RecurringInvoiceSendDate,
		Active:                   true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Internal(err, "failed to create student")
	}
	return student, nil
}

// Get returns a student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	return student, nil
}

// TopUp credits a purchased package: the balance grows by the package size and
// the package size itself is recorded for future invoice sizing.
func (s *StudentService) TopUp(ctx context.Context, id string, req TopUpRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid top-up payload")
	}
	student, err := s.repo.TopUpSessions(ctx, id, req.Sessions)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to top up sessions")
	}
	s.logger.Info("session package credited",
		zap.String("student_id", id),
		zap.Int("sessions", req.Sessions),
		zap.Int("sessions_remaining", student.SessionsRemaining),
	)
	return student, nil
}
