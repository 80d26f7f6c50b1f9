package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
	"github.com/brightpath/agency-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListRecent(ctx context.Context, limit int) ([]models.Notification, error)
}

type enqueuer interface {
	Enqueue(job jobs.Job) error
}

// NotificationDeliveryJob is the job type the delivery queue handler is
// registered for; its payload is the notification ID.
const NotificationDeliveryJob = "deliver_notification"

// NotificationService persists notifications and hands delivery off to the
// background queue. Persistence is the source of truth; a failed enqueue only
// delays delivery.
type NotificationService struct {
	repo   notificationRepository
	queue  enqueuer
	logger *zap.Logger
}

// NewNotificationService constructs NotificationService. queue may be nil when
// background delivery is disabled.
func NewNotificationService(repo notificationRepository, queue enqueuer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, queue: queue, logger: logger}
}

// Notify stores the notification and enqueues its delivery.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		return appErrors.Internal(err, "failed to store notification")
	}
	if s.queue != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: NotificationDeliveryJob, Payload: n.ID}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue notification delivery",
				zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
	return nil
}

// ListRecent returns the newest notifications.
func (s *NotificationService) ListRecent(ctx context.Context, limit int) ([]models.Notification, error) {
	notifications, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list notifications")
	}
	return notifications, nil
}
