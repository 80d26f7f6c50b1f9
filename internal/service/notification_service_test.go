package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	"github.com/brightpath/agency-api/pkg/jobs"
)

type notificationRepoStub struct {
	created []models.Notification
}

func (s *notificationRepoStub) Create(ctx context.Context, n *models.Notification) error {
	n.ID = "notif-1"
	s.created = append(s.created, *n)
	return nil
}

func (s *notificationRepoStub) ListRecent(ctx context.Context, limit int) ([]models.Notification, error) {
	return s.created, nil
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (s *enqueuerStub) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func TestNotifyPersistsAndEnqueues(t *testing.T) {
	repo := &notificationRepoStub{}
	queue := &enqueuerStub{}
	svc := NewNotificationService(repo, queue, zap.NewNop())

	err := svc.Notify(context.Background(), &models.Notification{
		RecipientKind: models.RecipientAdmin,
		Kind:          models.NotificationInvoicePaymentAlert,
		Subject:       "Invoice unpaid",
	})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "deliver_notification", queue.jobs[0].Type)
	assert.Equal(t, "notif-1", queue.jobs[0].Payload)
}

func TestNotifySurvivesEnqueueFailure(t *testing.T) {
	repo := &notificationRepoStub{}
	queue := &enqueuerStub{err: errors.New("queue full")}
	svc := NewNotificationService(repo, queue, zap.NewNop())

	err := svc.Notify(context.Background(), &models.Notification{Kind: models.NotificationInvoiceReminder})
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}

func TestNotifyWithoutQueue(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, nil, zap.NewNop())

	err := svc.Notify(context.Background(), &models.Notification{Kind: models.NotificationInvoiceReminder})
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}
