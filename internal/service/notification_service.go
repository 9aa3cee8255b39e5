package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarfund-api/internal/models"
	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
	"github.com/noah-isme/scholarfund-api/pkg/jobs"
	"github.com/noah-isme/scholarfund-api/pkg/notifier"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, recipient string) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int, error)
	MarkViewed(ctx context.Context, id, recipient string) error
}

// NotificationService persists notifications and fans delivery out to the
// configured backend. Delivery is fire-and-forget: the workflow that
// raised the notification never waits on it and never sees its errors.
type NotificationService struct {
	repo     notificationStore
	sender   notifier.Notifier
	queue    *jobs.Queue
	redis    *redis.Client
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs the service. The queue is created
// here so the delivery handler can close over the sender; callers start
// and stop it through StartWorkers/StopWorkers.
func NewNotificationService(repo notificationStore, sender notifier.Notifier, redisClient *redis.Client, queueCfg jobs.QueueConfig, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = notifier.NewLog(logger)
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	svc := &NotificationService{
		repo:     repo,
		sender:   sender,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		metrics:  metrics,
		logger:   logger,
	}
	queueCfg.Logger = logger
	svc.queue = jobs.NewQueue("notifications", svc.deliver, queueCfg)
	return svc
}

// StartWorkers launches the delivery workers.
func (s *NotificationService) StartWorkers(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopWorkers drains and stops the delivery workers.
func (s *NotificationService) StopWorkers() {
	s.queue.Stop()
}

// Dispatch persists the notification and enqueues delivery. Errors are
// logged and swallowed: a notification must never fail the workflow that
// raised it.
func (s *NotificationService) Dispatch(ctx context.Context, recipient, subject, message string) {
	if recipient == "" {
		return
	}
	notification := &models.Notification{
		Recipient: recipient,
		Subject:   subject,
		Message:   message,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Sugar().Errorw("failed to persist notification", "recipient", recipient, "subject", subject, "error", err)
		return
	}
	s.invalidateUnread(ctx, recipient)

	if err := s.queue.Enqueue(jobs.Job{ID: notification.ID, Type: "deliver", Payload: *notification}); err != nil {
		s.logger.Sugar().Warnw("delivery queue unavailable, notification stored only", "id", notification.ID, "error", err)
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Sugar().Errorw("unexpected delivery payload", "job_id", job.ID)
		return nil
	}
	if err := s.sender.Send(notification.Recipient, notification.Subject, notification.Message); err != nil {
		s.metrics.RecordDelivery(false)
		return fmt.Errorf("deliver notification %s: %w", notification.ID, err)
	}
	s.metrics.RecordDelivery(true)
	return nil
}

// ListForRecipient returns the recipient's notifications with the unread
// count alongside.
func (s *NotificationService) ListForRecipient(ctx context.Context, recipient string) ([]models.Notification, int, error) {
	if recipient == "" {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "recipient is required")
	}
	notifications, err := s.repo.ListByRecipient(ctx, recipient)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.unreadCount(ctx, recipient)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return notifications, unread, nil
}

// MarkViewed flips the viewed flag on behalf of the recipient.
func (s *NotificationService) MarkViewed(ctx context.Context, id, recipient string) error {
	if recipient == "" {
		return appErrors.Clone(appErrors.ErrValidation, "recipient is required")
	}
	if err := s.repo.MarkViewed(ctx, id, recipient); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification viewed")
	}
	s.invalidateUnread(ctx, recipient)
	return nil
}

func (s *NotificationService) unreadCount(ctx context.Context, recipient string) (int, error) {
	key := unreadCacheKey(recipient)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			if count, convErr := strconv.Atoi(cached); convErr == nil {
				return count, nil
			}
		}
	}
	count, err := s.repo.CountUnread(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, strconv.Itoa(count), s.cacheTTL).Err(); err != nil {
			s.logger.Sugar().Debugw("unread cache write failed", "recipient", recipient, "error", err)
		}
	}
	return count, nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, recipient string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, unreadCacheKey(recipient)).Err(); err != nil {
		s.logger.Sugar().Debugw("unread cache invalidation failed", "recipient", recipient, "error", err)
	}
}

func unreadCacheKey(recipient string) string {
	return "notifications:unread:" + recipient
}
