package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarfund-api/internal/models"
)

// NotificationRepository handles persistence of in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists a new notification record.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, recipient, subject, message, viewed, created_at)
        VALUES (:id, :recipient, :subject, :message, :viewed, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipient string) ([]models.Notification, error) {
	const query = `SELECT id, recipient, subject, message, viewed, created_at
        FROM notifications WHERE recipient = $1 ORDER BY created_at DESC`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, recipient); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// CountUnread returns the number of unviewed notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipient string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient = $1 AND viewed = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, recipient); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkViewed flips the viewed flag. The recipient scope keeps one user
// from marking another user's notifications.
func (r *NotificationRepository) MarkViewed(ctx context.Context, id, recipient string) error {
	const query = `UPDATE notifications SET viewed = TRUE WHERE id = $1 AND recipient = $2`
	result, err := r.db.ExecContext(ctx, query, id, recipient)
	if err != nil {
		return fmt.Errorf("mark notification viewed: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
