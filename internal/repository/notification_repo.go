package repository

import (
	"context"
	"fmt"
	"time"

	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
)

const notificationColumns = `id, user_id, type, title, message, priority, is_read, action_link, scheduled_for, created_at`

// NotificationRepository handles users' notification inboxes
type NotificationRepository struct {
	db database.DBTX
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db database.DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification and fills in its ID
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	n.CreatedAt = utc(time.Now())
	n.ScheduledFor = utcPtr(n.ScheduledFor)
	query := `
		INSERT INTO notifications (user_id, type, title, message, priority, is_read, action_link, scheduled_for, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		n.UserID, n.Type, n.Title, n.Message, n.Priority, false, n.ActionLink, n.ScheduledFor, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	return nil
}

// GetByID retrieves a notification
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	n := &models.Notification{}
	err := r.db.GetContext(ctx, n, "SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	if !found {
		return nil, nil
	}
	return n, nil
}

// ListByUser returns delivered notifications newest first. Entries scheduled
// after now are hidden.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, now time.Time, limit int) ([]models.Notification, error) {
	query := "SELECT " + notificationColumns + `
		FROM notifications
		WHERE user_id = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)`
	args := []interface{}{userID, utc(now)}
	if unreadOnly {
		query += " AND is_read = ?"
		args = append(args, false)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	notifications := []models.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount counts delivered unread notifications
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND is_read = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)
	`
	if err := r.db.GetContext(ctx, &count, query, userID, false, utc(now)); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of a user's notifications as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?", true, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n > 0, nil
}

// MarkAllRead marks every notification of a user as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?", true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return rowsAffected(result)
}

// Delete removes one of a user's notifications
func (r *NotificationRepository) Delete(ctx context.Context, id, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete notification: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to delete notification: %w", err)
	}
	return n > 0, nil
}

// HasUnreadOfType reports whether the user already has an unread notification
// of the given type created at or after since
func (r *NotificationRepository) HasUnreadOfType(ctx context.Context, userID int64, typ models.NotificationType, since time.Time) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM notifications WHERE user_id = ? AND type = ? AND is_read = ? AND created_at >= ?"
	if err := r.db.GetContext(ctx, &count, query, userID, typ, false, utc(since)); err != nil {
		return false, fmt.Errorf("failed to check notifications: %w", err)
	}
	return count > 0, nil
}
