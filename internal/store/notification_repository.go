package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) error
	// FindGroupable returns the still-unread message notification scoped
	// to the conversation, or ErrNotFound when the burst is closed.
	FindGroupable(ctx context.Context, recipientID, conversationID string) (*Notification, error)
	UpdateGroup(ctx context.Context, id string, count int, title, body string) error
	ByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) FindGroupable(ctx context.Context, recipientID, conversationID string) (*Notification, error) {
	var notification Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND type = ? AND `read` = ? AND related_id = ? AND related_type = ?",
			recipientID, MessageReceivedType, false, conversationID, RelatedConversation).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find groupable notification: %w", err)
	}
	return &notification, nil
}

// UpdateGroup grows an existing notification in place: new count, rendered
// title, latest preview as body, refreshed timestamp.
func (r *notificationRepository) UpdateGroup(ctx context.Context, id string, count int, title, body string) error {
	result := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"grouped_count": count,
			"title":         title,
			"body":          body,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update notification group: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) ByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*Notification, error) {
	var notifications []*Notification

	query := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	result := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
