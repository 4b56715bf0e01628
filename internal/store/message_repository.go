package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepository interface {
	// Send inserts the message and updates the conversation's preview and
	// last-message timestamp in one transaction; readers observe both
	// effects together or neither.
	Send(ctx context.Context, msg *Message, preview string) (*Message, *Conversation, error)
	History(ctx context.Context, conversationID string) ([]*Message, error)
	ListUnread(ctx context.Context, recipientID string) ([]UnreadMessage, error)
	MarkRead(ctx context.Context, conversationID, recipientID string) (int64, error)
	Delete(ctx context.Context, messageID, requesterID string) error
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Send(ctx context.Context, msg *Message, preview string) (*Message, *Conversation, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now().UTC()

	var conv Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", msg.ConversationID).First(&conv).Error; err != nil {
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		conv.LastMessagePreview = preview
		conv.LastMessageAt = &msg.CreatedAt
		return tx.Model(&Conversation{}).
			Where("id = ?", conv.ID).
			Updates(map[string]interface{}{
				"last_message_preview": preview,
				"last_message_at":      msg.CreatedAt,
			}).Error
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, &conv, nil
}

func (r *messageRepository) History(ctx context.Context, conversationID string) ([]*Message, error) {
	var messages []*Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message history: %w", err)
	}
	return messages, nil
}

// ListUnread returns (id, conversation_id) for every unread message
// addressed to the recipient, in no particular order.
func (r *messageRepository) ListUnread(ctx context.Context, recipientID string) ([]UnreadMessage, error) {
	var rows []UnreadMessage
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Select("id", "conversation_id").
		Where("recipient_id = ? AND `read` = ?", recipientID, false).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}
	return rows, nil
}

// MarkRead is a bulk update over every unread message in the conversation
// addressed to the recipient, not a per-message flip.
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, recipientID string) (int64, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND `read` = ?", conversationID, recipientID, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": &now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete hard-removes a message; only the sender may delete.
func (r *messageRepository) Delete(ctx context.Context, messageID, requesterID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", messageID, requesterID).
		Delete(&Message{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
