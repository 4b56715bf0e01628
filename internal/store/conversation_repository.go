package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	ByID(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context, userID string) ([]*Conversation, error)
	FindOrCreate(ctx context.Context, userA, userB, roleA, roleB string) (*Conversation, error)
	Archive(ctx context.Context, id string) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) ByID(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// List returns the user's active conversations ordered by last-message
// time descending, conversations without any message last. Archived
// conversations never appear.
func (r *conversationRepository) List(ctx context.Context, userID string) ([]*Conversation, error) {
	var conversations []*Conversation
	err := r.db.WithContext(ctx).
		Where("(participant_a_id = ? OR participant_b_id = ?) AND status = ?",
			userID, userID, ConversationActive).
		Order("last_message_at IS NULL, last_message_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// FindOrCreate returns the single conversation between the two users,
// checking both participant orderings before creating a new row.
func (r *conversationRepository) FindOrCreate(ctx context.Context, userA, userB, roleA, roleB string) (*Conversation, error) {
	if userA == "" || userB == "" {
		return nil, fmt.Errorf("both participant ids are required")
	}
	if userA == userB {
		return nil, fmt.Errorf("conversation requires two distinct participants")
	}

	var conv Conversation
	err := r.db.WithContext(ctx).
		Where("(participant_a_id = ? AND participant_b_id = ?) OR (participant_a_id = ? AND participant_b_id = ?)",
			userA, userB, userB, userA).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	conv = Conversation{
		ID:               uuid.New().String(),
		ParticipantAID:   userA,
		ParticipantBID:   userB,
		ParticipantARole: roleA,
		ParticipantBRole: roleB,
		Status:           ConversationActive,
	}
	if err := r.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// Archive flips the status; conversations are never physically deleted.
func (r *conversationRepository) Archive(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("id = ?", id).
		Update("status", ConversationArchived)
	if result.Error != nil {
		return fmt.Errorf("failed to archive conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
