package store

import "time"

// Message is immutable after creation except for the mark-read mutation.
type Message struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string     `gorm:"index;size:36;not null" json:"conversation_id"`
	SenderID       string     `gorm:"index;size:36;not null" json:"sender_id"`
	RecipientID    string     `gorm:"index;size:36;not null" json:"recipient_id"`
	Content        string     `gorm:"type:text" json:"content"`
	Read           bool       `gorm:"default:false" json:"read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// UnreadMessage is the projection used for per-conversation tallying.
type UnreadMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
}
