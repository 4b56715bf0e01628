package store

import "time"

// Notification is one row per (recipient, conversation) burst of unread
// messages. GroupedCount is the authoritative counter; the title string is
// rendered from it for display and never parsed back.
type Notification struct {
	ID           string           `gorm:"primaryKey;size:36" json:"id"`
	RecipientID  string           `gorm:"index;size:36;not null" json:"recipient_id"`
	Title        string           `gorm:"size:255" json:"title"`
	Body         string           `gorm:"size:255" json:"body"`
	Type         NotificationType `gorm:"size:40;not null" json:"type"`
	Link         string           `gorm:"size:255" json:"link"`
	RelatedID    string           `gorm:"index;size:36" json:"related_id"`
	RelatedType  string           `gorm:"size:40" json:"related_type"`
	GroupedCount int              `gorm:"default:1" json:"grouped_count"`
	Read         bool             `gorm:"default:false" json:"read"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}
