package store

import "time"

// Conversation is a two-party thread between an employer and a worker or
// agency. The preview and timestamp are denormalized from the latest
// message so conversation lists never join against the messages table.
type Conversation struct {
	ID                 string             `gorm:"primaryKey;size:36" json:"id"`
	ParticipantAID     string             `gorm:"index:idx_participants,unique;size:36;not null" json:"participant_a_id"`
	ParticipantBID     string             `gorm:"index:idx_participants,unique;size:36;not null" json:"participant_b_id"`
	ParticipantARole   string             `gorm:"size:20;not null" json:"participant_a_role"`
	ParticipantBRole   string             `gorm:"size:20;not null" json:"participant_b_role"`
	LastMessagePreview string             `gorm:"size:120" json:"last_message_preview"`
	LastMessageAt      *time.Time         `gorm:"index" json:"last_message_at"`
	Status             ConversationStatus `gorm:"type:enum('active','archived');default:'active'" json:"status"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// OtherParticipant returns the id and role of the participant that is not
// userID. A conversation always has exactly two distinct participants.
func (c *Conversation) OtherParticipant(userID string) (id, role string) {
	if c.ParticipantAID == userID {
		return c.ParticipantBID, c.ParticipantBRole
	}
	return c.ParticipantAID, c.ParticipantARole
}

// Involves reports whether userID is one of the two participants.
func (c *Conversation) Involves(userID string) bool {
	return c.ParticipantAID == userID || c.ParticipantBID == userID
}
