package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

type NotificationType string

const (
	MessageReceivedType NotificationType = "message_received"
	SystemType          NotificationType = "system"
)

// Role tags carried on profiles and conversation participants.
const (
	RoleEmployer = "employer"
	RoleWorker   = "worker"
	RoleAgency   = "agency"
)

// RelatedConversation scopes a notification to one conversation so later
// messages in the same conversation group into it.
const RelatedConversation = "conversation"
