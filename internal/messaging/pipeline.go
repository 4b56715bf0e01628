// Package messaging implements the optimistic send pipeline: record the
// self-echo marker, truncate the preview, write message and conversation
// preview atomically, then fire best-effort notification and push effects.
package messaging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"carematch/internal/identity"
	"carematch/internal/realtime"
	"carematch/internal/store"
)

// Notifier creates or grows the recipient's grouped notification.
type Notifier interface {
	Notify(ctx context.Context, recipientID, conversationID, senderName, preview string) error
}

// Publisher pushes change events to subscribed clients. Delivery is not
// guaranteed on every platform; the poll fallback covers the gaps.
type Publisher interface {
	PublishConversation(ctx context.Context, userID string, ev realtime.Event) error
	PublishThread(ctx context.Context, conversationID string, ev realtime.Event) error
}

// SendResult carries both effects of the atomic send.
type SendResult struct {
	Message      *store.Message      `json:"message"`
	Conversation *store.Conversation `json:"conversation"`
}

type Pipeline struct {
	messages   store.MessageRepository
	resolver   *identity.Resolver
	notifier   Notifier
	publisher  Publisher
	markers    *SentMarkers
	previewLen int
	log        *zap.Logger
	now        func() time.Time
}

func NewPipeline(
	messages store.MessageRepository,
	resolver *identity.Resolver,
	notifier Notifier,
	publisher Publisher,
	markers *SentMarkers,
	previewLen int,
	log *zap.Logger,
) *Pipeline {
	return &Pipeline{
		messages:   messages,
		resolver:   resolver,
		notifier:   notifier,
		publisher:  publisher,
		markers:    markers,
		previewLen: previewLen,
		log:        log,
		now:        time.Now,
	}
}

// Send performs the optimistic send. Missing ids and write failures both
// yield a nil result rather than an error: the former are caller bugs in
// this contract, the latter are logged and left to the caller to re-invoke.
// Notification and push failures never fail a send that reached the store.
func (p *Pipeline) Send(ctx context.Context, conversationID, senderID, recipientID, content string) *SendResult {
	if conversationID == "" || senderID == "" {
		p.log.Warn("send called without conversation or sender id",
			zap.String("conversation_id", conversationID), zap.String("sender_id", senderID))
		return nil
	}

	// marker goes down before the write so a push event racing the
	// response still classifies as a self-echo
	p.markers.MarkSent(conversationID, p.now())

	preview := Preview(content, p.previewLen)
	msg := &store.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
	}

	saved, conv, err := p.messages.Send(ctx, msg, preview)
	if err != nil {
		p.log.Error("message send failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return nil
	}

	senderName := p.senderName(ctx, senderID, conv)
	if err := p.notifier.Notify(ctx, recipientID, conversationID, senderName, preview); err != nil {
		p.log.Warn("notification grouping failed",
			zap.String("recipient_id", recipientID), zap.Error(err))
	}

	ev := realtime.Event{
		ConversationID: conversationID,
		MessageID:      saved.ID,
		SenderID:       senderID,
		Preview:        preview,
		LastMessageAt:  saved.CreatedAt,
	}
	if err := p.publisher.PublishConversation(ctx, recipientID, ev); err != nil {
		p.log.Warn("conversation push failed", zap.Error(err))
	}
	if err := p.publisher.PublishThread(ctx, conversationID, ev); err != nil {
		p.log.Warn("thread push failed", zap.Error(err))
	}

	return &SendResult{Message: saved, Conversation: conv}
}

// MarkRead flips every unread message in the conversation addressed to the
// recipient and returns how many rows changed.
func (p *Pipeline) MarkRead(ctx context.Context, conversationID, recipientID string) (int64, error) {
	return p.messages.MarkRead(ctx, conversationID, recipientID)
}

// Delete hard-removes a message; the store enforces sender-only.
func (p *Pipeline) Delete(ctx context.Context, messageID, requesterID string) error {
	return p.messages.Delete(ctx, messageID, requesterID)
}

// History returns the full message history of a conversation.
func (p *Pipeline) History(ctx context.Context, conversationID string) ([]*store.Message, error) {
	return p.messages.History(ctx, conversationID)
}

func (p *Pipeline) senderName(ctx context.Context, senderID string, conv *store.Conversation) string {
	profiles, err := p.resolver.Resolve(ctx, []string{senderID})
	if err == nil {
		if profile, ok := profiles[senderID]; ok {
			return profile.Name()
		}
	} else {
		p.log.Warn("sender profile resolve failed", zap.String("sender_id", senderID), zap.Error(err))
	}
	role := ""
	switch senderID {
	case conv.ParticipantAID:
		role = conv.ParticipantARole
	case conv.ParticipantBID:
		role = conv.ParticipantBRole
	}
	if role != "" {
		return identity.CapitalizeRole(role)
	}
	return "Someone"
}
