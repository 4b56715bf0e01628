// Package notify collapses bursts of inbound messages into a single growing
// notification per (recipient, conversation) pair instead of one
// notification per message.
package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"carematch/internal/store"
)

// legacyCountPattern extracts the running count from titles written before
// grouped_count existed, e.g. "Alice (3 messages)" or "Alice (2 new
// messages)". Only consulted when a row carries no count.
var legacyCountPattern = regexp.MustCompile(`\((\d+) (?:new )?messages?\)`)

type Service struct {
	repo store.NotificationRepository
	log  *zap.Logger
}

func NewService(repo store.NotificationRepository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Notify records one inbound message for the recipient. The first unread
// message in a conversation creates a notification; each subsequent one
// grows the same row until it is read, after which a fresh row starts.
// Failures here must never abort the send that triggered them; callers log
// and ignore the returned error.
func (s *Service) Notify(ctx context.Context, recipientID, conversationID, senderName, preview string) error {
	existing, err := s.repo.FindGroupable(ctx, recipientID, conversationID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("groupable lookup failed, creating fresh notification",
			zap.String("recipient_id", recipientID), zap.Error(err))
	}

	if existing != nil {
		count := GroupedCount(existing) + 1
		title := GroupTitle(senderName, count)
		err := s.repo.UpdateGroup(ctx, existing.ID, count, title, preview)
		if err == nil {
			return nil
		}
		s.log.Warn("notification group update failed, creating fresh notification",
			zap.String("notification_id", existing.ID), zap.Error(err))
	}

	return s.repo.Create(ctx, &store.Notification{
		RecipientID:  recipientID,
		Title:        GroupTitle(senderName, 1),
		Body:         preview,
		Type:         store.MessageReceivedType,
		Link:         "/messages/" + conversationID,
		RelatedID:    conversationID,
		RelatedType:  store.RelatedConversation,
		GroupedCount: 1,
	})
}

// GroupTitle renders the display title from the authoritative count. The
// first message shows the bare sender name; later ones append the count.
func GroupTitle(senderName string, count int) string {
	if count <= 1 {
		return senderName
	}
	return fmt.Sprintf("%s (%d messages)", senderName, count)
}

// GroupedCount returns the row's counter, falling back to parsing legacy
// titles and defaulting to 1 when neither yields a number.
func GroupedCount(n *store.Notification) int {
	if n.GroupedCount > 0 {
		return n.GroupedCount
	}
	if m := legacyCountPattern.FindStringSubmatch(n.Title); m != nil {
		if count, err := strconv.Atoi(m[1]); err == nil {
			return count
		}
	}
	return 1
}

// List returns the recipient's notifications, newest activity first.
func (s *Service) List(ctx context.Context, recipientID string, limit, offset int) ([]*store.Notification, error) {
	return s.repo.ByRecipient(ctx, recipientID, limit, offset)
}

// MarkRead closes a grouped notification; the next inbound message in its
// conversation starts a new one.
func (s *Service) MarkRead(ctx context.Context, id, recipientID string) error {
	return s.repo.MarkRead(ctx, id, recipientID)
}
