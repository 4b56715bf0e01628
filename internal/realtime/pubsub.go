// Package realtime carries the push channel and ephemeral typing state over
// Redis. Delivery is best-effort; the sync coordinator's polling fallback is
// the source of truth when push is unavailable.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Event describes one conversation change pushed to subscribers. List
// events are keyed by LastMessageAt, thread events by MessageID.
type Event struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	Preview        string    `json:"preview"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

func userChannel(userID string) string {
	return fmt.Sprintf("sync:user:%s", userID)
}

func threadChannel(conversationID string) string {
	return fmt.Sprintf("sync:conversation:%s", conversationID)
}

// PubSub publishes and subscribes conversation change events.
type PubSub struct {
	client *redis.Client
	log    *zap.Logger
}

func NewPubSub(client *redis.Client, log *zap.Logger) *PubSub {
	return &PubSub{client: client, log: log}
}

// PublishConversation notifies one user's conversation-list subscription.
func (p *PubSub) PublishConversation(ctx context.Context, userID string, ev Event) error {
	return p.publish(ctx, userChannel(userID), ev)
}

// PublishThread notifies every open subscription on the conversation.
func (p *PubSub) PublishThread(ctx context.Context, conversationID string, ev Event) error {
	return p.publish(ctx, threadChannel(conversationID), ev)
}

func (p *PubSub) publish(ctx context.Context, channel string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channel, data).Err()
}

// SubscribeConversationList delivers conversation-list events for the user
// until ctx is cancelled.
func (p *PubSub) SubscribeConversationList(ctx context.Context, userID string, handler func(Event)) error {
	return p.subscribe(ctx, userChannel(userID), handler)
}

// SubscribeThread delivers thread events for one conversation until ctx is
// cancelled.
func (p *PubSub) SubscribeThread(ctx context.Context, conversationID string, handler func(Event)) error {
	return p.subscribe(ctx, threadChannel(conversationID), handler)
}

func (p *PubSub) subscribe(ctx context.Context, channel string, handler func(Event)) error {
	sub := p.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					p.log.Warn("dropping malformed push event",
						zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(ev)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
