package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// typingTTL caps how long a typing flag can outlive a client that died
// without clearing it. The debounce timer is the primary clear path; the
// TTL is only a safety net.
const typingTTL = 10 * time.Second

// TypingStore holds the per-user typing flag. One scalar per user: a user
// is typing in at most one conversation at a time, and readers must match
// the conversation id against their own.
type TypingStore struct {
	client *redis.Client
}

func NewTypingStore(client *redis.Client) *TypingStore {
	return &TypingStore{client: client}
}

func typingKey(userID string) string {
	return fmt.Sprintf("typing:%s", userID)
}

// Set marks the user as typing in the conversation.
func (s *TypingStore) Set(ctx context.Context, userID, conversationID string) error {
	return s.client.Set(ctx, typingKey(userID), conversationID, typingTTL).Err()
}

// Clear marks the user as not typing anywhere.
func (s *TypingStore) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, typingKey(userID)).Err()
}

// Get returns the conversation the user is typing in, or ok=false.
func (s *TypingStore) Get(ctx context.Context, userID string) (conversationID string, ok bool, err error) {
	v, err := s.client.Get(ctx, typingKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, v != "", nil
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cannot connect to redis: %w", err)
	}
	return client, nil
}
