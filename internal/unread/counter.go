// Package unread maintains per-conversation unread counters. Counts are
// recomputed from scratch on every refresh (full replace, never
// incremental) so duplicate or out-of-order refreshes cannot drift.
package unread

import (
	"context"
	"sync"

	"carematch/internal/store"
)

// Lister fetches the recipient's unread message rows for tallying.
type Lister interface {
	ListUnread(ctx context.Context, recipientID string) ([]store.UnreadMessage, error)
}

// Tally counts unread rows per conversation id. Pure and idempotent:
// re-running it on the same set yields identical counts regardless of row
// order.
func Tally(rows []store.UnreadMessage) map[string]int {
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ConversationID]++
	}
	return counts
}

type Counter struct {
	lister Lister
	userID string

	mu     sync.RWMutex
	counts map[string]int
}

func NewCounter(lister Lister, userID string) *Counter {
	return &Counter{
		lister: lister,
		userID: userID,
		counts: make(map[string]int),
	}
}

// Refresh re-fetches the unread set and replaces the counts wholesale. On
// error the previous counts stay in place and the error is surfaced to the
// caller.
func (c *Counter) Refresh(ctx context.Context) (map[string]int, error) {
	rows, err := c.lister.ListUnread(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	counts := Tally(rows)

	c.mu.Lock()
	c.counts = counts
	c.mu.Unlock()

	return c.Counts(), nil
}

// Count returns the unread count for one conversation.
func (c *Counter) Count(conversationID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[conversationID]
}

// Total returns the unread badge total across conversations.
func (c *Counter) Total() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Counts returns a copy of the per-conversation counts.
func (c *Counter) Counts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
