// Package typing maintains the per-user "is typing" flag with a
// debounce-to-clear timer.
package typing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store persists the scalar typing flag. A user is typing in at most one
// conversation at a time; readers match the conversation id themselves.
type Store interface {
	Set(ctx context.Context, userID, conversationID string) error
	Clear(ctx context.Context, userID string) error
}

type Controller struct {
	store    Store
	userID   string
	debounce time.Duration
	log      *zap.Logger

	mu             sync.Mutex
	timer          *time.Timer
	typing         bool
	conversationID string
}

func NewController(store Store, userID string, debounce time.Duration, log *zap.Logger) *Controller {
	return &Controller{
		store:    store,
		userID:   userID,
		debounce: debounce,
		log:      log,
	}
}

// OnTextChange marks the user typing in the conversation and restarts the
// inactivity timer. Every call writes through to the store: the flag
// carries a TTL there, and a long typing burst must keep refreshing it or
// the indicator lapses mid-burst. Mutation errors are logged and swallowed,
// so the indicator degrades to "not typing" silently.
func (c *Controller) OnTextChange(ctx context.Context, conversationID string) {
	c.mu.Lock()
	c.typing = true
	c.conversationID = conversationID
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.expire)
	c.mu.Unlock()

	if err := c.store.Set(ctx, c.userID, conversationID); err != nil {
		c.log.Warn("typing write failed",
			zap.String("user_id", c.userID), zap.Error(err))
	}
}

// Clear marks not-typing immediately and cancels the pending timer.
func (c *Controller) Clear(ctx context.Context) {
	c.mu.Lock()
	wasTyping := c.typing
	c.typing = false
	c.conversationID = ""
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if wasTyping {
		c.clearStore(ctx)
	}
}

// Stop issues a best-effort clear on teardown.
func (c *Controller) Stop() {
	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	c.Clear(ctx)
}

func (c *Controller) expire() {
	c.mu.Lock()
	if !c.typing {
		c.mu.Unlock()
		return
	}
	c.typing = false
	c.conversationID = ""
	c.timer = nil
	c.mu.Unlock()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	c.clearStore(ctx)
}

func (c *Controller) clearStore(ctx context.Context) {
	if err := c.store.Clear(ctx, c.userID); err != nil {
		c.log.Warn("typing clear failed",
			zap.String("user_id", c.userID), zap.Error(err))
	}
}
