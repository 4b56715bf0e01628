// Package syncer orchestrates one user's live view of their conversations.
// It merges the Redis push channel with a polling fallback, decides which
// observed changes are genuinely new, suppresses echoes of the user's own
// sends, and hands surfaced messages to caller-supplied handlers.
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"carematch/internal/identity"
	"carematch/internal/messaging"
	"carematch/internal/realtime"
	"carematch/internal/store"
	"carematch/internal/unread"
)

// NewMessage is delivered to Handlers.OnNewMessage for every inbound message
// that survived the new-vs-seen check and the self-echo filter.
type NewMessage struct {
	ConversationID string
	MessageID      string
	SenderID       string
	SenderName     string
	Preview        string
	LastMessageAt  time.Time
}

// Handlers are the caller's hooks. Any of them may be nil.
type Handlers struct {
	OnNewMessage    func(NewMessage)
	OnConversations func([]*store.Conversation)
	OnThread        func(conversationID string, messages []*store.Message)
	OnUnread        func(counts map[string]int, total int)
	OnError         func(err error)
}

// Subscriber is the push channel the coordinator listens on.
type Subscriber interface {
	SubscribeConversationList(ctx context.Context, userID string, handler func(realtime.Event)) error
	SubscribeThread(ctx context.Context, conversationID string, handler func(realtime.Event)) error
}

// Sender is the slice of the send pipeline the coordinator drives.
type Sender interface {
	Send(ctx context.Context, conversationID, senderID, recipientID, content string) *messaging.SendResult
	MarkRead(ctx context.Context, conversationID, recipientID string) (int64, error)
	History(ctx context.Context, conversationID string) ([]*store.Message, error)
}

// NameResolver resolves sender ids into display profiles.
type NameResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]*identity.Profile, error)
}

// Coordinator tracks, per conversation, the last observed last-message
// timestamp (list view) and last observed message id (thread view). Push
// events and poll results funnel through the same decision so duplicate or
// out-of-order deliveries of one underlying change are harmless no-ops.
type Coordinator struct {
	userID        string
	conversations store.ConversationRepository
	sender        Sender
	resolver      NameResolver
	counter       *unread.Counter
	subscriber    Subscriber
	markers       *messaging.SentMarkers
	handlers      Handlers
	pollInterval  time.Duration
	log           *zap.Logger

	mu          sync.Mutex
	listSeen    map[string]time.Time
	threadSeen  map[string]string
	convCache   map[string]*store.Conversation
	openThreads map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(
	userID string,
	conversations store.ConversationRepository,
	sender Sender,
	resolver NameResolver,
	counter *unread.Counter,
	subscriber Subscriber,
	markers *messaging.SentMarkers,
	handlers Handlers,
	pollInterval time.Duration,
	log *zap.Logger,
) *Coordinator {
	return &Coordinator{
		userID:        userID,
		conversations: conversations,
		sender:        sender,
		resolver:      resolver,
		counter:       counter,
		subscriber:    subscriber,
		markers:       markers,
		handlers:      handlers,
		pollInterval:  pollInterval,
		log:           log,
		listSeen:      make(map[string]time.Time),
		threadSeen:    make(map[string]string),
		convCache:     make(map[string]*store.Conversation),
		openThreads:   make(map[string]context.CancelFunc),
	}
}

// Start subscribes the conversation-list channel, takes an initial snapshot
// to prime the last-seen state, and launches the polling fallback. The
// snapshot itself never surfaces messages.
func (c *Coordinator) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.subscriber.SubscribeConversationList(c.ctx, c.userID, c.handleListEvent); err != nil {
		c.cancel()
		return err
	}

	c.refreshConversations(c.ctx)
	c.refreshUnread(c.ctx)

	c.wg.Add(1)
	go c.pollLoop()
	return nil
}

// Stop tears down the poll loop and every open thread subscription.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	for id, cancel := range c.openThreads {
		cancel()
		delete(c.openThreads, id)
	}
	c.mu.Unlock()
}

// Send delegates to the pipeline with this session's user as sender, primes
// the last-seen state so the write is not re-surfaced by poll or push, and
// refreshes the thread immediately rather than waiting for push delivery.
func (c *Coordinator) Send(ctx context.Context, conversationID, recipientID, content string) *messaging.SendResult {
	result := c.sender.Send(ctx, conversationID, c.userID, recipientID, content)
	if result == nil {
		return nil
	}

	c.mu.Lock()
	if result.Conversation.LastMessageAt != nil {
		c.listSeen[conversationID] = *result.Conversation.LastMessageAt
	}
	c.threadSeen[conversationID] = result.Message.ID
	c.convCache[conversationID] = result.Conversation
	c.mu.Unlock()

	c.refreshThread(ctx, conversationID)
	c.refreshUnread(ctx)
	c.refreshConversations(ctx)
	return result
}

// MarkRead flips the conversation's unread messages and refreshes the
// counter so the change is visible without waiting for the next poll.
func (c *Coordinator) MarkRead(ctx context.Context, conversationID string) int64 {
	affected, err := c.sender.MarkRead(ctx, conversationID, c.userID)
	if err != nil {
		c.log.Error("mark read failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return 0
	}
	c.refreshUnread(ctx)
	return affected
}

// OpenThread subscribes the conversation's thread channel and primes its
// last-seen message id from the current history.
func (c *Coordinator) OpenThread(ctx context.Context, conversationID string) error {
	parent := c.ctx
	if parent == nil {
		parent = context.Background()
	}
	threadCtx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if prev, ok := c.openThreads[conversationID]; ok {
		prev()
	}
	c.openThreads[conversationID] = cancel
	c.mu.Unlock()

	messages, err := c.sender.History(ctx, conversationID)
	if err != nil {
		c.emitError(err)
	} else {
		c.mu.Lock()
		if len(messages) > 0 {
			c.threadSeen[conversationID] = messages[len(messages)-1].ID
		} else {
			c.threadSeen[conversationID] = ""
		}
		c.mu.Unlock()
		if c.handlers.OnThread != nil {
			c.handlers.OnThread(conversationID, messages)
		}
	}

	return c.subscriber.SubscribeThread(threadCtx, conversationID, func(ev realtime.Event) {
		c.handleThreadEvent(threadCtx, conversationID, ev)
	})
}

// CloseThread cancels the conversation's thread subscription.
func (c *Coordinator) CloseThread(conversationID string) {
	c.mu.Lock()
	cancel, ok := c.openThreads[conversationID]
	if ok {
		delete(c.openThreads, conversationID)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Coordinator) handleListEvent(ev realtime.Event) {
	if c.observeList(ev.ConversationID, ev.LastMessageAt) {
		c.surface(c.ctx, NewMessage{
			ConversationID: ev.ConversationID,
			MessageID:      ev.MessageID,
			SenderID:       ev.SenderID,
			Preview:        ev.Preview,
			LastMessageAt:  ev.LastMessageAt,
		})
	}
	c.refreshUnread(c.ctx)
	c.refreshConversations(c.ctx)
}

func (c *Coordinator) handleThreadEvent(ctx context.Context, conversationID string, ev realtime.Event) {
	if c.observeThread(conversationID, ev.MessageID) && ev.SenderID != c.userID {
		c.surface(ctx, NewMessage{
			ConversationID: conversationID,
			MessageID:      ev.MessageID,
			SenderID:       ev.SenderID,
			Preview:        ev.Preview,
			LastMessageAt:  ev.LastMessageAt,
		})
	}
	c.refreshThread(ctx, conversationID)
}

// observeList is the one new-vs-seen decision shared by the push handler and
// the polling fallback. The first observation of a conversation only primes
// the state; a change reported within the self-echo window of a local send
// updates state but is not surfaced.
func (c *Coordinator) observeList(conversationID string, lastMessageAt time.Time) bool {
	c.mu.Lock()
	prev, primed := c.listSeen[conversationID]
	c.listSeen[conversationID] = lastMessageAt
	c.mu.Unlock()

	if !primed || lastMessageAt.Equal(prev) {
		return false
	}
	return !c.markers.IsSelfEcho(conversationID, lastMessageAt)
}

func (c *Coordinator) observeThread(conversationID, messageID string) bool {
	c.mu.Lock()
	prev, primed := c.threadSeen[conversationID]
	c.threadSeen[conversationID] = messageID
	c.mu.Unlock()
	return primed && messageID != prev
}

func (c *Coordinator) surface(ctx context.Context, msg NewMessage) {
	msg.SenderName = c.displayName(ctx, msg.SenderID, msg.ConversationID)
	if c.handlers.OnNewMessage != nil {
		c.handlers.OnNewMessage(msg)
	}
}

// displayName resolves the sender's profile name, falling back to a
// capitalized role tag from the cached conversation row, then "Someone".
func (c *Coordinator) displayName(ctx context.Context, senderID, conversationID string) string {
	profiles, err := c.resolver.Resolve(ctx, []string{senderID})
	if err != nil {
		c.log.Warn("sender resolve failed", zap.String("sender_id", senderID), zap.Error(err))
	} else if p, ok := profiles[senderID]; ok {
		return p.Name()
	}

	c.mu.Lock()
	conv := c.convCache[conversationID]
	c.mu.Unlock()
	if conv != nil {
		if _, role := conv.OtherParticipant(c.userID); role != "" {
			return identity.CapitalizeRole(role)
		}
	}
	return "Someone"
}

func (c *Coordinator) pollLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.poll(c.ctx)
		case <-c.ctx.Done():
			return
		}
	}
}

// poll is the fallback path for platforms where push delivery is not
// guaranteed. It funnels every conversation row through the same
// observeList decision the push handler uses; a change detected here has no
// event sender, so the other participant is assumed.
func (c *Coordinator) poll(ctx context.Context) {
	rows, err := c.conversations.List(ctx, c.userID)
	if err != nil {
		c.emitError(err)
		return
	}

	for _, row := range rows {
		if row.LastMessageAt == nil {
			continue
		}
		if c.observeList(row.ID, *row.LastMessageAt) {
			senderID, _ := row.OtherParticipant(c.userID)
			c.surface(ctx, NewMessage{
				ConversationID: row.ID,
				SenderID:       senderID,
				Preview:        row.LastMessagePreview,
				LastMessageAt:  *row.LastMessageAt,
			})
		}
	}

	c.storeConversations(rows)
	c.refreshUnread(ctx)
}

// refreshConversations reloads the list. On failure the cached list stays
// stale and the error is reported; there is no retry.
func (c *Coordinator) refreshConversations(ctx context.Context) {
	rows, err := c.conversations.List(ctx, c.userID)
	if err != nil {
		c.emitError(err)
		return
	}
	c.storeConversations(rows)
}

func (c *Coordinator) storeConversations(rows []*store.Conversation) {
	c.mu.Lock()
	for _, row := range rows {
		c.convCache[row.ID] = row
		if _, primed := c.listSeen[row.ID]; !primed && row.LastMessageAt != nil {
			c.listSeen[row.ID] = *row.LastMessageAt
		}
	}
	c.mu.Unlock()

	if c.handlers.OnConversations != nil {
		c.handlers.OnConversations(rows)
	}
}

func (c *Coordinator) refreshUnread(ctx context.Context) {
	counts, err := c.counter.Refresh(ctx)
	if err != nil {
		c.emitError(err)
		return
	}
	if c.handlers.OnUnread != nil {
		c.handlers.OnUnread(counts, c.counter.Total())
	}
}

func (c *Coordinator) refreshThread(ctx context.Context, conversationID string) {
	messages, err := c.sender.History(ctx, conversationID)
	if err != nil {
		c.emitError(err)
		return
	}
	c.mu.Lock()
	if len(messages) > 0 {
		c.threadSeen[conversationID] = messages[len(messages)-1].ID
	}
	c.mu.Unlock()
	if c.handlers.OnThread != nil {
		c.handlers.OnThread(conversationID, messages)
	}
}

func (c *Coordinator) emitError(err error) {
	c.log.Error("sync refresh failed", zap.String("user_id", c.userID), zap.Error(err))
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}
