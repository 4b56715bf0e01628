package httpapi

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"carematch/internal/config"
	"carematch/internal/identity"
	"carematch/internal/messaging"
	"carematch/internal/notify"
	"carematch/internal/presence"
	"carematch/internal/realtime"
	"carematch/internal/store"
	"carematch/internal/syncer"
	"carematch/internal/typing"
	"carematch/internal/unread"
)

// StreamEvent is one frame on a user's sync stream.
type StreamEvent struct {
	Type string      `json:"-"`
	Data interface{} `json:"data"`
}

// Session bundles the per-user live components: the sync coordinator, the
// presence heartbeat, and the typing debouncer. One session exists per
// connected user; a second stream from the same user replaces the first.
type Session struct {
	UserID      string
	Coordinator *syncer.Coordinator
	Presence    *presence.Tracker
	Typing      *typing.Controller
	Events      chan StreamEvent
}

// SessionFactory builds sessions from the shared backend dependencies.
// Self-echo markers are scoped to the session: only the sender's own
// coordinator suppresses echoes of their sends, never the other
// participant's.
type SessionFactory struct {
	cfg           *config.Config
	conversations store.ConversationRepository
	messages      store.MessageRepository
	resolver      *identity.Resolver
	notifications *notify.Service
	profiles      store.ProfileRepository
	pubsub        *realtime.PubSub
	typingStore   *realtime.TypingStore
	log           *zap.Logger
}

func NewSessionFactory(
	cfg *config.Config,
	conversations store.ConversationRepository,
	messages store.MessageRepository,
	resolver *identity.Resolver,
	notifications *notify.Service,
	profiles store.ProfileRepository,
	pubsub *realtime.PubSub,
	typingStore *realtime.TypingStore,
	log *zap.Logger,
) *SessionFactory {
	return &SessionFactory{
		cfg:           cfg,
		conversations: conversations,
		messages:      messages,
		resolver:      resolver,
		notifications: notifications,
		profiles:      profiles,
		pubsub:        pubsub,
		typingStore:   typingStore,
		log:           log,
	}
}

// New assembles a session for userID. Nothing is started yet; the registry
// starts the components once the stream is accepted.
func (f *SessionFactory) New(userID string) *Session {
	events := make(chan StreamEvent, 64)
	emit := func(eventType string, data interface{}) {
		select {
		case events <- StreamEvent{Type: eventType, Data: data}:
		default:
			f.log.Warn("sync stream backlogged, dropping event",
				zap.String("user_id", userID), zap.String("type", eventType))
		}
	}

	markers := messaging.NewSentMarkers(f.cfg.Sync.SelfEchoWindow)
	pipeline := messaging.NewPipeline(
		f.messages, f.resolver, f.notifications, f.pubsub,
		markers, f.cfg.Messaging.PreviewLength, f.log)

	handlers := syncer.Handlers{
		OnNewMessage: func(m syncer.NewMessage) { emit("message", m) },
		OnConversations: func(rows []*store.Conversation) { emit("conversations", rows) },
		OnThread: func(conversationID string, messages []*store.Message) {
			emit("thread", map[string]interface{}{
				"conversation_id": conversationID,
				"messages":        messages,
			})
		},
		OnUnread: func(counts map[string]int, total int) {
			emit("unread", map[string]interface{}{"counts": counts, "total": total})
		},
		OnError: func(err error) { emit("error", map[string]string{"error": err.Error()}) },
	}

	coordinator := syncer.NewCoordinator(
		userID, f.conversations, pipeline, f.resolver,
		unread.NewCounter(f.messages, userID),
		f.pubsub, markers, handlers, f.cfg.Sync.PollInterval, f.log)

	return &Session{
		UserID:      userID,
		Coordinator: coordinator,
		Presence:    presence.NewTracker(f.profiles, userID, f.cfg.Presence.HeartbeatInterval, f.log),
		Typing:      typing.NewController(f.typingStore, userID, f.cfg.Messaging.TypingDebounce, f.log),
		Events:      events,
	}
}

// SessionRegistry tracks the live session per connected user.
type SessionRegistry struct {
	factory *SessionFactory
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry(factory *SessionFactory, log *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		factory:  factory,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Open builds and starts a session for userID, replacing any existing one.
func (r *SessionRegistry) Open(ctx context.Context, userID string) (*Session, error) {
	session := r.factory.New(userID)
	if err := session.Coordinator.Start(ctx); err != nil {
		return nil, err
	}
	session.Presence.Start(ctx)

	r.mu.Lock()
	previous := r.sessions[userID]
	r.sessions[userID] = session
	r.mu.Unlock()

	if previous != nil {
		r.stop(previous)
	}
	return session, nil
}

// Close stops and removes the session, unless it was already replaced by a
// newer stream for the same user.
func (r *SessionRegistry) Close(session *Session) {
	r.mu.Lock()
	if r.sessions[session.UserID] == session {
		delete(r.sessions, session.UserID)
	}
	r.mu.Unlock()
	r.stop(session)
}

// Get returns the live session for userID, or nil.
func (r *SessionRegistry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

func (r *SessionRegistry) stop(session *Session) {
	session.Coordinator.Stop()
	session.Typing.Stop()
	session.Presence.Stop()
	r.log.Info("sync session closed", zap.String("user_id", session.UserID))
}
