package wire

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carematch/internal/config"
	"carematch/internal/httpapi"
	"carematch/internal/identity"
	"carematch/internal/logger"
	"carematch/internal/messaging"
	"carematch/internal/notify"
	"carematch/internal/realtime"
	"carematch/internal/store"
)

// Application holds everything main needs to run and shut down the service.
type Application struct {
	Config *config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	Router *mux.Router
}

func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format)
}

func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	return realtime.NewRedisClient(context.Background(),
		cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
}

func ProvidePubSub(client *redis.Client, log *zap.Logger) *realtime.PubSub {
	return realtime.NewPubSub(client, log)
}

func ProvideTypingStore(client *redis.Client) *realtime.TypingStore {
	return realtime.NewTypingStore(client)
}

func ProvideResolver(profiles store.ProfileRepository, log *zap.Logger) *identity.Resolver {
	return identity.NewResolver(profiles, log)
}

func ProvideNotifyService(notifications store.NotificationRepository, log *zap.Logger) *notify.Service {
	return notify.NewService(notifications, log)
}

// ProvidePipeline builds the shared pipeline used for sends from clients
// without a live sync stream. Its echo markers matter only to streaming
// sessions, which carry their own pipeline.
func ProvidePipeline(
	cfg *config.Config,
	messages store.MessageRepository,
	resolver *identity.Resolver,
	notifications *notify.Service,
	pubsub *realtime.PubSub,
	log *zap.Logger,
) *messaging.Pipeline {
	return messaging.NewPipeline(
		messages, resolver, notifications, pubsub,
		messaging.NewSentMarkers(cfg.Sync.SelfEchoWindow),
		cfg.Messaging.PreviewLength, log)
}

func ProvideSessionFactory(
	cfg *config.Config,
	conversations store.ConversationRepository,
	messages store.MessageRepository,
	resolver *identity.Resolver,
	notifications *notify.Service,
	profiles store.ProfileRepository,
	pubsub *realtime.PubSub,
	typingStore *realtime.TypingStore,
	log *zap.Logger,
) *httpapi.SessionFactory {
	return httpapi.NewSessionFactory(cfg, conversations, messages, resolver,
		notifications, profiles, pubsub, typingStore, log)
}

func ProvideHandler(
	cfg *config.Config,
	conversations store.ConversationRepository,
	messages store.MessageRepository,
	profiles store.ProfileRepository,
	pipeline *messaging.Pipeline,
	resolver *identity.Resolver,
	notifications *notify.Service,
	typingStore *realtime.TypingStore,
	sessions *httpapi.SessionRegistry,
	log *zap.Logger,
) *httpapi.Handler {
	return httpapi.NewHandler(cfg, conversations, messages, profiles,
		pipeline, resolver, notifications, typingStore, sessions, log)
}

func ProvideRouter(h *httpapi.Handler, cfg *config.Config) *mux.Router {
	return httpapi.NewRouter(h, cfg.Auth.JWTSecret)
}
