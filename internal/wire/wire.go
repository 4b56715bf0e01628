//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"carematch/internal/config"
	"carematch/internal/httpapi"
	"carematch/internal/store"
)

// InitializeApplication assembles the service: config, logger, MySQL
// repositories, the Redis push channel, the messaging pipeline, the
// per-user session machinery, and the HTTP router.
func InitializeApplication() (*Application, error) {
	wire.Build(
		config.Load,
		ProvideLogger,
		store.NewMySQL,
		store.NewConversationRepository,
		store.NewMessageRepository,
		store.NewNotificationRepository,
		store.NewProfileRepository,
		ProvideRedisClient,
		ProvidePubSub,
		ProvideTypingStore,
		ProvideResolver,
		ProvideNotifyService,
		ProvidePipeline,
		ProvideSessionFactory,
		httpapi.NewSessionRegistry,
		ProvideHandler,
		ProvideRouter,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil
}
