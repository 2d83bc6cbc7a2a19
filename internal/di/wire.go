//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients, each nil when disabled
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// Repositories
		ProvideSettingsStore,
		ProvidePublisher,
		ProvideHistory,

		// Channels and use cases
		ProvideSnapshotCache,
		ProvideProviders,
		ProvideAggregator,
		ProvideSettingsService,
		ProvideReporter,
		ProvideSettingsChangeHandler,
		ProvideKafkaConsumer,

		// Transport
		ProvideHandlers,
		ProvideHTTPServer,

		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}
