//go:build wireinject
// +build wireinject

package di

import (
	"github.com/jam2205/TradingView-Screener/pkg/config"
	"github.com/jam2205/TradingView-Screener/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideQueryExecutor,
		ProvideSnapshotStore,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,
		ProvideCacheService,
		ProvideJobQueue,

		// Publishing fanout
		ProvideLiveFeedHub,
		ProvideSnapshotPublisher,

		// Use cases
		ProvideCollector,
		ProvideScanner,
		ProvideSnapshotArchiver,

		// HTTP and application server
		ProvideScannerHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
