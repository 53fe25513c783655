package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jam2205/TradingView-Screener/internal/domain/repository"
	"github.com/jam2205/TradingView-Screener/internal/handler/api"
	mid "github.com/jam2205/TradingView-Screener/internal/middleware"
	internalrepo "github.com/jam2205/TradingView-Screener/internal/repository"
	"github.com/jam2205/TradingView-Screener/internal/service/tradingview"
	"github.com/jam2205/TradingView-Screener/internal/usecase"
	"github.com/jam2205/TradingView-Screener/pkg/cache"
	pkgch "github.com/jam2205/TradingView-Screener/pkg/clickhouse"
	"github.com/jam2205/TradingView-Screener/pkg/config"
	pkgkafka "github.com/jam2205/TradingView-Screener/pkg/kafka"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
	"github.com/jam2205/TradingView-Screener/pkg/metrics"
	pkgqueue "github.com/jam2205/TradingView-Screener/pkg/queue"
	"github.com/jam2205/TradingView-Screener/pkg/server"
)

// ProvideLogger creates the application logger. Production environments log
// JSON; everything else gets console output.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	level := "debug"
	if cfg.Environment == "production" {
		format = "json"
		level = "info"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideQueryExecutor creates the TradingView scanner client.
func ProvideQueryExecutor(cfg *config.Config, logger *applogger.Logger) repository.QueryExecutor {
	opts := []tradingview.Option{}
	if cfg.TradingView.BaseURL != "" {
		opts = append(opts, tradingview.WithBaseURL(cfg.TradingView.BaseURL))
	}
	if cfg.TradingView.Cookie != "" {
		opts = append(opts, tradingview.WithCookie(cfg.TradingView.Cookie))
	}
	if cfg.TradingView.Timeout > 0 {
		opts = append(opts, tradingview.WithTimeout(cfg.TradingView.Timeout))
	}
	return tradingview.New(logger, opts...)
}

// ProvideSnapshotStore creates the configured persistence backend. The
// clickhouse backend owns its client; Close releases it.
func ProvideSnapshotStore(cfg *config.Config, logger *applogger.Logger) (repository.SnapshotStore, error) {
	switch cfg.Storage.Backend {
	case "file":
		return internalrepo.NewFileStore(cfg.Storage.Dir, logger)
	case "sqlite":
		return internalrepo.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := internalrepo.NewClickHouseStore(ctx, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// ProvideKafkaProducer creates a Kafka producer, or nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLiveFeedHub creates the WebSocket broadcast hub.
func ProvideLiveFeedHub(logger *applogger.Logger) *api.LiveFeedHub {
	return api.NewLiveFeedHub(logger)
}

// ProvideSnapshotPublisher fans snapshots out to Kafka (when enabled) and the
// live WebSocket feed, behind the validating/buffering pipeline.
func ProvideSnapshotPublisher(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	hub *api.LiveFeedHub,
	m repository.Metrics,
) *mid.PublishPipeline {
	targets := []repository.SnapshotPublisher{hub}
	if producer != nil {
		targets = append(targets, internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic))
	}
	return mid.NewPublishPipeline(
		internalrepo.NewFanoutPublisher(targets...),
		m,
		mid.WithMinGap(500*time.Millisecond),
		mid.WithBufferSize(512),
	)
}

// ProvideCollector creates the collection loop use case.
func ProvideCollector(
	exec repository.QueryExecutor,
	store repository.SnapshotStore,
	pipeline *mid.PublishPipeline,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.Collector {
	return usecase.NewCollector(exec, store, pipeline, m, logger, usecase.CollectorConfig{
		AddMetadata:  cfg.Collector.AddMetadata,
		ValidateData: cfg.Collector.ValidateData,
	})
}

// ProvideScanner creates the multi-asset scanner.
func ProvideScanner(exec repository.QueryExecutor, logger *applogger.Logger) *usecase.MultiAssetScanner {
	return usecase.NewMultiAssetScanner(exec, logger)
}

// ProvideRedisClient creates a shared Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCacheService picks the cache implementation for scan responses.
// Without Redis it falls back to the in-process cache.
func ProvideCacheService(cfg *config.Config, logger *applogger.Logger, client *redis.Client) cache.Service {
	if client == nil || cfg.Cache.Mode == "memory" {
		return cache.NewMemoryCache()
	}
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("screener"),
	)
	if err != nil {
		logger.Warn("redis cache unavailable, using memory cache", applogger.Error(err))
		return cache.NewMemoryCache()
	}
	if cfg.Cache.Mode == "layered" {
		return cache.NewLayeredCache(redisCache)
	}
	return redisCache
}

// ProvideJobQueue creates the Redis-backed job queue with the collect job
// registered, or nil when the queue is disabled.
func ProvideJobQueue(
	cfg *config.Config,
	logger *applogger.Logger,
	client *redis.Client,
	collector *usecase.Collector,
) *pkgqueue.RedisQueue {
	if !cfg.Queue.Enabled || client == nil {
		return nil
	}
	q := pkgqueue.NewRedisQueue(logger, &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, pkgqueue.ModeProducerConsumer, pkgqueue.WithKeyPrefix(queueKeyPrefix(cfg)))
	q.RegisterJob(usecase.NewCollectJob(collector, logger))
	return q
}

func queueKeyPrefix(cfg *config.Config) string {
	if cfg.Queue.KeyPrefix != "" {
		return cfg.Queue.KeyPrefix
	}
	return "screener:queue"
}

// ProvideKafkaConsumer creates the archive consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Archive.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Archive.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Archive.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Archive.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Archive.RetryMax, cfg.Kafka.Archive.BackoffMin, cfg.Kafka.Archive.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Archive.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Archive.MinBytes, cfg.Kafka.Archive.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSnapshotArchiver registers the handler for the snapshot topic.
func ProvideSnapshotArchiver(cfg *config.Config, store repository.SnapshotStore, logger *applogger.Logger) *usecase.SnapshotArchiver {
	return usecase.NewSnapshotArchiver(cfg.Kafka.Topic, store, logger)
}

// ProvideScannerHandler creates the HTTP API handler.
func ProvideScannerHandler(
	logger *applogger.Logger,
	collector *usecase.Collector,
	scanner *usecase.MultiAssetScanner,
	exec repository.QueryExecutor,
	cacheSvc cache.Service,
	jobs *pkgqueue.RedisQueue,
) *api.ScannerEchoHandler {
	var queueSvc pkgqueue.QueueService
	if jobs != nil {
		queueSvc = jobs
	}
	return api.NewScannerEchoHandler(logger, collector, scanner, exec, cacheSvc, queueSvc)
}

// errorLogSink ships aggregated error logs to a Kafka topic.
type errorLogSink struct {
	producer *pkgkafka.Producer
}

func (s errorLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server. When Kafka is available,
// repeated error logs are deduplicated and shipped for alerting.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.Collector,
	pipeline *mid.PublishPipeline,
	store repository.SnapshotStore,
	handler *api.ScannerEchoHandler,
	hub *api.LiveFeedHub,
	consumer *pkgkafka.Consumer,
	archiver *usecase.SnapshotArchiver,
	jobs *pkgqueue.RedisQueue,
	producer *pkgkafka.Producer,
) *server.App {
	if producer != nil {
		logger.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "screener.error-logs",
			Publisher:      errorLogSink{producer: producer},
		})
	}
	return server.New(cfg, logger, collector, pipeline, store, handler, hub, consumer, archiver, jobs)
}
