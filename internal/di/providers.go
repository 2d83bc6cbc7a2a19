package di

import (
	"context"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/domain/service"
	"MarketPulse/internal/handler/api"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/cache"
	"MarketPulse/internal/service/channel"
	"MarketPulse/internal/service/ozon"
	"MarketPulse/internal/service/wildberries"
	"MarketPulse/internal/usecase"
	pkgcache "MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	log, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache connects to Redis. It returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Cache.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPool(cfg.Cache.Redis.PoolSize, 2, 30*time.Second),
		pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideSettingsStore picks the Redis store when Redis is on and seeds
// credentials found in the configuration.
func ProvideSettingsStore(cfg *config.Config, rc *pkgcache.RedisCache) (repository.SettingsStore, error) {
	var store repository.SettingsStore
	if rc != nil {
		store = internalrepo.NewRedisSettingsStore(rc.Client(), rc.Prefix()+":settings", cfg.KPI)
	} else {
		store = internalrepo.NewMemorySettingsStore(cfg.KPI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seeds := map[string]models.Credentials{
		models.ChannelOzon: {
			APIKey:   cfg.Channels.Ozon.APIKey,
			ClientID: cfg.Channels.Ozon.ClientID,
		},
		models.ChannelWildberries: {
			APIKey: cfg.Channels.Wildberries.APIKey,
		},
	}
	if err := internalrepo.SeedCredentials(ctx, store, seeds); err != nil {
		return nil, fmt.Errorf("seed credentials: %w", err)
	}
	return store, nil
}

// ProvideSnapshotCache creates the per-channel cache, shared through Redis when available.
func ProvideSnapshotCache(rc *pkgcache.RedisCache, m repository.Metrics, log *applogger.Logger) *cache.SnapshotCache {
	opts := []cache.Option{cache.WithMetrics(m), cache.WithLogger(log)}
	if rc != nil {
		opts = append(opts, cache.WithShared(rc))
	}
	return cache.NewSnapshotCache(opts...)
}

// ProvideProviders builds the enabled channel providers, Ozon first.
func ProvideProviders(cfg *config.Config, m repository.Metrics, log *applogger.Logger) []service.ChannelProvider {
	var providers []service.ChannelProvider

	if oc := cfg.Channels.Ozon; oc.Enabled {
		timeout := cfg.ChannelTimeout(oc.Timeout)
		client := ozon.New(ozon.Config{
			BaseURL:       oc.BaseURL,
			Timeout:       timeout,
			CallDelay:     oc.CallDelay,
			AdSpendWeight: oc.AdSpendWeight,
			StockLimit:    oc.StockLimit,
		}, log)
		providers = append(providers, channel.NewProvider(client,
			channel.WithTimeout(cfg.Channels.FetchTimeout),
			channel.WithLogger(log),
			channel.WithMetrics(m),
		))
	}

	if wc := cfg.Channels.Wildberries; wc.Enabled {
		timeout := cfg.ChannelTimeout(wc.Timeout)
		client := wildberries.New(wildberries.Config{
			StatBaseURL:   wc.StatBaseURL,
			AdvBaseURL:    wc.AdvBaseURL,
			Timeout:       timeout,
			AdSpendWeight: wc.AdSpendWeight,
			StockLimit:    wc.StockLimit,
		}, log)
		providers = append(providers, channel.NewProvider(client,
			channel.WithTimeout(cfg.Channels.FetchTimeout),
			channel.WithLogger(log),
			channel.WithMetrics(m),
		))
	}
	return providers
}

// ProvideAggregator creates the snapshot aggregator.
func ProvideAggregator(
	cfg *config.Config,
	providers []service.ChannelProvider,
	store repository.SettingsStore,
	snapshots *cache.SnapshotCache,
	log *applogger.Logger,
) *usecase.Aggregator {
	return usecase.NewAggregator(providers, store, snapshots, cfg.Cache.TTL, log)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
// The producer also ships aggregated error logs when the collector is enabled.
func ProvideKafkaProducer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	if lc := cfg.Kafka.LogCollector; lc.Enabled {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   lc.Interval,
			CountThreshold: lc.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	return producer, nil
}

// ProvidePublisher publishes to Kafka, or discards events when Kafka is disabled.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, internalrepo.Topics{
		Snapshots: cfg.Kafka.Topics.Snapshots,
		Alerts:    cfg.Kafka.Topics.Alerts,
		Settings:  cfg.Kafka.Topics.Settings,
	})
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideHistory archives report snapshots in ClickHouse. Nil when ClickHouse is disabled.
func ProvideHistory(cfg *config.Config, client *pkgch.Client, log *applogger.Logger) repository.HistoryStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewClickHouseHistory(client.DB(), cfg.ClickHouse.Table, log)
}

// ProvideSettingsService creates the settings use case. Changes invalidate the aggregator's cache.
func ProvideSettingsService(
	store repository.SettingsStore,
	agg *usecase.Aggregator,
	pub repository.EventPublisher,
	log *applogger.Logger,
) *usecase.SettingsService {
	return usecase.NewSettingsService(store, agg, pub, agg.Channels(), log)
}

// ProvideReporter creates the periodic report job.
func ProvideReporter(
	cfg *config.Config,
	agg *usecase.Aggregator,
	store repository.SettingsStore,
	pub repository.EventPublisher,
	history repository.HistoryStore,
	m repository.Metrics,
	rc *pkgcache.RedisCache,
	log *applogger.Logger,
) (*usecase.Reporter, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := []usecase.ReporterOption{
		usecase.WithPublisher(pub),
		usecase.WithHistory(history),
		usecase.WithReportMetrics(m),
		usecase.WithLocation(loc),
	}
	if rc != nil {
		opts = append(opts, usecase.WithReportLock(rc))
	}
	return usecase.NewReporter(agg, store, cfg.Report.Interval, log, opts...), nil
}

// ProvideSettingsChangeHandler consumes credential change events.
func ProvideSettingsChangeHandler(cfg *config.Config, agg *usecase.Aggregator, log *applogger.Logger) *usecase.SettingsChangeHandler {
	return usecase.NewSettingsChangeHandler(cfg.Kafka.Topics.Settings, agg, log)
}

// ProvideKafkaConsumer creates a consumer of settings events, or nil when Kafka is disabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	handler *usecase.SettingsChangeHandler,
	log *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	groupID, startOffset := cfg.Kafka.Consumer.GroupID, pkgkafka.FirstOffset
	if cfg.Kafka.Consumer.Broadcast {
		// a fresh per-replica group only needs changes made from now on
		groupID, startOffset = pkgkafka.InstanceGroupID(groupID), pkgkafka.LastOffset
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(groupID),
		pkgkafka.WithConsumerStartOffset(startOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TracingHook(),
		pkgkafka.LoggingHook(log),
	))
	consumer.RegisterHandler(handler)
	return consumer, nil
}

// ProvideHandlers builds the HTTP handlers with health checks for enabled backends.
func ProvideHandlers(
	cfg *config.Config,
	log *applogger.Logger,
	agg *usecase.Aggregator,
	settings *usecase.SettingsService,
	reporter *usecase.Reporter,
	history repository.HistoryStore,
	rc *pkgcache.RedisCache,
	ch *pkgch.Client,
) ([]xhttp.Handler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := []api.DashboardOption{
		api.WithTimezone(loc),
		api.WithHistory(history),
	}
	if cfg.Server.RefreshInterval > 0 {
		opts = append(opts, api.WithRefreshLimit(cfg.Server.RefreshInterval))
	}
	if rc != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}))
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
	}

	return []xhttp.Handler{
		api.NewDashboardHandler(log, agg, settings, reporter, opts...),
		api.NewStreamHandler(log, agg, cfg.Server.StreamInterval, loc),
	}, nil
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, log *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer(log, handlers, opts...)
}

// ProvideClosers orders resource release: the log collector flushes through
// the producer before the publisher closes it.
func ProvideClosers(
	log *applogger.Logger,
	pub repository.EventPublisher,
	rc *pkgcache.RedisCache,
	ch *pkgch.Client,
) server.Closers {
	closers := server.Closers{
		closerFunc(func() error { log.RemoveCollector(); return nil }),
		pub,
	}
	if rc != nil {
		closers = append(closers, rc)
	}
	if ch != nil {
		closers = append(closers, ch)
	}
	return closers
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	reporter *usecase.Reporter,
	consumer *pkgkafka.Consumer,
	history repository.HistoryStore,
	closers server.Closers,
) *server.App {
	return server.New(cfg, log, httpServer, reporter, consumer, history, closers)
}
