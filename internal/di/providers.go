package di

import (
	"context"
	"fmt"
	"time"

	"TradeGate/internal/domain/repository"
	"TradeGate/internal/handler/api"
	mid "TradeGate/internal/middleware"
	internalrepo "TradeGate/internal/repository"
	"TradeGate/internal/service/ratelimit"
	"TradeGate/internal/service/ticks"
	"TradeGate/internal/services/bandit"
	"TradeGate/internal/services/scalp"
	"TradeGate/internal/usecase"
	"TradeGate/pkg/cache"
	pkgch "TradeGate/pkg/clickhouse"
	"TradeGate/pkg/config"
	xhttp "TradeGate/pkg/http"
	pkgkafka "TradeGate/pkg/kafka"
	applogger "TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
	"TradeGate/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer when any component publishes.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled && cfg.Audit.Backend != "kafka" {
		return nil, func() {}, nil
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
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With a producer available,
// repeated warnings and errors are aggregated and published as digests.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.AuditTopic,
			Source:         "tradegate",
			Publisher:      producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return repository.NoopMetrics{}
	}
	return metrics.New()
}

// ProvideClickHouseClient connects only when audit or snapshots live in ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Audit.Backend != "clickhouse" && cfg.Snapshots.Backend != "clickhouse" {
		return nil, func() {}, nil
	}
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
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideAuditSink selects the audit backend.
func ProvideAuditSink(cfg *config.Config, logger *applogger.Logger, producer *pkgkafka.Producer, ch *pkgch.Client) (repository.AuditSink, error) {
	switch cfg.Audit.Backend {
	case "kafka":
		if producer == nil {
			return nil, fmt.Errorf("audit sink: kafka producer not configured")
		}
		return internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.AuditTopic), nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("audit sink: clickhouse client not configured")
		}
		return internalrepo.NewClickHouseAuditStore(ch.DB(), internalrepo.AuditTable(cfg.ClickHouse.Database)), nil
	default:
		return internalrepo.NewLogAuditSink(logger), nil
	}
}

// ProvideAuditPipeline buffers audit records in front of the sink.
func ProvideAuditPipeline(cfg *config.Config, sink repository.AuditSink, m repository.Metrics, logger *applogger.Logger) *mid.AuditPipeline {
	proc := usecase.NewAuditProcessor(sink, m, cfg.Audit.Backend)
	return mid.NewAuditPipeline(proc, m,
		mid.WithBufferSize(cfg.Audit.BufferSize),
		mid.WithBatchSize(cfg.Audit.BatchSize),
		mid.WithFlushInterval(cfg.Audit.FlushInterval),
		mid.WithLogger(logger),
	)
}

// ProvideSnapshotStore selects where policy snapshots are kept.
func ProvideSnapshotStore(cfg *config.Config, ch *pkgch.Client, logger *applogger.Logger) (repository.SnapshotStore, func(), error) {
	switch cfg.Snapshots.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Snapshots.Redis.Host),
			cache.WithRedisPort(cfg.Snapshots.Redis.Port),
			cache.WithRedisPassword(cfg.Snapshots.Redis.Password),
			cache.WithRedisDB(cfg.Snapshots.Redis.DB),
			cache.WithRedisPrefix(cfg.Snapshots.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot store: %w", err)
		}
		lc := cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Snapshots.MemoryMaxSize))
		return internalrepo.NewCacheSnapshotStore(lc), func() { _ = lc.Close() }, nil
	case "clickhouse":
		if ch == nil {
			return nil, nil, fmt.Errorf("snapshot store: clickhouse client not configured")
		}
		s := internalrepo.NewCHSnapshotStore(ch, internalrepo.SnapshotTable(cfg.ClickHouse.Database))
		s.SetLogger(logger)
		return s, func() {}, nil
	default:
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Snapshots.MemoryMaxSize))
		return internalrepo.NewCacheSnapshotStore(mc), func() { _ = mc.Close() }, nil
	}
}

// ProvidePolicy creates the bandit policy.
func ProvidePolicy(cfg *config.Config, m repository.Metrics, logger *applogger.Logger) *bandit.Policy {
	return bandit.NewPolicy(cfg.Learning,
		bandit.WithLogger(logger.Component("policy")),
		bandit.WithMetrics(m),
	)
}

// ProvideScalpManager creates the exit state machine; every lifecycle event is audited.
func ProvideScalpManager(cfg *config.Config, m repository.Metrics, pipeline *mid.AuditPipeline, logger *applogger.Logger) *scalp.Manager {
	return scalp.NewManager(cfg.Scalp,
		scalp.WithLogger(logger.Component("scalp")),
		scalp.WithMetrics(m),
		scalp.WithEventHandler(usecase.ScalpAuditHandler(pipeline)),
	)
}

// ProvideOrchestrator creates the gate orchestrator.
func ProvideOrchestrator(
	cfg *config.Config,
	policy *bandit.Policy,
	scalps *scalp.Manager,
	pipeline *mid.AuditPipeline,
	m repository.Metrics,
	logger *applogger.Logger,
) (*usecase.Orchestrator, error) {
	return usecase.NewOrchestrator(cfg, policy, scalps, pipeline, m,
		usecase.WithOrchestratorLogger(logger),
		usecase.WithDenialLimiter(ratelimit.New()),
	)
}

// ProvideLearner creates the online update pipeline.
func ProvideLearner(
	cfg *config.Config,
	policy *bandit.Policy,
	store repository.SnapshotStore,
	pipeline *mid.AuditPipeline,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.Learner {
	return usecase.NewLearner(cfg.Learning, policy, store, pipeline, m, usecase.WithLearnerLogger(logger))
}

// ProvideDispatcher creates the per-symbol worker dispatcher.
func ProvideDispatcher(cfg *config.Config, logger *applogger.Logger) *usecase.Dispatcher {
	return usecase.NewDispatcher(cfg.Workers.QueueSize, logger)
}

// ProvideTickHandler creates the tick handler shared by Kafka, the stream and HTTP.
func ProvideTickHandler(cfg *config.Config, d *usecase.Dispatcher, scalps *scalp.Manager, m repository.Metrics, logger *applogger.Logger) *usecase.TickHandler {
	return usecase.NewTickHandler(cfg.Kafka.TicksTopic, d, scalps, m, logger)
}

// ProvideTradeCloseHandler creates the trade close handler.
func ProvideTradeCloseHandler(
	cfg *config.Config,
	orch *usecase.Orchestrator,
	learner *usecase.Learner,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.TradeCloseHandler {
	return usecase.NewTradeCloseHandler(cfg.Kafka.TradeCloseTopic, cfg.Learning.RewardPnLScale, orch, learner, m, logger)
}

// ProvideTickCollector creates the WebSocket tick collector, or nil when the stream is disabled.
func ProvideTickCollector(cfg *config.Config, h *usecase.TickHandler, m repository.Metrics, logger *applogger.Logger) *usecase.TickCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	stream := ticks.New(
		cfg.Stream.APIKey,
		cfg.Stream.WebSocketURL,
		cfg.Stream.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		logger,
	)
	return usecase.NewTickCollector(stream, h, m, logger)
}

// ProvideKafkaConsumer creates a consumer for ticks and trade closes, or nil when Kafka is disabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	th *usecase.TickHandler,
	ch *usecase.TradeCloseHandler,
	logger *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TracingHook())
	consumer.RegisterHandler(th)
	consumer.RegisterHandler(ch)
	return consumer, nil
}

// ProvideHTTPHandler creates the decision API handler.
func ProvideHTTPHandler(
	logger *applogger.Logger,
	orch *usecase.Orchestrator,
	learner *usecase.Learner,
	closes *usecase.TradeCloseHandler,
	th *usecase.TickHandler,
	d *usecase.Dispatcher,
	scalps *scalp.Manager,
) xhttp.Handler {
	return api.NewDecisionsEchoHandler(logger, orch, learner, closes, th, d, scalps)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	pipeline *mid.AuditPipeline,
	d *usecase.Dispatcher,
	h xhttp.Handler,
) *server.App {
	return server.New(cfg, logger, collector, consumer, pipeline, d, h)
}
