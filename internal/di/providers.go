package di

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/domain/service"
	"SentiCast/internal/handler/api"
	internalrepo "SentiCast/internal/repository"
	"SentiCast/internal/repository/memory"
	"SentiCast/internal/services/analytics"
	"SentiCast/internal/services/features"
	"SentiCast/internal/services/ml"
	"SentiCast/internal/usecase"
	"SentiCast/pkg/cache"
	pkgch "SentiCast/pkg/clickhouse"
	"SentiCast/pkg/config"
	xhttp "SentiCast/pkg/http"
	pkgkafka "SentiCast/pkg/kafka"
	applogger "SentiCast/pkg/logger"
	"SentiCast/pkg/metrics"
	"SentiCast/pkg/postgres"
	"SentiCast/pkg/queue"
	"SentiCast/pkg/server"
)

const initTimeout = 10 * time.Second

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics registers the pipeline collectors on the default registry served at /metrics.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.Pipeline.Workers*2, cfg.Pipeline.Workers),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	l.Info("clickhouse connected", applogger.String("database", cfg.ClickHouse.Database))
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

func ProvideTimeSeriesStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.TimeSeriesStore {
	return internalrepo.NewCHTimeSeriesStore(ch, internalrepo.CHTables{
		Prices:   cfg.ClickHouse.PricesTable,
		Articles: cfg.ClickHouse.ArticlesTable,
		Assets:   cfg.ClickHouse.AssetsTable,
	}, l)
}

// ProvidePostgresPool opens the pool and applies the idempotent schema.
func ProvidePostgresPool(cfg *config.Config, l *applogger.Logger) (*pgxpool.Pool, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	pool, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if err := postgres.InitSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres schema: %w", err)
	}
	l.Info("postgres connected and schema ready")
	return pool, pool.Close, nil
}

func ProvideSignalStore(db postgres.Pool) *internalrepo.PGSignalStore {
	return internalrepo.NewPGSignalStore(db)
}

func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close", applogger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideArtifactStore keeps artifacts in Postgres behind a Redis read-through cache.
func ProvideArtifactStore(db postgres.Pool, c cache.Service, cfg *config.Config, l *applogger.Logger) domrepo.ArtifactStore {
	return internalrepo.NewCachedArtifactStore(
		internalrepo.NewPGArtifactStore(db), c,
		cfg.Redis.ArtifactPointerTTL, cfg.Redis.ArtifactBlobTTL, l)
}

func ProvideLocker(c cache.Service) domrepo.Locker {
	return internalrepo.NewRedisLocker(c)
}

// ProvideEventPublisher returns a Kafka publisher, or a no-op one when Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, l *applogger.Logger) (domrepo.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopEventPublisher{}, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaEventPublisher(producer, internalrepo.EventTopics{
		Predictions: cfg.Kafka.Topics.Predictions,
		Anomalies:   cfg.Kafka.Topics.Anomalies,
	})
	l.Info("kafka publisher ready", applogger.Strings("brokers", cfg.Kafka.Brokers))
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close", applogger.Error(err))
		}
	}
	return pub, cleanup, nil
}

func ProvideFeatureLoader(store domrepo.TimeSeriesStore, cfg *config.Config, l *applogger.Logger) *features.Loader {
	return features.NewLoader(store, cfg.Pipeline.HistoryDays, l)
}

func ProvideFeatureEngine(loader *features.Loader, cfg *config.Config, l *applogger.Logger) *features.Engine {
	f := cfg.Features
	return features.NewEngine(loader, features.Config{
		PriceWindow:         f.PriceWindow,
		NewsCurrentDays:     f.NewsCurrentDays,
		NewsPreviousDays:    f.NewsPreviousDays,
		PositiveThreshold:   f.PositiveThreshold,
		NegativeThreshold:   f.NegativeThreshold,
		SpikeMinCount:       f.SpikeMinCount,
		SpikeMinChange:      f.SpikeMinChange,
		DivergenceTrend:     f.DivergenceTrend,
		DivergenceSentiment: f.DivergenceSentiment,
	}, l)
}

func ProvideAnomalyDetector(cfg *config.Config) *analytics.AnomalyDetector {
	return analytics.NewAnomalyDetector(cfg.Anomaly.NewsLookbackDays)
}

func ProvideRegistry(store domrepo.ArtifactStore, l *applogger.Logger) *ml.Registry {
	return ml.NewRegistry(store, l)
}

func ProvideDatasetBuilder(loader *features.Loader, engine *features.Engine, m domrepo.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.DatasetBuilder {
	return usecase.NewDatasetBuilder(loader, engine, usecase.DatasetConfig{
		NoiseCutoffPercent: cfg.Dataset.NoiseCutoffPercent,
		Workers:            cfg.Pipeline.Workers,
	}, m, l)
}

func ProvideModelTrainer(registry *ml.Registry, locker domrepo.Locker, m domrepo.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.ModelTrainer {
	c := cfg.Classifier
	return usecase.NewModelTrainer(registry, locker, m, usecase.TrainerConfig{
		MinExamples:   cfg.Training.MinExamples,
		TrainFraction: cfg.Training.TrainFraction,
		ModelVersion:  cfg.Training.ModelVersion,
		LockTTL:       cfg.Training.LockTTL,
		ReportPath:    cfg.Training.ReportPath,
		Params: ml.Params{
			NEstimators:     c.NEstimators,
			LearningRate:    c.LearningRate,
			MaxDepth:        c.MaxDepth,
			MinSamplesSplit: c.MinSamplesSplit,
			MinSamplesLeaf:  c.MinSamplesLeaf,
			Subsample:       c.Subsample,
			MaxFeatures:     c.MaxFeatures,
			Seed:            c.Seed,
		},
	}, l)
}

func ProvidePredictionService(engine service.FeatureEngine, sink domrepo.PredictionSink, pub domrepo.EventPublisher, m domrepo.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.PredictionService {
	return usecase.NewPredictionService(engine, sink, pub, m, usecase.PredictionConfig{
		MoveScalePercent: cfg.Prediction.MoveScalePercent,
		Workers:          cfg.Pipeline.Workers,
	}, l)
}

func ProvideAnomalyScanner(loader *features.Loader, detector *analytics.AnomalyDetector, sink domrepo.AnomalySink, pub domrepo.EventPublisher, m domrepo.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.AnomalyScanner {
	return usecase.NewAnomalyScanner(loader, detector, sink, pub, m, cfg.Pipeline.Workers, l)
}

func ProvidePipeline(
	store domrepo.TimeSeriesStore,
	dataset *usecase.DatasetBuilder,
	trainer *usecase.ModelTrainer,
	registry *ml.Registry,
	predictor *usecase.PredictionService,
	scanner *usecase.AnomalyScanner,
	m domrepo.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(store, dataset, trainer, registry, predictor, scanner, m, usecase.PipelineConfig{
		DatasetExportPath: cfg.Dataset.ExportPath,
		AnomalyThreshold:  cfg.Anomaly.ThresholdPercent,
	}, l)
}

// ProvideQueue returns nil when the job queue is disabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, pipeline *usecase.Pipeline, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJobs(usecase.Jobs(pipeline, l)...)
	return q
}

func ProvideOpsHandler(l *applogger.Logger, registry *ml.Registry, q *queue.RedisQueue, ch *pkgch.Client, db postgres.Pool, rc *cache.RedisCache) *api.OpsHandler {
	checks := []api.HealthCheck{
		{Name: "clickhouse", Check: ch.Health},
		{Name: "postgres", Check: db.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }},
	}
	if q == nil {
		return api.NewOpsHandler(l, registry, nil, checks...)
	}
	return api.NewOpsHandler(l, registry, q, checks...)
}

// ProvideHTTPServer returns nil when the ops server is disabled.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.OpsHandler) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

func ProvideApp(cfg *config.Config, pipeline *usecase.Pipeline, q *queue.RedisQueue, srv *xhttp.Server, l *applogger.Logger) *server.App {
	if q == nil {
		return server.New(pipeline, nil, srv, cfg.Server.ShutdownTimeout, l)
	}
	return server.New(pipeline, q, srv, cfg.Server.ShutdownTimeout, l)
}

// ProvideMemoryStore backs the sinks of a dry run.
func ProvideMemoryStore() *memory.Store {
	return memory.NewStore()
}

func ProvideMemoryArtifactStore() domrepo.ArtifactStore {
	return memory.NewArtifactStore()
}

// ProvideNoLocker disables the training lock; a dry run is a single process.
func ProvideNoLocker() domrepo.Locker {
	return nil
}

func ProvideNopPublisher() domrepo.EventPublisher {
	return internalrepo.NopEventPublisher{}
}

// ProvideDryRunApp runs batch jobs only; records stay in memory.
func ProvideDryRunApp(cfg *config.Config, pipeline *usecase.Pipeline, l *applogger.Logger) *server.App {
	return server.New(pipeline, nil, nil, cfg.Server.ShutdownTimeout, l.With(applogger.Bool("dry_run", true)))
}
