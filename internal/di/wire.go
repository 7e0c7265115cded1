//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"

	domrepo "SentiCast/internal/domain/repository"
	"SentiCast/internal/domain/service"
	internalrepo "SentiCast/internal/repository"
	"SentiCast/internal/repository/memory"
	"SentiCast/internal/services/features"
	"SentiCast/pkg/cache"
	"SentiCast/pkg/config"
	"SentiCast/pkg/metrics"
	"SentiCast/pkg/postgres"
	"SentiCast/pkg/server"
)

var pipelineSet = wire.NewSet(
	ProvideMetrics,
	wire.Bind(new(domrepo.Metrics), new(*metrics.Recorder)),
	ProvideClickHouseClient,
	ProvideTimeSeriesStore,
	ProvideFeatureLoader,
	ProvideFeatureEngine,
	wire.Bind(new(service.FeatureEngine), new(*features.Engine)),
	ProvideAnomalyDetector,
	ProvideRegistry,
	ProvideDatasetBuilder,
	ProvideModelTrainer,
	ProvidePredictionService,
	ProvideAnomalyScanner,
	ProvidePipeline,
)

var infraSet = wire.NewSet(
	ProvidePostgresPool,
	wire.Bind(new(postgres.Pool), new(*pgxpool.Pool)),
	ProvideSignalStore,
	wire.Bind(new(domrepo.AnomalySink), new(*internalrepo.PGSignalStore)),
	wire.Bind(new(domrepo.PredictionSink), new(*internalrepo.PGSignalStore)),
	ProvideRedisCache,
	wire.Bind(new(cache.Service), new(*cache.RedisCache)),
	ProvideArtifactStore,
	ProvideLocker,
	ProvideEventPublisher,
)

var dryRunSet = wire.NewSet(
	ProvideMemoryStore,
	wire.Bind(new(domrepo.AnomalySink), new(*memory.Store)),
	wire.Bind(new(domrepo.PredictionSink), new(*memory.Store)),
	ProvideMemoryArtifactStore,
	ProvideNoLocker,
	ProvideNopPublisher,
)

// InitializeApp wires the worker: stores, queue consumer and ops server.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		pipelineSet,
		infraSet,
		ProvideQueue,
		ProvideOpsHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeDryRunApp reads from ClickHouse but keeps every write in memory.
func InitializeDryRunApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		pipelineSet,
		dryRunSet,
		ProvideDryRunApp,
	)
	return nil, nil, nil
}
