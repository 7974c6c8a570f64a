// Command worker drains the analysis job queue: it claims jobs from
// postgres, fetches feature records through the rate-limited provider chain,
// runs scoring, mismatch detection, and similarity indexing, and persists
// and publishes each completed record. It serves its own health probes and
// metrics on a side port.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/LandQuant-Intelligence/internal/application/analysis"
	"github.com/turtacn/LandQuant-Intelligence/internal/application/worker"
	"github.com/turtacn/LandQuant-Intelligence/internal/config"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/provider"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/providers"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/search/milvus"
	httpserver "github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http"
	"github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http/handlers"
)

// Build metadata injected via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a landquant config file (LANDQUANT_* env vars when empty)")
	probePort := flag.Int("probe-port", 8081, "port for health probes and metrics")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      cfg.Logging.OutputPaths,
		ErrorOutputPaths: cfg.Logging.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, *probePort, logger); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func run(cfg *config.Config, probePort int, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting landquant worker",
		logging.String("version", version),
		logging.Int("concurrency", cfg.Worker.Concurrency),
		logging.Int("grid_resolution_m", cfg.Grid.ResolutionMeters))

	collector := prometheus.NewCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		Subsystem:            cfg.Metrics.Subsystem,
		EnableProcessMetrics: cfg.Metrics.ProcessMetrics,
		EnableGoMetrics:      cfg.Metrics.GoMetrics,
	}, logger)
	metrics := prometheus.NewAppMetrics(collector)

	eng, err := buildEngines(cfg)
	if err != nil {
		return err
	}

	if cfg.Postgres.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.Postgres.DSN(), cfg.Postgres.MigrationPath); err != nil {
			return err
		}
	}
	pool, err := postgres.NewPool(ctx, postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		Database:        cfg.Postgres.Database,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	jobs := repositories.NewJobRepository(pool.Pool(), logger)
	results := repositories.NewResultRepository(pool.Pool(), logger)
	collector.MustRegister(prometheus.NewQueueDepthCollector(jobs, cfg.Metrics.Namespace, logger))

	checkers := []handlers.HealthChecker{
		handlers.HealthCheckerFunc{ComponentName: "postgres", CheckFunc: pool.HealthCheck},
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		checkers = append(checkers, handlers.HealthCheckerFunc{
			ComponentName: "redis",
			CheckFunc:     func(ctx context.Context) error { return cache.Ping(ctx).Err() },
		})
	}

	featureProvider, err := buildProvider(cfg, eng, cache, logger)
	if err != nil {
		return err
	}

	var index similarity.Index
	switch cfg.Index.Backend {
	case "milvus":
		mc, err := milvus.NewClient(milvus.Config{Addr: cfg.Milvus.Addr}, logger)
		if err != nil {
			return err
		}
		defer func() { _ = mc.Close() }()
		index, err = milvus.NewIndex(ctx, mc, milvus.IndexConfig{
			Collection: cfg.Milvus.Collection,
			VectorDim:  cfg.Milvus.VectorDim,
			IndexType:  cfg.Milvus.IndexType,
			NList:      cfg.Milvus.NList,
		}, logger)
		if err != nil {
			return err
		}
		checkers = append(checkers, handlers.HealthCheckerFunc{ComponentName: "milvus", CheckFunc: mc.HealthCheck})
	default:
		index = similarity.NewMemoryIndex()
	}

	sink := analysis.NopSink()
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     cfg.Kafka.ClientID,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			RequiredAcks: cfg.Kafka.RequiredAcks,
		}, logger)
		if err != nil {
			return err
		}
		defer func() { _ = producer.Close() }()
		sink = kafka.NewRecordSink(producer, logger,
			kafka.WithAnalysisTopic(cfg.Kafka.AnalysisTopic))
	}

	pipeline, err := analysis.NewPipeline(analysis.Deps{
		Grid:     eng.grid,
		Profiles: eng.profiles,
		Scorer:   eng.scorer,
		Detector: eng.detector,
		Provider: featureProvider,
		Index:    index,
		Results:  results,
		Sink:     sink,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	workerPool, err := worker.NewPool(worker.Config{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		JobTimeout:   cfg.Worker.JobTimeout,
		MaxRetries:   cfg.Worker.MaxRetries,
		BackoffBase:  cfg.Worker.BackoffBase,
		BackoffMax:   cfg.Worker.BackoffMax,
		StaleAge:     cfg.Worker.StaleAge,
	}, jobs, pipeline, metrics, logger)
	if err != nil {
		return err
	}

	probeCfg := cfg.Server
	probeCfg.Port = probePort
	probeCfg.Mode = "release"
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, metrics, checkers...),
		Mode:          probeCfg.Mode,
		Logger:        logger,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = collector.Handler()
	}
	probes := httpserver.NewServer(probeCfg, httpserver.NewRouter(routerCfg), logger)

	var g errgroup.Group
	g.Go(func() error { return probes.Start() })
	g.Go(func() error {
		defer func() { _ = probes.Stop(context.Background()) }()
		return workerPool.Run(ctx)
	})
	return g.Wait()
}

// buildProvider assembles the feature-provider chain: the fixture corpus at
// the bottom, then the per-source timeout, the shared rate gate, and the
// feature cache when redis is available.
func buildProvider(cfg *config.Config, eng *engines, cache *redis.Client, logger logging.Logger) (provider.FeatureProvider, error) {
	if cfg.Providers.FixturePath == "" {
		return nil, fmt.Errorf("providers.fixture_path is required: the worker has no feature source without it")
	}
	fixture, err := providers.LoadFixture(cfg.Providers.FixturePath)
	if err != nil {
		return nil, err
	}
	p, err := fixture.Provider("fixture", eng.grid)
	if err != nil {
		return nil, err
	}

	chain := provider.FeatureProvider(p)
	source := cfg.Providers.Sources[chain.Name()]
	if source.Timeout > 0 {
		chain = providers.WithTimeout(chain, source.Timeout)
	}
	if source.MinInterval > 0 {
		var gate providers.Gate
		if cache != nil {
			gate = redis.NewIntervalGate(cache, chain.Name(), source.MinInterval, logger)
		} else {
			gate = providers.NewLocalGate(source.MinInterval)
		}
		chain = providers.Throttled(chain, gate)
	}
	if cache != nil {
		featureCache := redis.NewFeatureCache(cache, logger,
			redis.WithCacheTTL(cfg.Redis.FeatureCacheTTL))
		chain = providers.Cached(chain, featureCache)
	}
	return chain, nil
}
