// Command apiserver runs the LandQuant REST API: scan submission and
// progress, on-demand scoring and mismatch detection, stored analysis
// lookups, and similarity queries. The background analysis itself runs in
// the worker process; this binary only enqueues and reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/LandQuant-Intelligence/internal/application/scan"
	"github.com/turtacn/LandQuant-Intelligence/internal/config"
	"github.com/turtacn/LandQuant-Intelligence/internal/domain/similarity"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/search/milvus"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/storage/minio"
	httpserver "github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http"
	"github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http/middleware"
)

// Build metadata injected via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a landquant config file (LANDQUANT_* env vars when empty)")
	port := flag.Int("port", 0, "HTTP listen port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      cfg.Logging.OutputPaths,
		ErrorOutputPaths: cfg.Logging.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("apiserver exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting landquant apiserver",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port),
		logging.Int("grid_resolution_m", cfg.Grid.ResolutionMeters))

	collector := prometheus.NewCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		Subsystem:            cfg.Metrics.Subsystem,
		EnableProcessMetrics: cfg.Metrics.ProcessMetrics,
		EnableGoMetrics:      cfg.Metrics.GoMetrics,
	}, logger)
	metrics := prometheus.NewAppMetrics(collector)

	// Domain engines, from the same config sections the worker and CLI use.
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
	scans := repositories.NewScanRepository(pool.Pool(), logger)
	results := repositories.NewResultRepository(pool.Pool(), logger)
	collector.MustRegister(prometheus.NewQueueDepthCollector(jobs, cfg.Metrics.Namespace, logger))

	checkers := []handlers.HealthChecker{
		handlers.HealthCheckerFunc{ComponentName: "postgres", CheckFunc: pool.HealthCheck},
	}

	// Similarity index: milvus for multi-process deployments, an in-process
	// index for single-binary runs (the worker fills it only in the latter).
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

	var announcer scan.Announcer
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
		announcer = kafka.NewRecordSink(producer, logger,
			kafka.WithAnalysisTopic(cfg.Kafka.AnalysisTopic),
			kafka.WithSource("landquant-apiserver"))
	}

	var archiver scan.Archiver
	if cfg.MinIO.Enabled {
		store, err := minio.NewClient(minio.Config{
			Endpoint:      cfg.MinIO.Endpoint,
			AccessKey:     cfg.MinIO.AccessKey,
			SecretKey:     cfg.MinIO.SecretKey,
			Bucket:        cfg.MinIO.Bucket,
			UseSSL:        cfg.MinIO.UseSSL,
			PresignExpiry: cfg.MinIO.PresignExpiry,
		}, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		archiver = minio.NewReportArchive(store, logger)
		checkers = append(checkers, handlers.HealthCheckerFunc{ComponentName: "minio", CheckFunc: store.HealthCheck})
	}

	scanSvc, err := scan.NewService(scan.Deps{
		Grid:      eng.grid,
		Profiles:  eng.profiles,
		Queue:     jobs,
		Scans:     scans,
		Archive:   archiver,
		Announcer: announcer,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	routerCfg := httpserver.RouterConfig{
		ScanHandler:       handlers.NewScanHandler(scanSvc),
		AnalysisHandler:   handlers.NewAnalysisHandler(eng.profiles, eng.scorer, eng.detector),
		QuantumHandler:    handlers.NewQuantumHandler(eng.grid, results),
		SimilarityHandler: handlers.NewSimilarityHandler(index, cfg.Index.Backend, metrics),
		ProfileHandler:    handlers.NewProfileHandler(eng.profiles, eng.scorer),
		HealthHandler:     handlers.NewHealthHandler(version, metrics, checkers...),
		CORS:              corsConfig(cfg),
		MaxBodySize:       cfg.Server.MaxBodySize,
		Mode:              cfg.Server.Mode,
		Logger:            logger,
		Metrics:           metrics,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = collector.Handler()
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.CORSOrigins
	return cors
}
