// Package config provides configuration loading, defaults, and validation for
// the LandQuant-Intelligence platform.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultPostgresHost     = "localhost"
	DefaultPostgresPort     = 5432
	DefaultPostgresUser     = "landquant"
	DefaultPostgresDatabase = "landquant"
	DefaultPostgresMaxConns = 16

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker   = "localhost:9092"
	DefaultAnalysisTopic = "landquant.analysis.records"
	DefaultKafkaClientID = "landquant"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultReportBucket  = "landquant-reports"

	DefaultMilvusAddr       = "localhost:19530"
	DefaultMilvusCollection = "land_quanta"
	DefaultVectorDim        = 256

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultResolutionMeters = 100

	DefaultScoreBase     = 5.0
	DefaultScoreGain     = 2.5
	DefaultScoreLossGain = 0.8
	DefaultScoreMin      = 0.0
	DefaultScoreMax      = 10.0

	DefaultSlopeBuildableMaxPercent = 15.0
	DefaultSlopeSeveritySpan        = 20.0
	DefaultFlatMaxPercent           = 15.0
	DefaultUtilityNearFt            = 500.0
	DefaultUtilityTolerance         = 2.5
	DefaultUtilityToleranceMode     = "absolute"
	DefaultFloodLowElevationFt      = 30.0
	DefaultFloodSafeElevationFt     = 100.0
	DefaultFloodScoreMin            = 4.0

	DefaultWorkerConcurrency = 4

	DefaultMetricsNamespace = "landquant"
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.  Fields
// already set by the caller are left unchanged so that explicit configuration
// always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 4 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	// ── Logging ───────────────────────────────────────────────────────────────
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Logging.ErrorOutputPaths) == 0 {
		cfg.Logging.ErrorOutputPaths = []string{"stderr"}
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Postgres.User == "" {
		cfg.Postgres.User = DefaultPostgresUser
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = DefaultPostgresDatabase
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if cfg.Postgres.ConnMaxLifetime == 0 {
		cfg.Postgres.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Postgres.ConnMaxIdleTime == 0 {
		cfg.Postgres.ConnMaxIdleTime = 5 * time.Minute
	}
	if cfg.Postgres.MigrationPath == "" {
		cfg.Postgres.MigrationPath = "migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.FeatureCacheTTL == 0 {
		cfg.Redis.FeatureCacheTTL = 15 * time.Minute
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "landquant"
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.AnalysisTopic == "" {
		cfg.Kafka.AnalysisTopic = DefaultAnalysisTopic
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = DefaultKafkaClientID
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = 100
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}
	// RequiredAcks 0 means "none" in kafka terms but is indistinguishable from
	// unset; we treat 0 as unset and default to -1 (all replicas).
	if cfg.Kafka.RequiredAcks == 0 {
		cfg.Kafka.RequiredAcks = -1
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultReportBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 15 * time.Minute
	}

	// ── Milvus ────────────────────────────────────────────────────────────────
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = DefaultMilvusCollection
	}
	if cfg.Milvus.VectorDim == 0 {
		cfg.Milvus.VectorDim = DefaultVectorDim
	}
	if cfg.Milvus.IndexType == "" {
		cfg.Milvus.IndexType = "IVF_FLAT"
	}
	if cfg.Milvus.NList == 0 {
		cfg.Milvus.NList = 128
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = 10
	}

	// ── Grid ──────────────────────────────────────────────────────────────────
	if cfg.Grid.ResolutionMeters == 0 {
		cfg.Grid.ResolutionMeters = DefaultResolutionMeters
	}

	// ── Scoring ───────────────────────────────────────────────────────────────
	if cfg.Scoring.Base == 0 {
		cfg.Scoring.Base = DefaultScoreBase
	}
	if cfg.Scoring.Gain == 0 {
		cfg.Scoring.Gain = DefaultScoreGain
	}
	if cfg.Scoring.LossGain == 0 {
		cfg.Scoring.LossGain = DefaultScoreLossGain
	}
	// MinScore 0 is the platform default already.
	if cfg.Scoring.MaxScore == 0 {
		cfg.Scoring.MaxScore = DefaultScoreMax
	}

	// ── Mismatch ──────────────────────────────────────────────────────────────
	if cfg.Mismatch.SlopeBuildableMaxPercent == 0 {
		cfg.Mismatch.SlopeBuildableMaxPercent = DefaultSlopeBuildableMaxPercent
	}
	if cfg.Mismatch.SlopeSeveritySpan == 0 {
		cfg.Mismatch.SlopeSeveritySpan = DefaultSlopeSeveritySpan
	}
	if cfg.Mismatch.FlatMaxPercent == 0 {
		cfg.Mismatch.FlatMaxPercent = DefaultFlatMaxPercent
	}
	if cfg.Mismatch.UtilityNearFt == 0 {
		cfg.Mismatch.UtilityNearFt = DefaultUtilityNearFt
	}
	if cfg.Mismatch.UtilityTolerance == 0 {
		cfg.Mismatch.UtilityTolerance = DefaultUtilityTolerance
	}
	if cfg.Mismatch.UtilityToleranceMode == "" {
		cfg.Mismatch.UtilityToleranceMode = DefaultUtilityToleranceMode
	}
	if cfg.Mismatch.FloodLowElevationFt == 0 {
		cfg.Mismatch.FloodLowElevationFt = DefaultFloodLowElevationFt
	}
	if cfg.Mismatch.FloodSafeElevationFt == 0 {
		cfg.Mismatch.FloodSafeElevationFt = DefaultFloodSafeElevationFt
	}
	if cfg.Mismatch.FloodScoreMin == 0 {
		cfg.Mismatch.FloodScoreMin = DefaultFloodScoreMin
	}
	// MinSeverity 0 reports every detected mismatch, which is the default.

	// ── Providers ─────────────────────────────────────────────────────────────
	if cfg.Providers.CacheTTL == 0 {
		cfg.Providers.CacheTTL = 15 * time.Minute
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 500 * time.Millisecond
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.BackoffBase == 0 {
		cfg.Worker.BackoffBase = time.Second
	}
	if cfg.Worker.BackoffMax == 0 {
		cfg.Worker.BackoffMax = 30 * time.Second
	}
	if cfg.Worker.StaleAge == 0 {
		cfg.Worker.StaleAge = 5 * time.Minute
	}
	if cfg.Worker.JobTimeout == 0 {
		cfg.Worker.JobTimeout = 30 * time.Second
	}

	// ── Index ─────────────────────────────────────────────────────────────────
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "memory"
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "cosine"
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
