// Package config defines all configuration structures for the
// LandQuant-Intelligence platform.  No I/O or parsing logic lives here — only
// plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Validate checks server parameters.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", c.Port)
	}
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q is invalid; expected debug|release|test", c.Mode)
	}
	return nil
}

// LoggingConfig holds structured-logging parameters.  It mirrors
// logging.LogConfig; cmd binaries convert between the two at startup.
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate checks logging parameters.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is invalid; expected debug|info|warn|error", c.Level)
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q is invalid; expected json|console", c.Format)
	}
	return nil
}

// PostgresConfig holds PostgreSQL connection parameters for the job queue and
// analysis-record repository.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// Validate checks PostgreSQL parameters.
func (c *PostgresConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("postgres.port %d is out of range [1, 65535]", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("postgres.user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("postgres.database is required")
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("postgres.max_conns must be >= 1, got %d", c.MaxConns)
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("postgres.min_conns %d must be in [0, max_conns]", c.MinConns)
	}
	return nil
}

// DSN renders the pgx-compatible connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection parameters.  Redis backs the shared
// feature cache and the distributed provider rate gate; both degrade to
// in-process equivalents when Enabled is false.
type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	FeatureCacheTTL time.Duration `mapstructure:"feature_cache_ttl"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
}

// Validate checks Redis parameters.  Disabled sections are not validated so
// that single-binary local runs need no Redis settings at all.
func (c *RedisConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled is true")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.DB)
	}
	return nil
}

// KafkaConfig holds Kafka producer parameters for the analysis-record sink.
type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	AnalysisTopic string        `mapstructure:"analysis_topic"`
	ClientID      string        `mapstructure:"client_id"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	RequiredAcks  int           `mapstructure:"required_acks"` // -1 all, 0 none, 1 leader
}

// Validate checks Kafka parameters.
func (c *KafkaConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must contain at least one broker address")
	}
	if c.AnalysisTopic == "" {
		return fmt.Errorf("kafka.analysis_topic is required when kafka.enabled is true")
	}
	return nil
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters for scan
// report archival.
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// Validate checks MinIO parameters.
func (c *MinIOConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("minio.endpoint is required when minio.enabled is true")
	}
	if c.Bucket == "" {
		return fmt.Errorf("minio.bucket is required when minio.enabled is true")
	}
	return nil
}

// MilvusConfig holds Milvus vector-store parameters for the similarity index
// backend.
type MilvusConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Addr        string `mapstructure:"addr"`
	Collection  string `mapstructure:"collection"`
	VectorDim   int    `mapstructure:"vector_dim"`
	IndexType   string `mapstructure:"index_type"`
	NList       int    `mapstructure:"nlist"`
	DefaultTopK int    `mapstructure:"default_top_k"`
}

// Validate checks Milvus parameters.
func (c *MilvusConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("milvus.addr is required when milvus.enabled is true")
	}
	if c.VectorDim < 1 {
		return fmt.Errorf("milvus.vector_dim must be >= 1, got %d", c.VectorDim)
	}
	return nil
}

// GridConfig holds land-quantum lattice parameters.  ResolutionMeters is fixed
// for the lifetime of a process; mixing resolutions within one run is invalid.
type GridConfig struct {
	ResolutionMeters int `mapstructure:"resolution_meters"`
}

// Validate checks grid parameters.
func (c *GridConfig) Validate() error {
	if c.ResolutionMeters < 1 {
		return fmt.Errorf("grid.resolution_meters must be >= 1, got %d", c.ResolutionMeters)
	}
	return nil
}

// SynergyConfig declares a feature combination and the bonus (or penalty, when
// negative) applied when every named feature is present.
type SynergyConfig struct {
	Features []string `mapstructure:"features"`
	Bonus    float64  `mapstructure:"bonus"`
}

// ProfileConfig declares a scoring profile.  Profiles given here override or
// extend the built-in set by name.
type ProfileConfig struct {
	Description   string             `mapstructure:"description"`
	Weights       map[string]float64 `mapstructure:"weights"`
	Synergies     []SynergyConfig    `mapstructure:"synergies"`
	AntiSynergies []SynergyConfig    `mapstructure:"anti_synergies"`
	Requirements  []string           `mapstructure:"requirements"`
	Disqualifiers []string           `mapstructure:"disqualifiers"`
	Domains       map[string]float64 `mapstructure:"domains"`
}

// ScoringConfig holds utilization-score parameters.
type ScoringConfig struct {
	Base     float64                  `mapstructure:"base"`
	Gain     float64                  `mapstructure:"gain"`
	LossGain float64                  `mapstructure:"loss_gain"`
	MinScore float64                  `mapstructure:"min_score"`
	MaxScore float64                  `mapstructure:"max_score"`
	Profiles map[string]ProfileConfig `mapstructure:"profiles"`
}

// Validate checks scoring parameters.
func (c *ScoringConfig) Validate() error {
	if c.MinScore >= c.MaxScore {
		return fmt.Errorf("scoring.min_score %.2f must be < scoring.max_score %.2f", c.MinScore, c.MaxScore)
	}
	if c.Base < c.MinScore || c.Base > c.MaxScore {
		return fmt.Errorf("scoring.base %.2f must lie within [min_score, max_score]", c.Base)
	}
	if c.Gain <= 0 {
		return fmt.Errorf("scoring.gain must be > 0, got %.2f", c.Gain)
	}
	if c.LossGain <= 0 || c.LossGain > 1 {
		return fmt.Errorf("scoring.loss_gain must be in (0, 1], got %.2f", c.LossGain)
	}
	for name, p := range c.Profiles {
		if name == "" {
			return fmt.Errorf("scoring.profiles contains an empty profile name")
		}
		for _, s := range append(append([]SynergyConfig{}, p.Synergies...), p.AntiSynergies...) {
			if len(s.Features) < 2 {
				return fmt.Errorf("scoring.profiles.%s: synergy needs at least two features", name)
			}
		}
		for key, d := range p.Domains {
			if d <= 0 {
				return fmt.Errorf("scoring.profiles.%s: domain for %q must be > 0, got %.2f", name, key, d)
			}
		}
	}
	return nil
}

// MismatchConfig holds thresholds for the mismatch detection rules.
type MismatchConfig struct {
	SlopeBuildableMaxPercent float64 `mapstructure:"slope_buildable_max_percent"`
	SlopeSeveritySpan        float64 `mapstructure:"slope_severity_span"`
	FlatMaxPercent           float64 `mapstructure:"flat_max_percent"`
	UtilityNearFt            float64 `mapstructure:"utility_near_ft"`
	UtilityTolerance         float64 `mapstructure:"utility_tolerance"`
	UtilityToleranceMode     string  `mapstructure:"utility_tolerance_mode"` // "absolute" | "relative"
	FloodLowElevationFt      float64 `mapstructure:"flood_low_elevation_ft"`
	FloodSafeElevationFt     float64 `mapstructure:"flood_safe_elevation_ft"`
	FloodScoreMin            float64 `mapstructure:"flood_score_min"`
	MinSeverity              float64 `mapstructure:"min_severity"`
}

// Validate checks mismatch-rule thresholds.
func (c *MismatchConfig) Validate() error {
	if c.SlopeBuildableMaxPercent <= 0 {
		return fmt.Errorf("mismatch.slope_buildable_max_percent must be > 0, got %.2f", c.SlopeBuildableMaxPercent)
	}
	if c.SlopeSeveritySpan <= 0 {
		return fmt.Errorf("mismatch.slope_severity_span must be > 0, got %.2f", c.SlopeSeveritySpan)
	}
	if c.UtilityTolerance <= 0 {
		return fmt.Errorf("mismatch.utility_tolerance must be > 0, got %.2f", c.UtilityTolerance)
	}
	switch c.UtilityToleranceMode {
	case "absolute", "relative":
	default:
		return fmt.Errorf("mismatch.utility_tolerance_mode %q is invalid; expected absolute|relative", c.UtilityToleranceMode)
	}
	if c.FloodSafeElevationFt <= c.FloodLowElevationFt {
		return fmt.Errorf("mismatch.flood_safe_elevation_ft %.1f must be > flood_low_elevation_ft %.1f",
			c.FloodSafeElevationFt, c.FloodLowElevationFt)
	}
	if c.MinSeverity < 0 || c.MinSeverity > 1 {
		return fmt.Errorf("mismatch.min_severity must be in [0, 1], got %.2f", c.MinSeverity)
	}
	return nil
}

// ProviderSourceConfig holds per-source rate and timeout settings for one
// external data provider.
type ProviderSourceConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ProvidersConfig holds settings for external feature and estimate providers.
type ProvidersConfig struct {
	Sources     map[string]ProviderSourceConfig `mapstructure:"sources"`
	CacheTTL    time.Duration                   `mapstructure:"cache_ttl"`
	FixturePath string                          `mapstructure:"fixture_path"`
}

// Validate checks provider parameters.
func (c *ProvidersConfig) Validate() error {
	for name, src := range c.Sources {
		if name == "" {
			return fmt.Errorf("providers.sources contains an empty source name")
		}
		if src.MinInterval < 0 {
			return fmt.Errorf("providers.sources.%s.min_interval must be >= 0", name)
		}
		if src.Timeout < 0 {
			return fmt.Errorf("providers.sources.%s.timeout must be >= 0", name)
		}
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("providers.cache_ttl must be >= 0")
	}
	return nil
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
	StaleAge     time.Duration `mapstructure:"stale_age"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
}

// Validate checks worker parameters.
func (c *WorkerConfig) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("worker backoff window is invalid: base=%s max=%s", c.BackoffBase, c.BackoffMax)
	}
	return nil
}

// IndexConfig selects the similarity index backend.
type IndexConfig struct {
	Backend string `mapstructure:"backend"` // "memory" | "milvus"
	Metric  string `mapstructure:"metric"`  // "cosine" | "dot"
}

// Validate checks index parameters.
func (c *IndexConfig) Validate() error {
	switch c.Backend {
	case "memory", "milvus":
	default:
		return fmt.Errorf("index.backend %q is invalid; expected memory|milvus", c.Backend)
	}
	switch c.Metric {
	case "cosine", "dot":
	default:
		return fmt.Errorf("index.metric %q is invalid; expected cosine|dot", c.Metric)
	}
	return nil
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Namespace      string `mapstructure:"namespace"`
	Subsystem      string `mapstructure:"subsystem"`
	ProcessMetrics bool   `mapstructure:"process_metrics"`
	GoMetrics      bool   `mapstructure:"go_metrics"`
}

// Validate checks metrics parameters.
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return fmt.Errorf("metrics.namespace is required when metrics.enabled is true")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire platform.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Milvus    MilvusConfig    `mapstructure:"milvus"`
	Grid      GridConfig      `mapstructure:"grid"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Mismatch  MismatchConfig  `mapstructure:"mismatch"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Index     IndexConfig     `mapstructure:"index"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	sections := []struct {
		name     string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"logging", c.Logging.Validate},
		{"postgres", c.Postgres.Validate},
		{"redis", c.Redis.Validate},
		{"kafka", c.Kafka.Validate},
		{"minio", c.MinIO.Validate},
		{"milvus", c.Milvus.Validate},
		{"grid", c.Grid.Validate},
		{"scoring", c.Scoring.Validate},
		{"mismatch", c.Mismatch.Validate},
		{"providers", c.Providers.Validate},
		{"worker", c.Worker.Validate},
		{"index", c.Index.Validate},
		{"metrics", c.Metrics.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Index.Backend == "milvus" && !c.Milvus.Enabled {
		return fmt.Errorf("config: index.backend is milvus but milvus.enabled is false")
	}
	return nil
}
