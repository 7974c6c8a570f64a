// Package http assembles the REST surface: the middleware chain, the route
// tree, and the server lifecycle around them.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree. Nil handlers leave their route
// group unregistered, so partial deployments (a worker-only process serving
// just probes, say) reuse the same constructor.
type RouterConfig struct {
	// Handlers
	ScanHandler       *handlers.ScanHandler
	AnalysisHandler   *handlers.AnalysisHandler
	QuantumHandler    *handlers.QuantumHandler
	SimilarityHandler *handlers.SimilarityHandler
	ProfileHandler    *handlers.ProfileHandler
	HealthHandler     *handlers.HealthHandler

	// Middleware
	CORS        middleware.CORSConfig
	Logging     middleware.LoggingConfig
	MaxBodySize int64

	// Infrastructure
	Mode           string // gin mode: debug, release, or test
	Logger         logging.Logger
	Metrics        *prometheus.AppMetrics
	MetricsHandler http.Handler
}

// NewRouter constructs the complete HTTP route tree from the given
// configuration: global middleware, public probe endpoints, the metrics
// scrape endpoint, and the /api/v1 resource groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logCfg := cfg.Logging
	if logCfg.SkipPaths == nil && logCfg.SlowThreshold == 0 {
		logCfg = middleware.DefaultLoggingConfig()
	}

	r := gin.New()

	// Recovery sits inside logging and metrics so a panicked request still
	// produces a log line and a counter increment.
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(logger, logCfg))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	registerScanRoutes(api, cfg.ScanHandler)
	registerAnalysisRoutes(api, cfg.AnalysisHandler)
	registerQuantumRoutes(api, cfg.QuantumHandler)
	registerSimilarityRoutes(api, cfg.SimilarityHandler)
	registerProfileRoutes(api, cfg.ProfileHandler)

	return r
}

func registerScanRoutes(api *gin.RouterGroup, h *handlers.ScanHandler) {
	if h == nil {
		return
	}
	api.POST("/scans", h.Start)
	api.GET("/scans", h.List)
	api.GET("/scans/:id", h.Get)
	api.GET("/scans/:id/report", h.Report)
	api.POST("/scans/:id/archive", h.ArchiveReport)
}

func registerAnalysisRoutes(api *gin.RouterGroup, h *handlers.AnalysisHandler) {
	if h == nil {
		return
	}
	api.POST("/analysis/score", h.Score)
	api.POST("/analysis/mismatches", h.DetectMismatches)
}

func registerQuantumRoutes(api *gin.RouterGroup, h *handlers.QuantumHandler) {
	if h == nil {
		return
	}
	api.GET("/quanta/:id", h.Get)
	api.GET("/quanta/:id/neighbors", h.Neighbors)
}

func registerSimilarityRoutes(api *gin.RouterGroup, h *handlers.SimilarityHandler) {
	if h == nil {
		return
	}
	api.POST("/similarity/query", h.Query)
}

func registerProfileRoutes(api *gin.RouterGroup, h *handlers.ProfileHandler) {
	if h == nil {
		return
	}
	api.GET("/profiles", h.List)
}
