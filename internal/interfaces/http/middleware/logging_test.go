package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

func newObservedRouter(cfg middleware.LoggingConfig) (*gin.Engine, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(middleware.RequestLogging(logging.NewLoggerFromCore(core), cfg))
	return r, observed
}

func TestRequestLogging_EmitsOneLinePerRequest(t *testing.T) {
	t.Parallel()

	r, observed := newObservedRouter(middleware.DefaultLoggingConfig())
	r.GET("/api/v1/profiles", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"profiles": []string{}})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/profiles?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "request completed", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, http.MethodGet, ctx["method"])
	assert.Equal(t, "/api/v1/profiles?limit=5", ctx["path"])
	assert.Equal(t, int64(http.StatusOK), ctx["status"])
}

func TestRequestLogging_ServerErrorsLogAtError(t *testing.T) {
	t.Parallel()

	r, observed := newObservedRouter(middleware.DefaultLoggingConfig())
	r.GET("/boom", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestRequestLogging_ClientErrorsLogAtWarn(t *testing.T) {
	t.Parallel()

	r, observed := newObservedRouter(middleware.DefaultLoggingConfig())
	r.GET("/nope", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestRequestLogging_SkipsConfiguredPaths(t *testing.T) {
	t.Parallel()

	r, observed := newObservedRouter(middleware.DefaultLoggingConfig())
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Zero(t, observed.Len())
}

func TestRequestLogging_IncludesAttachedErrors(t *testing.T) {
	t.Parallel()

	r, observed := newObservedRouter(middleware.DefaultLoggingConfig())
	r.GET("/scans/missing", func(c *gin.Context) {
		_ = c.Error(errors.NotFound("scan missing"))
		c.JSON(http.StatusNotFound, gin.H{})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scans/missing", nil))

	entries := observed.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Contains(t, ctx["errors"], "scan missing")
}
