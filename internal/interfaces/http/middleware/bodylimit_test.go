package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/LandQuant-Intelligence/internal/interfaces/http/middleware"
)

func newBodyLimitRouter(maxBytes int64) *gin.Engine {
	r := gin.New()
	r.Use(middleware.BodyLimit(maxBytes))
	r.POST("/ingest", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestBodyLimit_RejectsOversizedBody(t *testing.T) {
	t.Parallel()

	r := newBodyLimitRouter(16)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestBodyLimit_AllowsBodiesUnderTheCap(t *testing.T) {
	t.Parallel()

	r := newBodyLimitRouter(16)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("small"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBodyLimit_ZeroDisablesLimit(t *testing.T) {
	t.Parallel()

	r := newBodyLimitRouter(0)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(strings.Repeat("x", 1<<16)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
