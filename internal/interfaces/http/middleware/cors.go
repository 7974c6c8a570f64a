package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig controls cross-origin request handling.
type CORSConfig struct {
	// AllowedOrigins lists the origins permitted to call the API. Entries
	// match exactly, except "*" (any origin) and "*.example.com" (any
	// subdomain of example.com).
	AllowedOrigins []string

	// AllowedMethods and AllowedHeaders are advertised on preflight.
	AllowedMethods []string
	AllowedHeaders []string

	// ExposedHeaders are response headers readable by browser clients.
	ExposedHeaders []string

	// AllowCredentials permits cookies and Authorization headers. A wildcard
	// origin with credentials reflects the caller's origin, since browsers
	// reject the literal "*" in that combination.
	AllowCredentials bool

	// MaxAge is how long, in seconds, preflight results may be cached.
	MaxAge int
}

// DefaultCORSConfig allows no origins until configured; everything else is
// set up for a JSON API.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-API-Key",
			RequestIDHeader,
		},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           600,
	}
}

// withDefaults fills the method, header, and cache fields from
// DefaultCORSConfig when unset. Origins and the credentials flag are always
// the caller's.
func (c CORSConfig) withDefaults() CORSConfig {
	def := DefaultCORSConfig()
	if c.AllowedMethods == nil {
		c.AllowedMethods = def.AllowedMethods
	}
	if c.AllowedHeaders == nil {
		c.AllowedHeaders = def.AllowedHeaders
	}
	if c.ExposedHeaders == nil {
		c.ExposedHeaders = def.ExposedHeaders
	}
	if c.MaxAge == 0 {
		c.MaxAge = def.MaxAge
	}
	return c
}

// CORS handles preflight requests and sets the Access-Control response
// headers for allowed origins. Requests without an Origin header pass
// through untouched; disallowed preflights get 403, disallowed simple
// requests proceed without CORS headers and fail in the browser.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	cfg = cfg.withDefaults()

	allowAll := false
	exact := make(map[string]struct{}, len(cfg.AllowedOrigins))
	var suffixes []string
	for _, o := range cfg.AllowedOrigins {
		switch {
		case o == "*":
			allowAll = true
		case strings.HasPrefix(o, "*."):
			suffixes = append(suffixes, o[1:]) // keep the leading dot
		default:
			exact[o] = struct{}{}
		}
	}

	allowMethods := strings.Join(cfg.AllowedMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposedHeaders, ", ")

	allowed := func(origin string) bool {
		if allowAll {
			return true
		}
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(origin, suffix) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		if !allowed(origin) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		if allowAll && !cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if exposeHeaders != "" {
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
		}

		if c.Request.Method == http.MethodOptions {
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
