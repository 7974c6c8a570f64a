// Package handlers implements the HTTP API endpoints: scans, ad-hoc scoring
// and mismatch detection, quantum lookups, similarity queries, profile
// listing, and health probes. Handlers bind JSON, delegate to the domain or
// application layer, and translate AppError codes to HTTP statuses.
package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// ErrorResponse is the error envelope every endpoint returns on failure.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError translates err's code to an HTTP status and writes the error
// envelope. Server-side failures are masked behind the code's default
// message; client errors keep their message and detail so callers can fix
// the request. The error is attached to the gin context for the logging
// middleware.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	code := errors.GetCode(err)
	if code == errors.CodeUnknown || code == errors.CodeOK {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	message := errors.DefaultMessageForCode(code)
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && status < http.StatusInternalServerError {
		message = appErr.Message
		if appErr.Detail != "" {
			message = message + ": " + appErr.Detail
		}
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Code: code.String(), Message: message})
}

// bindJSON decodes the request body into v, responding with 400 on failure.
// Returns false when the response has already been written.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed request body"))
		return false
	}
	return true
}

// queryInt reads an integer query parameter, falling back on absence or
// garbage.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// queryFloat reads a float query parameter, falling back on absence or
// garbage.
func queryFloat(c *gin.Context, name string, fallback float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
