// Package client is the Go SDK for the LandQuant REST API. A Client wraps
// one API endpoint with retries, and exposes the resource surface through
// typed sub-clients:
//
//	c, err := client.NewClient("http://localhost:8080")
//	scan, err := c.Scans().Start(ctx, req)
//
// All request and response types are the wire DTOs from pkg/types, so SDK
// consumers and server handlers share one schema.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Version is the SDK release, reported in the User-Agent header.
const Version = "0.1.0"

// requestIDHeader matches the server's request-identity header.
const requestIDHeader = "X-Request-ID"

// Logger receives the SDK's diagnostic output. The default discards it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

// Client is the LandQuant SDK client. It is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	apiKey       string
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	scans        *ScansClient
	scansOnce    sync.Once
	analysis     *AnalysisClient
	analysisOnce sync.Once
	quanta       *QuantaClient
	quantaOnce   sync.Once
}

// APIError is a non-2xx response decoded into the server's error envelope.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("landquant: %s (HTTP %d): %s [request_id=%s]",
		e.Code, e.StatusCode, e.Message, e.RequestID)
}

// IsNotFound reports whether the server answered 404.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsBadRequest reports whether the server rejected the request as invalid.
func (e *APIError) IsBadRequest() bool { return e.StatusCode == http.StatusBadRequest }

// IsConflict reports whether the request contradicted server state, such as
// a quantum id minted at a different grid resolution.
func (e *APIError) IsConflict() bool { return e.StatusCode == http.StatusConflict }

// IsRateLimited reports whether the server asked the client to back off.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// IsServerError reports whether the failure was on the server's side.
func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// NewClient builds a client for the API at baseURL ("http://host:port").
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("landquant: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("landquant: invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("landquant: base URL scheme must be http or https, got %q", parsed.Scheme)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    "landquant-go-sdk/" + Version,
		logger:       noopLogger{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scans returns the bulk-scan sub-client.
func (c *Client) Scans() *ScansClient {
	c.scansOnce.Do(func() { c.scans = &ScansClient{client: c} })
	return c.scans
}

// Analysis returns the ad-hoc scoring and mismatch sub-client.
func (c *Client) Analysis() *AnalysisClient {
	c.analysisOnce.Do(func() { c.analysis = &AnalysisClient{client: c} })
	return c.analysis
}

// Quanta returns the grid-cell sub-client.
func (c *Client) Quanta() *QuantaClient {
	c.quantaOnce.Do(func() { c.quanta = &QuantaClient{client: c} })
	return c.quanta
}

// Healthy probes GET /healthz, returning nil when the server answers 200.
func (c *Client) Healthy(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

// do performs one API call with retries. Network failures, 5xx responses,
// and 429 responses retry with exponential backoff and jitter; other client
// errors return immediately as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	fullURL := c.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("landquant: marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.logger.Debugf("retry %d for %s %s after %v", attempt, method, path, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("landquant: build request: %w", err)
		}

		requestID := uuid.NewString()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set(requestIDHeader, requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Errorf("%s %s failed: %v", method, path, err)
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		closeErr := resp.Body.Close()
		if err != nil {
			return fmt.Errorf("landquant: read response body: %w", err)
		}
		if closeErr != nil {
			c.logger.Debugf("close response body: %v", closeErr)
		}
		c.logger.Debugf("%s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start))

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = c.apiError(resp, respBody, requestID)
			if wait, ok := retryAfter(resp); ok && attempt < c.retryMax {
				c.logger.Infof("rate limited, retrying after %v", wait)
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}

		if resp.StatusCode >= 400 {
			apiErr := c.apiError(resp, respBody, requestID)
			if resp.StatusCode >= 500 {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("landquant: unmarshal response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

// apiError decodes the server's {code,message} envelope, falling back to the
// raw body, and prefers the server-echoed request id over the minted one.
func (c *Client) apiError(resp *http.Response, body []byte, requestID string) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID}
	if echoed := resp.Header.Get(requestIDHeader); echoed != "" {
		apiErr.RequestID = echoed
	}
	if len(body) > 0 {
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Code != "" {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	return apiErr
}

// backoff doubles from the minimum per attempt, saturates at the maximum,
// and adds up to 25% jitter to spread synchronized retries.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryWaitMin << uint(attempt-1)
	if d > c.retryWaitMax || d <= 0 {
		d = c.retryWaitMax
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}
