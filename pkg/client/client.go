// Package client provides the HTTP transport used to talk to STAC APIs:
// JSON reads with retry and backoff, single-shot JSON writes, error
// classification and request metrics.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_http_requests_total",
		Help: "Total HTTP requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "siphon_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_http_errors_total",
		Help: "Total HTTP errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Accept header sent with every request. STAC APIs answer with GeoJSON.
const acceptHeader = "application/geo+json, application/json;q=0.9"

// Client is a JSON-over-HTTP client for STAC API endpoints.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request
	UserAgent string

	// Timeout bounds a single HTTP exchange, body included
	Timeout time.Duration

	// Retry applies to idempotent requests only
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	logger := log.With().Str("component", "http-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Do performs an HTTP request with standard headers, error classification and
// metrics. GET and HEAD requests are retried on network, 5xx and 429 failures;
// every other method is attempted exactly once.
//
// A response is returned for any status that is not retried (including 4xx);
// checking the status is left to the caller.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	method := req.Method

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", acceptHeader)
	}

	c.logger.Debug().
		Str("url", req.URL.String()).
		Str("method", method).
		Msg("Executing request")

	if !isIdempotent(method) {
		_, resp, err := c.attempt(req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, func() (ErrorClass, error) {
		class, r, err := c.attempt(req)
		if err != nil {
			return class, err
		}
		if shouldRetry(class) {
			statusErr := newStatusError(r)
			r.Body.Close()
			return class, statusErr
		}
		resp = r
		return "", nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return resp, nil
}

// attempt executes req once. Transport failures come back as an HTTPError;
// any received response is returned together with its error class ("" on
// 2xx/3xx).
func (c *Client) attempt(req *http.Request) (ErrorClass, *http.Response, error) {
	method := req.Method
	url := req.URL.String()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		c.logger.Error().Err(err).Str("url", url).Str("method", method).Msg("HTTP request failed")
		return class, nil, &HTTPError{Method: method, URL: url, ErrorClass: class, Err: err}
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	class := c.classifyError(resp, nil)
	if class != "" {
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("url", url).
			Str("method", method).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Request error")
	}

	return class, resp, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}
	return classifyStatus(resp.StatusCode)
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

func isIdempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// GetJSON fetches url and decodes the JSON response body into v.
// Any non-2xx status is returned as an *HTTPError.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// PostJSON encodes body as JSON and posts it to url. The response body is
// discarded; any non-2xx status is returned as an *HTTPError.
func (c *Client) PostJSON(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
