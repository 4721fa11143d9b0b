// Package client provides the campaign API request executor: one logical
// HTTP operation per call, with token freshness, request pacing, outcome
// classification, and retry with exponential backoff on every attempt.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/adops-io/campaign-sync/pkg/ratelimit"
)

// Prometheus metrics for executor operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sync_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_sync_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sync_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})

	apiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sync_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	apiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_sync_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	apiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sync_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// maxAuthRetries caps 401-driven retries so a persistently invalid
// credential cannot loop forever through invalidate-and-refresh.
const maxAuthRetries = 2

const backoffMultiplier = 2.0

// TokenSource supplies a valid bearer token and accepts invalidation when
// the server rejects one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Config holds the executor configuration.
type Config struct {
	// BaseURL of the campaign API, without trailing slash.
	BaseURL string

	// UserAgent header sent on every request.
	UserAgent string

	// Timeout per individual HTTP call.
	Timeout time.Duration

	// MaxRetries is the retry ceiling for server and network failures.
	// Rate limit rejections (429) are not counted against it.
	MaxRetries int

	// InitialBackoff is the first backoff duration; it doubles per retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      "campaign-sync/1.0",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
	}
}

// Executor issues campaign API operations. Every attempt obtains a fresh
// token, waits on the rate limiter, performs the call, and classifies the
// outcome. Retries run through an explicit loop with an attempt counter,
// never through recursion, so long retry chains cost no stack.
type Executor struct {
	httpClient *http.Client
	tokens     TokenSource
	limiter    *ratelimit.Limiter
	cfg        Config
	logger     zerolog.Logger
}

// NewExecutor creates a request executor.
func NewExecutor(cfg Config, tokens TokenSource, limiter *ratelimit.Limiter, logger zerolog.Logger) (*Executor, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}

	return &Executor{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		limiter:    limiter,
		cfg:        cfg,
		logger:     logger.With().Str("component", "executor").Logger(),
	}, nil
}

// Get performs a GET request against an API path (path may carry a query).
func (e *Executor) Get(ctx context.Context, path string) ([]byte, error) {
	return e.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request against an API path.
func (e *Executor) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return e.Do(ctx, http.MethodPost, path, body)
}

// attemptResult carries one attempt's classified outcome.
type attemptResult struct {
	status     int
	payload    []byte
	retryAfter time.Duration
}

// errTokenUnavailable marks a failed token acquisition; it shares the
// 401-driven retry budget rather than the transient one.
var errTokenUnavailable = errors.New("token unavailable")

// Do issues one logical API operation, retrying recoverable failures:
//
//   - 2xx returns the payload.
//   - 429 waits for the server's Retry-After hint when present, else an
//     exponential backoff, and retries without consuming the retry ceiling.
//   - 401 invalidates the token and retries, at most maxAuthRetries times.
//   - 5xx and network errors back off exponentially up to MaxRetries.
//   - Any other 4xx surfaces immediately, never retried.
func (e *Executor) Do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	endpoint := metricEndpoint(path)

	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	backoff := e.cfg.InitialBackoff
	rateBackoff := e.cfg.InitialBackoff
	transientRetries := 0
	authRetries := 0

	for attempt := 1; ; attempt++ {
		res, err := e.attempt(ctx, method, path, body, endpoint)

		if err != nil {
			// Aborts from the caller's context are not failures to retry.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			}

			if errors.Is(err, errTokenUnavailable) {
				apiErrorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
				authRetries++
				if authRetries > maxAuthRetries {
					e.logExhausted(ErrorClassAuth, endpoint, attempt, err)
					return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
				}
				e.logRetry(ErrorClassAuth, endpoint, attempt, 0)
				apiRetriesTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
				continue
			}

			// Network or timeout failure.
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			if transientRetries >= e.cfg.MaxRetries {
				e.logExhausted(ErrorClassNetwork, endpoint, attempt, err)
				return nil, &APIError{
					Class:   ErrorClassNetwork,
					Message: "network failure",
					Err:     fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempt, err),
				}
			}
			transientRetries++
			wait := withJitter(backoff)
			backoff = growBackoff(backoff, e.cfg.MaxBackoff)
			if err := e.sleepBeforeRetry(ctx, ErrorClassNetwork, endpoint, attempt, wait); err != nil {
				return nil, err
			}
			continue
		}

		apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(res.status)).Inc()

		if res.status >= 200 && res.status < 300 {
			if attempt > 1 {
				e.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return res.payload, nil
		}

		class := classifyStatus(res.status)
		apiErrorsTotal.WithLabelValues(string(class)).Inc()

		switch class {
		case ErrorClassRateLimit:
			// Quota rejections must eventually succeed; they never exhaust.
			wait := res.retryAfter
			if wait <= 0 {
				wait = withJitter(rateBackoff)
				rateBackoff = growBackoff(rateBackoff, e.cfg.MaxBackoff)
			}
			if err := e.sleepBeforeRetry(ctx, class, endpoint, attempt, wait); err != nil {
				return nil, err
			}
			continue

		case ErrorClassAuth:
			e.tokens.Invalidate()
			authRetries++
			if authRetries > maxAuthRetries {
				e.logExhausted(class, endpoint, attempt, nil)
				return nil, fmt.Errorf("%w: server rejected token %d times", ErrAuthFailed, authRetries)
			}
			e.logRetry(class, endpoint, attempt, 0)
			apiRetriesTotal.WithLabelValues(string(class)).Inc()
			continue

		case ErrorClassServer:
			if transientRetries >= e.cfg.MaxRetries {
				e.logExhausted(class, endpoint, attempt, nil)
				return nil, &APIError{
					StatusCode: res.status,
					Class:      class,
					Message:    http.StatusText(res.status),
					Err:        fmt.Errorf("%w after %d attempts", ErrRetryExhausted, attempt),
				}
			}
			transientRetries++
			wait := withJitter(backoff)
			backoff = growBackoff(backoff, e.cfg.MaxBackoff)
			if err := e.sleepBeforeRetry(ctx, class, endpoint, attempt, wait); err != nil {
				return nil, err
			}
			continue

		default:
			// Non-recoverable client error: surface immediately.
			e.logger.Error().
				Str("endpoint", endpoint).
				Int("status", res.status).
				Msg("Request failed with client error")
			return nil, &APIError{
				StatusCode: res.status,
				Class:      ErrorClassClient,
				Message:    http.StatusText(res.status),
			}
		}
	}
}

// attempt performs a single token-fresh, rate-paced HTTP call.
func (e *Executor) attempt(ctx context.Context, method, path string, body []byte, endpoint string) (*attemptResult, error) {
	token, err := e.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTokenUnavailable, err)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	e.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing API request")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &attemptResult{
		status:     resp.StatusCode,
		payload:    payload,
		retryAfter: parseRetryAfter(resp.Header),
	}, nil
}

// sleepBeforeRetry logs the retry warning, records metrics, and waits with
// context cancellation support.
func (e *Executor) sleepBeforeRetry(ctx context.Context, class ErrorClass, endpoint string, attempt int, wait time.Duration) error {
	apiRetriesTotal.WithLabelValues(string(class)).Inc()
	apiRetryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())
	e.logRetry(class, endpoint, attempt, wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		e.logger.Warn().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Msg("Context cancelled during retry backoff")
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (e *Executor) logRetry(class ErrorClass, endpoint string, attempt int, wait time.Duration) {
	e.logger.Warn().
		Str("endpoint", endpoint).
		Str("error_class", string(class)).
		Int("attempt", attempt).
		Dur("wait", wait).
		Msg("Retrying request")
}

func (e *Executor) logExhausted(class ErrorClass, endpoint string, attempt int, err error) {
	apiRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	e.logger.Error().
		Err(err).
		Str("endpoint", endpoint).
		Str("error_class", string(class)).
		Int("attempts", attempt).
		Msg("Request failed, retries exhausted")
}

// parseRetryAfter reads the server's Retry-After hint in seconds.
func parseRetryAfter(headers http.Header) time.Duration {
	v := headers.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// withJitter applies ±20% randomness to avoid synchronized retries.
func withJitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

// growBackoff doubles the backoff up to the limit.
func growBackoff(d, limit time.Duration) time.Duration {
	d = time.Duration(float64(d) * backoffMultiplier)
	if d > limit {
		return limit
	}
	return d
}

// metricEndpoint strips the query string so metric labels stay bounded.
func metricEndpoint(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
