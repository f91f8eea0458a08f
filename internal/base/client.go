// Package base provides the shared HTTP plumbing used by both Confluence API
// surfaces: authentication, concurrency limiting, circuit breaking, request
// coalescing and retries.
package base

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/olgasafonova/confluence-mcp-server/internal/infra"
	"github.com/olgasafonova/confluence-mcp-server/metrics"
	"github.com/olgasafonova/confluence-mcp-server/tracing"
)

const (
	// DefaultTimeout for API requests
	DefaultTimeout = 30 * time.Second

	// MaxConcurrentRequests limits parallel API calls
	MaxConcurrentRequests = 5

	// DefaultMaxRetry is the number of attempts for idempotent requests
	DefaultMaxRetry = 3

	// MaxResponseSize caps how much of a response body is read
	MaxResponseSize = 10 << 20

	DefaultUserAgent = "confluence-mcp-server/1.0"
)

// ErrResponseTooLarge is returned when a response body exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// Client provides common HTTP client infrastructure with rate limiting,
// circuit breaking, and request coalescing.
type Client struct {
	HTTPClient     *http.Client
	Logger         *slog.Logger
	Coalescer      *infra.Coalescer[response]
	CircuitBreaker *infra.CircuitBreaker
	Semaphore      chan struct{}
	UserAgent      string
	MaxRetry       int

	email   string
	token   string
	backoff func(attempt int) time.Duration
}

type response struct {
	body   []byte
	status int
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		if c != nil {
			client.HTTPClient = c
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		if l != nil {
			client.Logger = l
		}
	}
}

// WithCredentials sets the account email and API token sent as basic auth.
func WithCredentials(email, token string) ClientOption {
	return func(client *Client) {
		client.email = email
		client.token = token
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		if ua != "" {
			client.UserAgent = ua
		}
	}
}

// WithMaxConcurrent sets how many upstream requests may run at once.
func WithMaxConcurrent(n int) ClientOption {
	return func(client *Client) {
		if n > 0 {
			client.Semaphore = make(chan struct{}, n)
		}
	}
}

// WithMaxRetry sets the attempt count for idempotent requests.
func WithMaxRetry(n int) ClientOption {
	return func(client *Client) {
		if n > 0 {
			client.MaxRetry = n
		}
	}
}

// WithBackoff replaces the delay between retry attempts.
func WithBackoff(fn func(attempt int) time.Duration) ClientOption {
	return func(client *Client) {
		if fn != nil {
			client.backoff = fn
		}
	}
}

// WithCircuitBreaker sets a custom circuit breaker
func WithCircuitBreaker(cb *infra.CircuitBreaker) ClientOption {
	return func(client *Client) {
		if cb != nil {
			client.CircuitBreaker = cb
		}
	}
}

// NewClient creates a new base client with default settings
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		HTTPClient: newHTTPClient(DefaultTimeout),
		Logger:     slog.Default(),
		Coalescer:  infra.NewCoalescer[response](),
		CircuitBreaker: infra.NewCircuitBreaker(infra.WithStateChange(func(_, to infra.CircuitState) {
			metrics.CircuitBreakerState.Set(float64(to))
		})),
		Semaphore: make(chan struct{}, MaxConcurrentRequests),
		UserAgent: DefaultUserAgent,
		MaxRetry:  DefaultMaxRetry,
		backoff:   quadraticBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CircuitBreakerStats returns the current circuit breaker state
func (c *Client) CircuitBreakerStats() infra.CircuitBreakerStats {
	return c.CircuitBreaker.Stats()
}

// AcquireSlot blocks until a request slot is available or context is canceled
func (c *Client) AcquireSlot(ctx context.Context) error {
	select {
	case c.Semaphore <- struct{}{}:
		return nil
	default:
	}

	metrics.RateLimitWaits.Inc()
	select {
	case c.Semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for request slot: %w", ctx.Err())
	}
}

// ReleaseSlot releases a request slot
func (c *Client) ReleaseSlot() {
	<-c.Semaphore
}

// CheckCircuitBreaker returns nil if requests are allowed, or an error if the circuit is open
func (c *Client) CheckCircuitBreaker() error {
	if !c.CircuitBreaker.Allow() {
		stats := c.CircuitBreaker.Stats()
		return &infra.ErrCircuitOpen{
			State:    stats.State,
			RetryAt:  stats.RetryAt,
			Failures: stats.ConsecutiveFails,
		}
	}
	return nil
}

// RequestConfig configures a single HTTP request
type RequestConfig struct {
	Method  string // defaults to GET
	URL     string
	Body    []byte // sent as application/json when non-nil
	Headers map[string]string

	// Surface and Action label metrics and spans.
	Surface string
	Action  string

	MaxRetry int // overrides the client default for GETs
}

// DoRequest performs an HTTP request with circuit breaker, rate limiting, and
// retries. It returns the body and status of the final response; the error is
// non-nil only when no response was obtained. Only GETs are retried and
// coalesced.
func (c *Client) DoRequest(ctx context.Context, cfg RequestConfig) ([]byte, int, error) {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}

	if cfg.Method != http.MethodGet {
		r, err := c.execute(ctx, cfg, 1)
		return r.body, r.status, err
	}

	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = c.MaxRetry
	}

	r, shared, err := c.Coalescer.Do(ctx, "GET "+cfg.URL, func(callCtx context.Context) (response, error) {
		return c.execute(callCtx, cfg, maxRetry)
	})
	if shared {
		metrics.CoalescedRequests.Inc()
	}
	return r.body, r.status, err
}

func (c *Client) execute(ctx context.Context, cfg RequestConfig, attempts int) (response, error) {
	ctx, span := tracing.StartSpan(ctx, "confluence."+cfg.Action)
	defer span.End()
	tracing.AddConfluenceAttributes(span, cfg.Surface, cfg.Action, cfg.Method)

	if err := c.CheckCircuitBreaker(); err != nil {
		tracing.RecordError(span, err)
		return response{}, err
	}
	recorded := false
	defer func() {
		if !recorded {
			c.CircuitBreaker.Abort()
		}
	}()

	if err := c.AcquireSlot(ctx); err != nil {
		return response{}, err
	}
	defer c.ReleaseSlot()

	var (
		last    response
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.UpstreamAPIRetries.WithLabelValues(cfg.Surface, cfg.Action).Inc()
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return last, fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			}
		}

		start := time.Now()
		resp, err := c.send(ctx, cfg)
		if err != nil {
			metrics.RecordAPICall(cfg.Surface, cfg.Action, time.Since(start).Seconds(), 0)
			if ctx.Err() != nil {
				return response{}, err
			}
			lastErr = err
			last = response{}
			c.Logger.Warn("Confluence request failed",
				"attempt", attempt+1,
				"method", cfg.Method,
				"url", cfg.URL,
				"error", err)
			continue
		}

		body, err := readAndClose(resp)
		metrics.RecordAPICall(cfg.Surface, cfg.Action, time.Since(start).Seconds(), resp.StatusCode)
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			last = response{}
			continue
		}
		last, lastErr = response{body: body, status: resp.StatusCode}, nil

		if resp.StatusCode == http.StatusTooManyRequests {
			if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 && attempt+1 < attempts {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return last, ctx.Err()
				}
			}
			continue
		}
		if resp.StatusCode >= 500 {
			continue
		}

		recorded = true
		c.CircuitBreaker.RecordSuccess()
		return last, nil
	}

	recorded = true
	c.CircuitBreaker.RecordFailure()
	if lastErr != nil {
		tracing.RecordError(span, lastErr)
	}
	return last, lastErr
}

func (c *Client) send(ctx context.Context, cfg RequestConfig) (*http.Response, error) {
	var body io.Reader
	if cfg.Body != nil {
		body = bytes.NewReader(cfg.Body)
	}
	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	if cfg.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.email != "" || c.token != "" {
		req.SetBasicAuth(c.email, c.token)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// readAndClose reads the response body and closes it
func readAndClose(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func quadraticBackoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 100 * time.Millisecond
}

// Truncate shortens a string to at most maxLen bytes, adding "..." if
// truncated. It never cuts a UTF-8 sequence in half.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// newHTTPClient creates an HTTP client with optimized transport settings
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       120 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// NewHTTPClient exposes the tuned transport for callers that need a timeout
// other than DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return newHTTPClient(timeout)
}
