package main

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olgasafonova/confluence-mcp-server/internal/confluence"
	"github.com/olgasafonova/confluence-mcp-server/metrics"
)

// HTTP transport defaults.
const (
	DefaultRateLimit   = 120     // requests per minute per client IP
	DefaultMaxBodySize = 4 << 20 // 4 MiB

	requestIDHeader = "X-Request-ID"
)

// RateLimiter is a per-IP token bucket refilled to rate every interval.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	interval time.Duration

	stopCh    chan struct{}
	closeOnce sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter starts a limiter and its cleanup loop. Call Close to stop it.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow consumes one token for ip and reports whether the request may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[ip]
	if !ok || now.Sub(b.lastRefill) >= rl.interval {
		b = &bucket{tokens: rl.rate, lastRefill: now}
		rl.buckets[ip] = b
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Close stops the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanupLoop() {
	tick := rl.interval
	if tick < time.Minute {
		tick = time.Minute
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.buckets {
				if now.Sub(b.lastRefill) > 2*rl.interval {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// SecurityConfig configures the HTTP transport middleware.
type SecurityConfig struct {
	RateLimit   int    // requests per minute per client IP; 0 disables
	MaxBodySize int64  // bytes; 0 disables
	AuthToken   string // bearer token required on every route except /health
}

// SecurityMiddleware guards the streamable HTTP transport.
type SecurityMiddleware struct {
	next    http.Handler
	logger  *slog.Logger
	config  SecurityConfig
	limiter *RateLimiter
}

// NewSecurityMiddleware wraps next. Close releases the rate limiter.
func NewSecurityMiddleware(next http.Handler, logger *slog.Logger, config SecurityConfig) *SecurityMiddleware {
	sm := &SecurityMiddleware{next: next, logger: logger, config: config}
	if config.RateLimit > 0 {
		sm.limiter = NewRateLimiter(config.RateLimit, time.Minute)
	}
	return sm
}

// Close stops background work owned by the middleware.
func (sm *SecurityMiddleware) Close() {
	if sm.limiter != nil {
		sm.limiter.Close()
	}
}

func (sm *SecurityMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		r.Header.Set(requestIDHeader, requestID)
	}
	w.Header().Set(requestIDHeader, requestID)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, routeLabel(r.URL.Path)).Observe(time.Since(start).Seconds())
	}()

	ip := clientIP(r)

	if sm.limiter != nil && !sm.limiter.Allow(ip) {
		metrics.RateLimitRejections.Inc()
		sm.logger.Warn("Rate limit exceeded", "ip", ip, "request_id", requestID)
		rec.Header().Set("Retry-After", "60")
		http.Error(rec, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	if sm.config.AuthToken != "" && r.URL.Path != "/health" {
		if reason := sm.checkAuth(r); reason != "" {
			metrics.AuthFailures.WithLabelValues(reason).Inc()
			sm.logger.Warn("Unauthorized request", "ip", ip, "reason", reason, "request_id", requestID)
			rec.Header().Set("WWW-Authenticate", `Bearer realm="confluence-mcp-server"`)
			http.Error(rec, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if sm.config.MaxBodySize > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(rec, r.Body, sm.config.MaxBodySize)
	}

	sm.next.ServeHTTP(rec, r)
}

// checkAuth returns the failure reason, or "" when the bearer token matches.
func (sm *SecurityMiddleware) checkAuth(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "missing"
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "malformed"
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(sm.config.AuthToken)) != 1 {
		return "invalid"
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routeLabel keeps the path label bounded.
func routeLabel(path string) string {
	switch path {
	case "/mcp", "/metrics", "/health":
		return path
	default:
		return "other"
	}
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status         string `json:"status"`
	APIVersion     string `json:"api_version"`
	Site           string `json:"site"`
	CircuitBreaker string `json:"circuit_breaker"`
}

func healthHandler(client *confluence.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := HealthStatus{
			Status:         "ok",
			APIVersion:     string(client.Version()),
			Site:           client.SiteURL(),
			CircuitBreaker: client.CircuitState(),
		}
		code := http.StatusOK
		if h.CircuitBreaker == "open" {
			h.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(h)
	}
}

// newHTTPHandler serves MCP over streamable HTTP at /mcp alongside /metrics and
// /health, all behind the security middleware.
func newHTTPHandler(server *mcp.Server, client *confluence.Client, logger *slog.Logger, config SecurityConfig) *SecurityMiddleware {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler(client))
	return NewSecurityMiddleware(mux, logger, config)
}
