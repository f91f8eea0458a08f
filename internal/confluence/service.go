// Package confluence is the content-service adapter: one contract over the
// legacy /wiki/rest/api surface and the typed /wiki/api/v2 surface, with
// responses normalized to a single record shape and failures classified into
// the internal/errors taxonomy.
package confluence

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/olgasafonova/confluence-mcp-server/internal/base"
	"github.com/olgasafonova/confluence-mcp-server/internal/config"
	"github.com/olgasafonova/confluence-mcp-server/internal/infra"
	"github.com/olgasafonova/confluence-mcp-server/metrics"
)

// Service is the operation set both API surfaces implement.
type Service interface {
	ListSpaces(ctx context.Context, opts ListOptions) (*PaginatedResponse[Space], error)
	GetSpace(ctx context.Context, keyOrID string) (*Space, error)

	ListPages(ctx context.Context, spaceKey, title string, opts ListOptions) (*PaginatedResponse[Page], error)
	FindPageByTitle(ctx context.Context, title, spaceKey string) (*PaginatedResponse[Page], error)
	GetPage(ctx context.Context, id string) (*Page, error)
	GetPageContent(ctx context.Context, id string) (*PageContent, error)
	CreatePage(ctx context.Context, in CreatePageInput) (*Page, error)
	UpdatePage(ctx context.Context, in UpdatePageInput) (*Page, error)

	SearchContent(ctx context.Context, query string, opts ListOptions) (*PaginatedResponse[SearchResult], error)

	ListLabels(ctx context.Context, pageID string, opts ListOptions) (*PaginatedResponse[Label], error)
	AddLabel(ctx context.Context, pageID, name string) (*Label, error)
	RemoveLabel(ctx context.Context, pageID, name string) error
}

// SpaceIDCacheTTL bounds how long a space key to id mapping is trusted.
const SpaceIDCacheTTL = 10 * time.Minute

// Client is the adapter. The surface is chosen once in New and never mixed.
type Client struct {
	Service

	version config.APIVersion
	t       *transport
	spaces  *infra.Cache[string]
}

// Option configures New.
type Option func(*settings)

type settings struct {
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	spaceCache *infra.Cache[string]
	baseOpts   []base.ClientOption
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock replaces time.Now for revision comments.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithSpaceCache sets the cache used for space key lookups on the typed surface.
func WithSpaceCache(c *infra.Cache[string]) Option {
	return func(s *settings) { s.spaceCache = c }
}

// WithBaseOptions passes options through to the shared HTTP client.
func WithBaseOptions(opts ...base.ClientOption) Option {
	return func(s *settings) { s.baseOpts = append(s.baseOpts, opts...) }
}

// New builds the adapter from validated configuration. It performs no I/O;
// call VerifyConnection to check reachability and credentials.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &settings{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient = base.NewHTTPClient(cfg.Client.Timeout)
	}

	baseOpts := []base.ClientOption{
		base.WithHTTPClient(s.httpClient),
		base.WithLogger(s.logger),
		base.WithCredentials(cfg.Confluence.Email, cfg.Confluence.APIToken),
		base.WithUserAgent(cfg.Client.UserAgent),
		base.WithMaxConcurrent(cfg.Client.MaxConcurrent),
		base.WithMaxRetry(cfg.Client.MaxRetries + 1),
	}

	t := &transport{
		http:    base.NewClient(append(baseOpts, s.baseOpts...)...),
		siteURL: cfg.BaseURL(),
		surface: string(cfg.Version()),
		logger:  s.logger,
		now:     s.now,
	}

	c := &Client{version: cfg.Version(), t: t}
	switch cfg.Version() {
	case config.APIv1:
		t.apiBase = t.siteURL + legacyAPIPath
		t.headers = map[string]string{"X-Atlassian-Token": "no-check"}
		c.Service = &legacyService{t: t}
	case config.APIv2:
		t.apiBase = t.siteURL + typedAPIPath
		c.spaces = s.spaceCache
		if c.spaces == nil {
			c.spaces = infra.NewCache[string](infra.DefaultMaxCacheEntries)
			c.spaces.SetHooks(infra.CacheHooks{
				OnAccess: metrics.RecordCacheAccess,
				OnEvict:  metrics.RecordCacheEvictions,
			})
		}
		c.Service = &typedService{t: t, spaces: c.spaces}
	default:
		return nil, fmt.Errorf("unsupported API version %q", cfg.Version())
	}

	return c, nil
}

// Version returns the API surface this client talks to.
func (c *Client) Version() config.APIVersion {
	return c.version
}

// SiteURL returns the Confluence site root.
func (c *Client) SiteURL() string {
	return c.t.siteURL
}

// CircuitState reports the upstream circuit breaker state.
func (c *Client) CircuitState() string {
	return c.t.http.CircuitBreakerStats().State
}

// Close releases resources held by the client
func (c *Client) Close() {
	if c.spaces != nil {
		c.spaces.Close()
	}
}
