// Package config loads the Confluence connection settings from an optional YAML
// file overlaid by CONFLUENCE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing default file is
// not an error.
const DefaultPath = "confluence-mcp.yaml"

// APIVersion selects which Confluence REST surface the adapter talks to.
type APIVersion string

const (
	// APIv1 is the legacy content API under /wiki/rest/api.
	APIv1 APIVersion = "v1"
	// APIv2 is the typed pages/spaces API under /wiki/api/v2.
	APIv2 APIVersion = "v2"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvDomain        = "CONFLUENCE_DOMAIN"
	EnvEmail         = "CONFLUENCE_EMAIL"
	EnvAPIToken      = "CONFLUENCE_API_TOKEN"
	EnvAPIVersion    = "CONFLUENCE_API_VERSION"
	EnvTimeout       = "CONFLUENCE_TIMEOUT"
	EnvMaxRetries    = "CONFLUENCE_MAX_RETRIES"
	EnvMaxConcurrent = "CONFLUENCE_MAX_CONCURRENT"
	EnvUserAgent     = "CONFLUENCE_USER_AGENT"
)

type Config struct {
	Confluence ConfluenceConfig `yaml:"confluence"`
	Client     ClientConfig     `yaml:"client"`
}

type ConfluenceConfig struct {
	Domain     string     `yaml:"domain"`
	Email      string     `yaml:"email"`
	APIToken   string     `yaml:"api_token"`
	APIVersion APIVersion `yaml:"api_version,omitempty"`
}

type ClientConfig struct {
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	MaxConcurrent int           `yaml:"max_concurrent,omitempty"`
	UserAgent     string        `yaml:"user_agent,omitempty"`
}

// Default returns a config with every optional field set.
func Default() *Config {
	return &Config{
		Confluence: ConfluenceConfig{APIVersion: APIv1},
		Client: ClientConfig{
			Timeout:       30 * time.Second,
			MaxRetries:    3,
			MaxConcurrent: 5,
		},
	}
}

// Read parses the YAML file at path on top of Default. An empty path reads
// DefaultPath if it exists.
func Read(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Load reads the config file, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables present in lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvDomain:    &c.Confluence.Domain,
		EnvEmail:     &c.Confluence.Email,
		EnvAPIToken:  &c.Confluence.APIToken,
		EnvUserAgent: &c.Client.UserAgent,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(EnvAPIVersion); ok && v != "" {
		c.Confluence.APIVersion = APIVersion(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Client.Timeout = d
	}
	ints := map[string]*int{
		EnvMaxRetries:    &c.Client.MaxRetries,
		EnvMaxConcurrent: &c.Client.MaxConcurrent,
	}
	for name, dst := range ints {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}
	return nil
}

// Validate reports the first malformed or missing setting.
func (c *Config) Validate() error {
	if c.Confluence.Domain == "" {
		return fmt.Errorf("confluence.domain is required")
	}
	if c.Confluence.Email == "" {
		return fmt.Errorf("confluence.email is required")
	}
	if c.Confluence.APIToken == "" {
		return fmt.Errorf("confluence.api_token is required")
	}
	if _, err := c.parseBaseURL(); err != nil {
		return err
	}
	switch c.Confluence.APIVersion {
	case "", APIv1, APIv2:
	default:
		return fmt.Errorf("confluence.api_version must be v1 or v2, got %q", c.Confluence.APIVersion)
	}
	if c.Client.Timeout < 0 {
		return fmt.Errorf("client.timeout must not be negative")
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("client.max_retries must not be negative")
	}
	if c.Client.MaxConcurrent < 0 {
		return fmt.Errorf("client.max_concurrent must not be negative")
	}
	return nil
}

// Version returns the configured API surface, defaulting to v1.
func (c *Config) Version() APIVersion {
	if c.Confluence.APIVersion == "" {
		return APIv1
	}
	return c.Confluence.APIVersion
}

// BaseURL returns the site root, e.g. https://example.atlassian.net. A domain
// that already carries a scheme is used as given.
func (c *Config) BaseURL() string {
	u, err := c.parseBaseURL()
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (c *Config) parseBaseURL() (*url.URL, error) {
	raw := strings.TrimRight(strings.TrimSpace(c.Confluence.Domain), "/")
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("confluence.domain is not a valid host: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("confluence.domain has unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("confluence.domain %q has no host", c.Confluence.Domain)
	}
	if u.Path != "" && u.Path != "/wiki" {
		return nil, fmt.Errorf("confluence.domain %q must not contain a path", c.Confluence.Domain)
	}
	return u, nil
}

// Set assigns a field by its dotted YAML path, as used by `configure --set`.
func (c *Config) Set(key, value string) error {
	switch key {
	case "confluence.domain":
		c.Confluence.Domain = value
	case "confluence.email":
		c.Confluence.Email = value
	case "confluence.api_token":
		c.Confluence.APIToken = value
	case "confluence.api_version":
		c.Confluence.APIVersion = APIVersion(strings.ToLower(value))
	case "client.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		c.Client.Timeout = d
	case "client.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Client.MaxRetries = n
	case "client.max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Client.MaxConcurrent = n
	case "client.user_agent":
		c.Client.UserAgent = value
	default:
		return fmt.Errorf("unsupported key '%s'", key)
	}
	return nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
