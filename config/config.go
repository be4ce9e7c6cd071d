package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"

	"github.com/netopsio/netopsgql/client"
	"github.com/netopsio/netopsgql/subscription"
)

// DefaultFilenames are searched, in order, by FindConfigFile.
var DefaultFilenames = []string{".netops.yml", "netops.yml", ".netops.yaml", "netops.yaml"}

// Config represents the netops config file
type Config struct {
	Endpoint      EndpointConfig      `yaml:"endpoint"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions,omitempty"`
	HTTP          HTTPConfig          `yaml:"http,omitempty"`
	Retry         RetryConfig         `yaml:"retry,omitempty"`
	Log           LogConfig           `yaml:"log,omitempty"`
	// Schema lists local SDL files, globs allowed, used instead of
	// introspection when checking documents.
	Schema []string `yaml:"schema,omitempty"`
}

// EndpointConfig are the allowed options for the 'endpoint' config
type EndpointConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Token   string            `yaml:"token,omitempty"`
}

type SubscriptionsConfig struct {
	// URL defaults to the endpoint URL with a ws or wss scheme.
	URL       string   `yaml:"url,omitempty"`
	KeepAlive Duration `yaml:"keep_alive,omitempty"`
}

type HTTPConfig struct {
	Timeout Duration `yaml:"timeout,omitempty"`
}

type RetryConfig struct {
	// MaxRetries of 0 disables retries; unset uses the client default.
	MaxRetries *int     `yaml:"max_retries,omitempty"`
	BaseDelay  Duration `yaml:"base_delay,omitempty"`
	MaxDelay   Duration `yaml:"max_delay,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Duration accepts Go duration strings such as 250ms or 1m30s.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultLogLevel    = "info"
	defaultLogFormat   = "json"
)

// Load reads filename, expands environment variables and rejects unknown keys.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}

	var cfg Config
	confContent := []byte(os.ExpandEnv(string(b)))
	if err := yaml.UnmarshalWithOptions(confContent, &cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ForEndpoint builds a config for endpoint with every other value defaulted.
func ForEndpoint(endpoint string) (*Config, error) {
	cfg := &Config{Endpoint: EndpointConfig{URL: endpoint}}
	if err := cfg.Init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init fills defaults and validates the config.
func (c *Config) Init() error {
	if c.Endpoint.URL == "" {
		return errors.New("'endpoint.url' is required")
	}
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("'endpoint.url' must be an absolute http(s) URL, got %q", c.Endpoint.URL)
	}

	if c.Subscriptions.URL == "" {
		c.Subscriptions.URL = c.Endpoint.URL
	}
	wsURL, err := subscription.WebSocketURL(c.Subscriptions.URL)
	if err != nil {
		return fmt.Errorf("'subscriptions.url': %w", err)
	}
	c.Subscriptions.URL = wsURL

	if c.HTTP.Timeout.Duration == 0 {
		c.HTTP.Timeout.Duration = defaultHTTPTimeout
	}
	if c.HTTP.Timeout.Duration < 0 {
		return fmt.Errorf("'http.timeout' must be positive, got %s", c.HTTP.Timeout)
	}

	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		return fmt.Errorf("'retry.max_retries' must not be negative, got %d", *c.Retry.MaxRetries)
	}
	if c.Retry.MaxDelay.Duration > 0 && c.Retry.BaseDelay.Duration > c.Retry.MaxDelay.Duration {
		return fmt.Errorf("'retry.base_delay' %s exceeds 'retry.max_delay' %s", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("'log.level': %w", err)
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("'log.format' must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// Logger returns a logrus logger writing to out at the configured level.
func (c *Config) Logger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if c.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	return logger
}

// HTTPClient returns a client that adds the configured headers to every request.
func (c *Config) HTTPClient() *http.Client {
	header := c.header()
	return &http.Client{
		Timeout: c.HTTP.Timeout.Duration,
		Transport: TransportAppend(http.DefaultTransport, NewHeaderTransport(func(context.Context) http.Header {
			return header
		})),
	}
}

func (c *Config) header() http.Header {
	header := make(http.Header, len(c.Endpoint.Headers))
	for key, value := range c.Endpoint.Headers {
		header.Set(key, value)
	}
	return header
}

// ClientOptions wires the HTTP client, bearer token, retry policy and logger.
func (c *Config) ClientOptions(logger *logrus.Logger) []client.Option {
	options := []client.Option{
		client.WithHTTPClient(c.HTTPClient()),
		client.WithLogger(logger),
		client.WithInterceptors(client.RequestIDInterceptor()),
	}
	if c.Endpoint.Token != "" {
		options = append(options, client.WithInterceptors(client.BearerTokenInterceptor(c.Endpoint.Token)))
	}

	if c.Retry.MaxRetries == nil || *c.Retry.MaxRetries > 0 {
		retry := client.DefaultRetryConfig()
		if c.Retry.MaxRetries != nil {
			retry.MaxRetries = *c.Retry.MaxRetries
		}
		if c.Retry.BaseDelay.Duration > 0 {
			retry.BaseDelay = c.Retry.BaseDelay.Duration
		}
		if c.Retry.MaxDelay.Duration > 0 {
			retry.MaxDelay = c.Retry.MaxDelay.Duration
		}
		options = append(options, client.WithRetry(retry))
	}

	return options
}

// SubscriptionOptions carries the headers and token over to the websocket
// handshake and connection_init payload.
func (c *Config) SubscriptionOptions(logger *logrus.Logger) subscription.Options {
	opts := subscription.Options{
		Header:    c.header(),
		KeepAlive: c.Subscriptions.KeepAlive.Duration,
		Logger:    logger,
	}
	if c.Endpoint.Token != "" {
		opts.Header.Set("Authorization", "Bearer "+c.Endpoint.Token)
		opts.InitPayload = map[string]any{"authToken": c.Endpoint.Token}
	}
	return opts
}

// Redacted returns a copy safe to print, with the token and header values masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Endpoint.Token != "" {
		out.Endpoint.Token = "***"
	}
	if len(c.Endpoint.Headers) > 0 {
		out.Endpoint.Headers = make(map[string]string, len(c.Endpoint.Headers))
		for key, value := range c.Endpoint.Headers {
			if strings.EqualFold(key, "Authorization") || strings.Contains(strings.ToLower(key), "key") {
				value = "***"
			}
			out.Endpoint.Headers[key] = value
		}
	}
	return out
}
