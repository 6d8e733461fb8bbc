// Package config loads megaphone client settings from YAML.
//
// A minimal file only names the service:
//
//	baseUrl: https://megaphone.example.com/read
//
// Durations are written as Go duration strings ("500ms", "1m").
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/megaphone-protocol/megaphone-go/pkg/client"
	"github.com/megaphone-protocol/megaphone-go/pkg/connection"
	"github.com/megaphone-protocol/megaphone-go/pkg/discovery"
	"github.com/megaphone-protocol/megaphone-go/pkg/log"
	"github.com/megaphone-protocol/megaphone-go/pkg/recency"
	"github.com/megaphone-protocol/megaphone-go/pkg/transport"
)

// Config holds client settings.
type Config struct {
	// BaseURL is the long-poll root. Required unless discovery is enabled.
	BaseURL string `yaml:"baseUrl"`

	RecencyCacheCapacity int               `yaml:"recencyCacheCapacity"`
	ReadBufferSize       int               `yaml:"readBufferSize"`
	Headers              map[string]string `yaml:"headers,omitempty"`

	TLS       TLSConfig       `yaml:"tls"`
	Retry     RetryConfig     `yaml:"retry"`
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`

	// TraceLog is the path of a trace file to write ("" disables tracing).
	TraceLog string `yaml:"traceLog,omitempty"`
}

// RetryConfig configures reconnects after a failed long poll. When
// disabled, the first failure terminates the reader.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      float64       `yaml:"jitter"`
}

// TLSConfig configures HTTPS long polls. Paths point to PEM files.
type TLSConfig struct {
	CAFile             string `yaml:"caFile,omitempty"`
	CertFile           string `yaml:"certFile,omitempty"`
	KeyFile            string `yaml:"keyFile,omitempty"`
	ServerName         string `yaml:"serverName,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify,omitempty"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// DiscoveryConfig configures mDNS lookup of the base URL.
type DiscoveryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Service   string        `yaml:"service"`
	Instance  string        `yaml:"instance,omitempty"`
	Interface string        `yaml:"interface,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Error describes a configuration problem.
type Error struct {
	// File is the path of the config file ("" when parsed from bytes).
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File != "" {
		return e.File + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Default returns the default settings.
func Default() *Config {
	backoff := connection.DefaultBackoffConfig()
	return &Config{
		RecencyCacheCapacity: recency.DefaultCapacity,
		ReadBufferSize:       transport.DefaultReadBufferSize,
		Retry: RetryConfig{
			Initial:    backoff.Initial,
			Max:        backoff.Max,
			Multiplier: backoff.Multiplier,
			Jitter:     backoff.Jitter,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Discovery: DiscoveryConfig{
			Service: discovery.ServiceType,
			Timeout: discovery.DefaultBrowseTimeout,
		},
	}
}

// Parse reads YAML settings over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads YAML settings over the defaults without validating them, for
// callers that apply overrides first.
func Decode(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Message: "failed to parse YAML", Cause: err}
	}
	return cfg, nil
}

// Load reads and validates settings from a file.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, withFile(err, path)
	}
	return cfg, nil
}

// Read reads settings from a file without validating them.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Decode(data)
	if err != nil {
		return nil, withFile(err, path)
	}
	return cfg, nil
}

func withFile(err error, path string) error {
	var ce *Error
	if errors.As(err, &ce) {
		ce.File = path
		return ce
	}
	return &Error{File: path, Message: err.Error()}
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	if c.BaseURL == "" && !c.Discovery.Enabled {
		return &Error{Message: "baseUrl is required unless discovery is enabled"}
	}
	if c.BaseURL != "" {
		if _, err := transport.ParseBaseURL(c.BaseURL); err != nil {
			return &Error{Message: "invalid baseUrl", Cause: err}
		}
	}
	if c.RecencyCacheCapacity < 0 {
		return &Error{Message: fmt.Sprintf("recencyCacheCapacity must not be negative, got %d", c.RecencyCacheCapacity)}
	}
	if c.ReadBufferSize < 0 {
		return &Error{Message: fmt.Sprintf("readBufferSize must not be negative, got %d", c.ReadBufferSize)}
	}
	if c.Retry.MaxAttempts < 0 {
		return &Error{Message: "retry.maxAttempts must not be negative"}
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return &Error{Message: fmt.Sprintf("retry.jitter must be within [0, 1], got %g", c.Retry.Jitter)}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return &Error{Message: "invalid log.level", Cause: err}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &Error{Message: fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format)}
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return &Error{Message: "tls.certFile and tls.keyFile must be set together"}
	}
	if c.Discovery.Enabled && c.Discovery.Timeout <= 0 {
		return &Error{Message: "discovery.timeout must be positive"}
	}
	return nil
}

// FailurePolicy returns the reader failure policy.
func (c *Config) FailurePolicy() connection.FailurePolicy {
	if !c.Retry.Enabled {
		return connection.Terminate
	}
	return connection.RetryWithBackoff{
		Backoff: connection.BackoffConfig{
			Initial:    c.Retry.Initial,
			Max:        c.Retry.Max,
			Multiplier: c.Retry.Multiplier,
			Jitter:     c.Retry.Jitter,
		},
		MaxAttempts: c.Retry.MaxAttempts,
	}
}

// SlogLevel returns the configured log level (info if unset or invalid).
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger creates the operational logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Header returns the configured request headers.
func (c *Config) Header() http.Header {
	if len(c.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// HTTPClient returns the HTTP client for long polls, or nil for the
// default client when no TLS setting is given.
func (c *Config) HTTPClient() (*http.Client, error) {
	tc := transport.TLSConfig{
		CAFile:             c.TLS.CAFile,
		CertFile:           c.TLS.CertFile,
		KeyFile:            c.TLS.KeyFile,
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	if tc.IsZero() {
		return nil, nil
	}
	hc, err := transport.NewHTTPClient(tc)
	if err != nil {
		return nil, &Error{Message: "invalid tls settings", Cause: err}
	}
	return hc, nil
}

// ClientConfig builds a client configuration. baseURL overrides BaseURL
// when non-empty (e.g. a discovered server).
func (c *Config) ClientConfig(baseURL string, logger *slog.Logger, trace log.Logger) (client.Config, error) {
	if baseURL == "" {
		baseURL = c.BaseURL
	}
	hc, err := c.HTTPClient()
	if err != nil {
		return client.Config{}, err
	}
	return client.Config{
		BaseURL:              baseURL,
		RecencyCacheCapacity: c.RecencyCacheCapacity,
		ReadBufferSize:       c.ReadBufferSize,
		HTTPClient:           hc,
		Header:               c.Header(),
		FailurePolicy:        c.FailurePolicy(),
		Logger:               logger,
		TraceLogger:          trace,
	}, nil
}

// BrowserConfig builds the mDNS browser configuration.
func (c *Config) BrowserConfig(logger *slog.Logger) discovery.BrowserConfig {
	return discovery.BrowserConfig{
		Service:   c.Discovery.Service,
		Interface: c.Discovery.Interface,
		Timeout:   c.Discovery.Timeout,
		Logger:    logger,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
