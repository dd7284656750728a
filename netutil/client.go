package netutil

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

var errBodyNotReplayable = errors.New("request body cannot be replayed for retry")

// ClientOption configures NewHTTPClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	base       http.RoundTripper
}

// WithTimeout bounds each request including retries.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// WithRetries sets the retry count and initial backoff.
func WithRetries(n int, initial time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.maxRetries = n
		c.backoff = initial
	}
}

// WithClientLogger sets the logger used for retry records.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = l }
}

// WithBaseTransport replaces the TLS transport under the retry layer.
func WithBaseTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientConfig) { c.base = rt }
}

// NewHTTPClient returns the client used to talk to package registries:
// TLS 1.2 or newer, wrapped in a RetryTransport.
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := clientConfig{timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}

	base := cfg.base
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = TLSConfig()
		base = transport
	}

	return &http.Client{
		Timeout: cfg.timeout,
		Transport: &RetryTransport{
			Base:           base,
			Logger:         cfg.logger,
			MaxRetries:     cfg.maxRetries,
			InitialBackoff: cfg.backoff,
		},
	}
}

// TLSConfig requires TLS 1.2 with AEAD cipher suites.
func TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
	}
}
