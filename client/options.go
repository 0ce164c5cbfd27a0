// Package client builds the HTTP client the conversion table is fetched with.
package client

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultIdleTimeout = 90 * time.Second
)

// HTTPOption adjusts the client built by NewHTTPClient.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	timeout     time.Duration
	idleTimeout time.Duration
	transport   http.RoundTripper

	logRequests bool
	logHeaders  bool
}

func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(c *httpConfig) { c.timeout = timeout }
}

// WithHTTPTransport replaces the instrumented default transport.
func WithHTTPTransport(transport http.RoundTripper) HTTPOption {
	return func(c *httpConfig) { c.transport = transport }
}

// WithHTTPIdleTimeout only applies to the default transport.
func WithHTTPIdleTimeout(timeout time.Duration) HTTPOption {
	return func(c *httpConfig) { c.idleTimeout = timeout }
}

// WithHTTPTraceRequests logs each request and its response at debug level.
func WithHTTPTraceRequests() HTTPOption {
	return func(c *httpConfig) { c.logRequests = true }
}

// WithHTTPTraceRequestHeaders adds masked request headers to those logs.
func WithHTTPTraceRequestHeaders() HTTPOption {
	return func(c *httpConfig) { c.logHeaders = true }
}

// NewHTTPClient returns a client whose default transport is a clone of
// http.DefaultTransport wrapped by otelhttp.
func NewHTTPClient(opts ...HTTPOption) *http.Client {
	cfg := httpConfig{timeout: defaultTimeout, idleTimeout: defaultIdleTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := cfg.transport
	if rt == nil {
		base := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib guarantees the type
		if cfg.idleTimeout > 0 {
			base.IdleConnTimeout = cfg.idleTimeout
		}
		rt = otelhttp.NewTransport(base)
	}
	if cfg.logRequests {
		rt = NewLoggingTransport(rt, WithTransportLogHeaders(cfg.logHeaders))
	}

	return &http.Client{Transport: rt, Timeout: cfg.timeout}
}
