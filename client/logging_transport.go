package client

import (
	"net/http"
	"strings"
	"time"

	"github.com/pitabwire/util"
)

// sensitiveHeaders are logged as "***" even when header logging is on.
//
//nolint:gochecknoglobals // read-only lookup table
var sensitiveHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
	"Set-Cookie":          true,
}

// LoggingTransportOption configures the logging HTTP transport.
type LoggingTransportOption func(*loggingTransport)

// loggingTransport writes one line when a request leaves and one when it
// completes or fails.
type loggingTransport struct {
	next       http.RoundTripper
	logSend    bool
	logHeaders bool
}

// NewLoggingTransport wraps next, http.DefaultTransport when nil.
func NewLoggingTransport(next http.RoundTripper, opts ...LoggingTransportOption) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	t := &loggingTransport{next: next, logSend: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithTransportLogRequests toggles the line written before sending.
func WithTransportLogRequests(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logSend = enabled
	}
}

// WithTransportLogHeaders adds request and response headers, credentials masked.
func WithTransportLogHeaders(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logHeaders = enabled
	}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	log := util.Log(req.Context()).
		WithField("method", req.Method).
		WithField("url", req.URL.Redacted())

	if t.logSend {
		sent := log
		if t.logHeaders {
			sent = sent.WithField("headers", maskHeaders(req.Header))
		}
		sent.Info("HTTP request sent")
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	log = log.WithField("duration", time.Since(start).String())

	if err != nil {
		log.WithError(err).Error("HTTP request failed")
		return resp, err
	}

	log = log.WithField("status", resp.StatusCode)
	if t.logHeaders {
		log = log.WithField("headers", maskHeaders(resp.Header))
	}
	log.Info("HTTP response received")
	return resp, nil
}

func maskHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if sensitiveHeaders[http.CanonicalHeaderKey(name)] {
			out[name] = "***"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
