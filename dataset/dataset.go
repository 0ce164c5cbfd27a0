// Package dataset fetches the category/unit factor table from its HTTP resource.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/heritage/client"
	"github.com/pitabwire/heritage/telemetry"
	"github.com/pitabwire/heritage/units"
)

// DefaultPath is where the table is served relative to the base URL.
const DefaultPath = "/api/conversion-data.json"

// FetchFunc issues a GET for url. Tests inject their own; the default uses
// the instrumented client from the client package.
type FetchFunc func(ctx context.Context, url string) (*http.Response, error)

// LoadError is returned for every failure to obtain the table.
type LoadError struct {
	// Reason is the response status text when the server answered with a
	// non-success status.
	Reason string
	Cause  error
}

func (e *LoadError) Error() string {
	switch {
	case e.Reason != "":
		return "failed to load conversion data: failed to fetch: " + e.Reason
	case e.Cause != nil:
		return "failed to load conversion data: " + e.Cause.Error()
	default:
		return "failed to load conversion data"
	}
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

//nolint:gochecknoglobals // package scoped tracer
var tracer = telemetry.NewTracer("heritage/dataset")

// Load fetches and decodes the table. Each call makes exactly one request;
// nothing is cached and nothing is retried. A nil fetch uses the default HTTP
// client.
func Load(ctx context.Context, fetch FetchFunc, opts ...Option) (units.ConversionData, error) {
	o := newOptions(opts...)
	if fetch == nil {
		fetch = HTTPFetch(o.httpClient)
	}

	target, err := o.resourceURL()
	if err != nil {
		return nil, &LoadError{Cause: err}
	}

	ctx, span := tracer.Start(ctx, "Load", trace.WithAttributes(attribute.String("url", target)))
	data, err := load(ctx, fetch, target, o.strict)
	tracer.End(ctx, span, err)

	log := util.Log(ctx).WithField("url", target)
	if err != nil {
		log.WithError(err).Error("could not load conversion data")
		return nil, err
	}

	for _, c := range data.Collisions() {
		log.WithField("category", c.Category).WithField("unit", c.Unit).
			Warn("unit key is both historical and modern, lookups resolve it as historical")
	}
	log.WithField("categories", len(data)).Debug("conversion data loaded")
	return data, nil
}

func load(ctx context.Context, fetch FetchFunc, target string, strict bool) (units.ConversionData, error) {
	resp, err := fetch(ctx, target)
	if err != nil {
		return nil, &LoadError{Cause: err}
	}
	if resp == nil || resp.Body == nil {
		return nil, &LoadError{Cause: errors.New("empty response")}
	}
	defer util.CloseAndLogOnError(ctx, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &LoadError{Reason: statusText(resp)}
	}

	var data units.ConversionData
	if err = json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &LoadError{Cause: fmt.Errorf("decode conversion data: %w", err)}
	}
	if data == nil {
		return nil, &LoadError{Cause: errors.New("conversion data is empty")}
	}

	if strict {
		if err = data.Validate(); err != nil {
			return nil, &LoadError{Cause: err}
		}
	}
	return data, nil
}

// statusText returns the reason phrase of resp, e.g. "Not Found".
func statusText(resp *http.Response) string {
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if text := strings.TrimPrefix(resp.Status, prefix); text != "" && text != resp.Status {
		return text
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// HTTPFetch adapts an http.Client into a FetchFunc. A nil client gets the
// instrumented default.
func HTTPFetch(cl *http.Client) FetchFunc {
	if cl == nil {
		cl = client.NewHTTPClient()
	}
	return func(ctx context.Context, target string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return cl.Do(req)
	}
}

// ReadFile decodes a table stored on disk.
func ReadFile(path string) (units.ConversionData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data units.ConversionData
	if err = json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return data, nil
}

func (o *options) resourceURL() (string, error) {
	path := o.path
	if path == "" {
		path = DefaultPath
	}
	if o.baseURL == "" {
		return path, nil
	}

	base, err := url.Parse(o.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid dataset base url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid dataset path: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
