package dataset

import "net/http"

// Option configures Load.
type Option func(*options)

type options struct {
	baseURL    string
	path       string
	strict     bool
	httpClient *http.Client
}

func newOptions(opts ...Option) *options {
	o := &options{path: DefaultPath}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithBaseURL sets the origin the resource path is resolved against.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithPath overrides DefaultPath.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithStrict rejects tables whose factors are not finite and positive.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithHTTPClient sets the client used when Load is given no FetchFunc.
func WithHTTPClient(cl *http.Client) Option {
	return func(o *options) {
		o.httpClient = cl
	}
}
