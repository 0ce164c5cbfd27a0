// Package server hosts a conversion table over HTTP at the path the dataset
// loader fetches from.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pitabwire/heritage/dataset"
	"github.com/pitabwire/heritage/units"
)

const (
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second
	// DefaultReadHeaderTimeout is the timeout for reading request headers to prevent Slowloris attacks.
	DefaultReadHeaderTimeout = 5 * time.Second

	tintAttrCodeStatus   = 10
	tintAttrCodeDuration = 214
)

// Server manages the dataset server lifecycle.
type Server struct {
	path    string
	limiter *ClientLimiter

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan error
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit throttles each client address to cfg.
func WithRateLimit(cfg LimitConfig) Option {
	return func(s *Server) {
		s.limiter = NewClientLimiter(cfg)
	}
}

// NewServer serves tables at path, dataset.DefaultPath when empty.
func NewServer(path string, opts ...Option) *Server {
	if path == "" {
		path = dataset.DefaultPath
	}
	s := &Server{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler routes the table path and answers 404 elsewhere.
func (s *Server) Handler(data units.ConversionData) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, dataset.Handler(data))
	return otelhttp.NewHandler(accessLog(s.limiter.middleware(mux)), "heritage.dataset")
}

// Start listens on addr and serves data in the background.
func (s *Server) Start(ctx context.Context, addr string, data units.ConversionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	log := util.Log(ctx)
	s.listener = listener
	s.done = make(chan error, 1)
	s.server = &http.Server{
		Handler:           s.Handler(data),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	log.WithField("addr", listener.Addr().String()).WithField("path", s.path).Info("serving conversion data")

	srv, done := s.server, s.done
	go func() {
		err := srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("dataset server failed")
			done <- err
		}
		close(done)
	}()
	return nil
}

// Addr is the bound address, useful when started on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done reports a serve failure, and is closed when the server stops.
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	log := util.Log(ctx)
	log.Info("stopping dataset server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to shutdown dataset server")
		return err
	}
	return nil
}

// IsRunning returns true if the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log := util.Log(r.Context()).
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			With(
				tint.Attr(tintAttrCodeStatus, slog.Int("status", rec.status)),
				tint.Attr(tintAttrCodeDuration, slog.Any("duration", time.Since(start).String())),
			)
		defer log.Release()

		if rec.status >= http.StatusInternalServerError {
			log.Warn("dataset request failed")
			return
		}
		log.Debug("dataset request served")
	})
}
