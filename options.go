package heritage

import (
	"context"
	"fmt"

	"github.com/pitabwire/util"

	"github.com/pitabwire/heritage/client"
	"github.com/pitabwire/heritage/config"
	"github.com/pitabwire/heritage/dataset"
	"github.com/pitabwire/heritage/localization"
	"github.com/pitabwire/heritage/preference"
	"github.com/pitabwire/heritage/telemetry"
	"github.com/pitabwire/heritage/version"
)

// WithConfig Option that helps to specify or override the configuration object of our service.
func WithConfig(cfg *config.ConfigurationDefault) Option {
	return func(ctx context.Context, s *Service) {
		s.configuration = cfg
		WithLogger()(ctx, s)
	}
}

// WithLogger Option that helps with initialization of our internal logger.
func WithLogger(opts ...util.Option) Option {
	return func(ctx context.Context, s *Service) {
		s.logOpts = opts
		if s.configuration != nil {
			cfg := s.configuration
			logLevel, err := util.ParseLevel(cfg.LoggingLevel())
			if err == nil {
				opts = append([]util.Option{util.WithLogLevel(logLevel)}, opts...)
			}
			base := []util.Option{
				util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
				util.WithLogNoColor(!cfg.LoggingColored()),
			}
			if cfg.LoggingShowStackTrace() {
				base = append(base, util.WithLogStackTrace())
			}
			opts = append(base, opts...)
		}

		if s.telemetry != nil && s.telemetry.LogHandler() != nil {
			opts = append(opts, util.WithLogHandler(s.telemetry.LogHandler()))
		}

		s.logger = util.NewLogger(ctx, opts...)
	}
}

// WithTelemetry installs the OpenTelemetry providers configured by the
// OTEL_* environment and routes the service logger through them.
func WithTelemetry(opts ...telemetry.Option) Option {
	return func(ctx context.Context, s *Service) {
		var cfg telemetry.Config
		if s.configuration != nil {
			cfg = s.configuration
		}

		opts = append([]telemetry.Option{
			telemetry.WithServiceName("heritage"),
			telemetry.WithServiceVersion(version.Version),
		}, opts...)

		manager := telemetry.NewManager(ctx, cfg, opts...)
		if err := manager.Init(ctx); err != nil {
			s.setupErrs = append(s.setupErrs, fmt.Errorf("initialise telemetry: %w", err))
			return
		}
		s.telemetry = manager
		s.AddCleanupMethod(manager.Shutdown)

		if s.logger != nil {
			WithLogger(s.logOpts...)(ctx, s)
		}
	}
}

// WithHTTPClient configures the HTTP client the dataset is fetched with.
func WithHTTPClient(opts ...client.HTTPOption) Option {
	return func(_ context.Context, s *Service) {
		if s.configuration != nil {
			if timeout := s.configuration.GetDatasetTimeout(); timeout > 0 {
				opts = append([]client.HTTPOption{client.WithHTTPTimeout(timeout)}, opts...)
			}
			if s.configuration.TraceReq() {
				opts = append(opts, client.WithHTTPTraceRequests())
			}
		}
		s.client = client.NewHTTPClient(opts...)
	}
}

// WithFetch replaces the network fetch used by Load.
func WithFetch(fetch dataset.FetchFunc) Option {
	return func(_ context.Context, s *Service) {
		s.fetch = fetch
	}
}

// WithSlot sets the durable storage for the language preference.
func WithSlot(slot preference.Slot) Option {
	return func(_ context.Context, s *Service) {
		s.slot = slot
	}
}

// WithChangeFeed sets how preference changes are exchanged with other contexts.
func WithChangeFeed(feed preference.ChangeFeed) Option {
	return func(_ context.Context, s *Service) {
		s.feed = feed
	}
}

// WithStore supplies a ready preference store; slot and feed options are
// then ignored.
func WithStore(store *preference.Store) Option {
	return func(_ context.Context, s *Service) {
		s.store = store
	}
}

// WithCatalog supplies the message catalog.
func WithCatalog(catalog *localization.Catalog) Option {
	return func(_ context.Context, s *Service) {
		s.catalog = catalog
	}
}
