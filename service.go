// Package heritage assembles the unit converter: the dataset loader, the
// conversion engine, the language preference store and the localized
// presentation of results.
package heritage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/pitabwire/util"

	"github.com/pitabwire/heritage/config"
	"github.com/pitabwire/heritage/converter"
	"github.com/pitabwire/heritage/dataset"
	"github.com/pitabwire/heritage/lang"
	"github.com/pitabwire/heritage/localization"
	"github.com/pitabwire/heritage/preference"
	"github.com/pitabwire/heritage/telemetry"
	"github.com/pitabwire/heritage/units"
)

type contextKey string

func (c contextKey) String() string {
	return "heritage/" + string(c)
}

const ctxKeyService = contextKey("serviceKey")

// Service holds together the converter components for the lifetime of the
// application.
type Service struct {
	configuration *config.ConfigurationDefault
	logger        *util.LogEntry
	logOpts       []util.Option
	telemetry     *telemetry.Manager
	client        *http.Client
	fetch         dataset.FetchFunc
	slot          preference.Slot
	feed          preference.ChangeFeed
	store         *preference.Store
	catalog       *localization.Catalog
	localizer     *localization.Localizer

	dataMu sync.RWMutex
	data   units.ConversionData

	setupErrs  []error
	cleanupMu  sync.Mutex
	cleanups   []func(ctx context.Context) error
	closeOnce  sync.Once
	closeError error
}

type Option func(ctx context.Context, service *Service)

// Outcome is a conversion result ready for display.
type Outcome struct {
	Value float64
	Err   error
	// Text is the localized result sentence or error message.
	Text string
}

// NewService builds a Service. Components not supplied through options are
// created from the configuration, which is read from the environment when
// WithConfig is not given. The returned context carries the service, its
// configuration and its logger.
func NewService(ctx context.Context, opts ...Option) (context.Context, *Service, error) {
	s := &Service{}

	for _, opt := range opts {
		opt(ctx, s)
	}

	if s.configuration == nil {
		cfg, err := config.FromEnv[config.ConfigurationDefault]()
		if err != nil {
			s.setupErrs = append(s.setupErrs, err)
		}
		s.configuration = &cfg
	}
	if s.telemetry == nil && !s.configuration.DisableOpenTelemetry() {
		WithTelemetry()(ctx, s)
	}
	if s.logger == nil {
		WithLogger()(ctx, s)
	}
	ctx = util.ContextWithLogger(ctx, s.logger)

	s.setup(ctx)

	if err := errors.Join(s.setupErrs...); err != nil {
		_ = s.Close(ctx)
		return ctx, nil, err
	}

	ctx = SvcToContext(ctx, s)
	ctx = config.ToContext(ctx, s.configuration)
	return ctx, s, nil
}

func (s *Service) setup(ctx context.Context) {
	cfg := s.configuration

	if s.client == nil {
		WithHTTPClient()(ctx, s)
	}
	if s.fetch == nil {
		s.fetch = dataset.HTTPFetch(s.client)
	}

	if s.store == nil {
		if s.slot == nil {
			raw, err := OpenCache(ctx, cfg.GetPreferenceStoreURI())
			if err != nil {
				s.setupErrs = append(s.setupErrs, err)
				return
			}
			s.AddCleanupMethod(func(context.Context) error { return raw.Close() })
			s.slot = preference.NewCacheSlot(raw, cfg.GetPreferenceKey())
		}

		if s.feed == nil {
			s.feed = preference.NoopFeed{}
			if eventsURL := strings.TrimSpace(cfg.GetPreferenceEventsURL()); eventsURL != "" {
				feed, err := preference.NewPubSubFeed(ctx, eventsURL)
				if err != nil {
					s.setupErrs = append(s.setupErrs, err)
					return
				}
				s.AddCleanupMethod(feed.Close)
				s.feed = feed
			}
		}

		s.store = preference.NewStore(s.slot, preference.WithChangeFeed(s.feed))
	}

	if s.catalog == nil {
		catalog, err := localization.NewCatalog(
			localization.WithTranslationsFolder(cfg.GetTranslationsFolder()))
		if err != nil {
			s.setupErrs = append(s.setupErrs, err)
			return
		}
		s.catalog = catalog
	}
	s.localizer = localization.NewLocalizer(s.catalog, s.store)
}

// SvcToContext pushes a service instance into the supplied context for easier propagation.
func SvcToContext(ctx context.Context, service *Service) context.Context {
	return context.WithValue(ctx, ctxKeyService, service)
}

// Svc obtains a service instance being propagated through the context.
func Svc(ctx context.Context) *Service {
	service, ok := ctx.Value(ctxKeyService).(*Service)
	if !ok {
		return nil
	}
	return service
}

// Load fetches the conversion table once and keeps it for the session. A
// failed load leaves any previously loaded table in place; callers retry by
// calling Load again.
func (s *Service) Load(ctx context.Context) error {
	cfg := s.configuration
	if timeout := cfg.GetDatasetTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := dataset.Load(ctx, s.fetch,
		dataset.WithBaseURL(cfg.GetDatasetBaseURL()),
		dataset.WithPath(cfg.GetDatasetPath()),
		dataset.WithStrict(cfg.IsDatasetStrict()),
	)
	if err != nil {
		return err
	}

	s.dataMu.Lock()
	s.data = data
	s.dataMu.Unlock()
	return nil
}

// Data returns the loaded table, nil before a successful Load.
func (s *Service) Data() units.ConversionData {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.data
}

// Convert runs the conversion engine against the loaded table and renders
// the outcome in the current language.
func (s *Service) Convert(category, fromUnit, toUnit, rawInput string) Outcome {
	return s.convertIn(s.store.Current(), s.Data(), category, fromUnit, toUnit, rawInput)
}

func (s *Service) convertIn(
	language lang.Language,
	data units.ConversionData,
	category, fromUnit, toUnit, rawInput string,
) Outcome {
	value, err := converter.Convert(category, fromUnit, toUnit, rawInput, language, data)
	if err != nil {
		return Outcome{Err: err, Text: s.catalog.ErrorText(language, err)}
	}
	return Outcome{
		Value: value,
		Text:  s.catalog.Result(language, strings.TrimSpace(rawInput), fromUnit, toUnit, value),
	}
}

// Init bootstraps the preference store; see preference.Store.Init.
func (s *Service) Init(ctx context.Context, onReady func()) (func(), error) {
	return s.store.Init(ctx, onReady)
}

// Language is the active interface language.
func (s *Service) Language() lang.Language {
	return s.store.Current()
}

func (s *Service) Config() *config.ConfigurationDefault {
	return s.configuration
}

func (s *Service) Store() *preference.Store {
	return s.store
}

func (s *Service) Catalog() *localization.Catalog {
	return s.catalog
}

func (s *Service) Localizer() *localization.Localizer {
	return s.localizer
}

// Telemetry is nil when OpenTelemetry is disabled.
func (s *Service) Telemetry() *telemetry.Manager {
	return s.telemetry
}

func (s *Service) HTTPClient() *http.Client {
	return s.client
}

// Log returns the service logger bound to ctx.
func (s *Service) Log(ctx context.Context) *util.LogEntry {
	return s.logger.WithContext(ctx)
}

// AddCleanupMethod registers f to run on Close, latest first.
func (s *Service) AddCleanupMethod(f func(ctx context.Context) error) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanups = append(s.cleanups, f)
}

// Close releases the resources the service opened itself.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cleanupMu.Lock()
		cleanups := s.cleanups
		s.cleanups = nil
		s.cleanupMu.Unlock()

		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeError = errors.Join(errs...)
	})
	return s.closeError
}
