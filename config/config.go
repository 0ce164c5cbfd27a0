package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type contextKey string

func (c contextKey) String() string {
	return "heritage/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	defaultHTTPPort       = ":8080"
	fallbackPreferenceURI = "mem://"
	preferenceDBName      = "preferences.db"
)

// ToContext stores the service configuration for FromContext.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext returns the zero T when ctx carries no configuration of that type.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv parses T from the environment using its env and envDefault tags.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	LogShowStackTrace bool `envDefault:"false" env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	TraceRequests bool `envDefault:"false" env:"TRACE_REQUESTS" yaml:"trace_requests"`

	OpenTelemetryDisable    bool    `envDefault:"false" env:"OPENTELEMETRY_DISABLE"        yaml:"opentelemetry_disable"`
	OpenTelemetryTraceRatio float64 `envDefault:"0.1"   env:"OPENTELEMETRY_TRACE_ID_RATIO" yaml:"opentelemetry_trace_id_ratio"`

	HTTPServerPort string `envDefault:":8080" env:"HTTP_PORT" yaml:"http_server_port"`

	ServerRateLimit float64 `envDefault:"0"  env:"SERVER_RATE_LIMIT" yaml:"server_rate_limit"`
	ServerRateBurst int     `envDefault:"0"  env:"SERVER_RATE_BURST" yaml:"server_rate_burst"`

	BatchConcurrency int `envDefault:"0" env:"BATCH_CONCURRENCY" yaml:"batch_concurrency"`

	DatasetBaseURL string        `envDefault:"http://localhost:8080"     env:"DATASET_BASE_URL" yaml:"dataset_base_url"`
	DatasetPath    string        `envDefault:"/api/conversion-data.json" env:"DATASET_PATH"     yaml:"dataset_path"`
	DatasetTimeout time.Duration `envDefault:"30s"                       env:"DATASET_TIMEOUT"  yaml:"dataset_timeout"`
	DatasetStrict  bool          `envDefault:"false"                     env:"DATASET_STRICT"   yaml:"dataset_strict"`
	DatasetFile    string        `envDefault:""                          env:"DATASET_FILE"     yaml:"dataset_file"`

	PreferenceStoreURI  string `envDefault:""         env:"PREFERENCE_STORE_URI"  yaml:"preference_store_uri"`
	PreferenceKey       string `envDefault:"language" env:"PREFERENCE_KEY"        yaml:"preference_key"`
	PreferenceEventsURL string `envDefault:""         env:"PREFERENCE_EVENTS_URL" yaml:"preference_events_url"`

	TranslationsFolder string `envDefault:"" env:"TRANSLATIONS_FOLDER" yaml:"translations_folder"`
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationTraceRequests interface {
	TraceReq() bool
}

var _ ConfigurationTraceRequests = new(ConfigurationDefault)

func (c *ConfigurationDefault) TraceReq() bool {
	return c.TraceRequests
}

type ConfigurationTelemetry interface {
	DisableOpenTelemetry() bool
	SamplingRatio() float64
}

var _ ConfigurationTelemetry = new(ConfigurationDefault)

func (c *ConfigurationDefault) DisableOpenTelemetry() bool {
	return c.OpenTelemetryDisable
}

func (c *ConfigurationDefault) SamplingRatio() float64 {
	return c.OpenTelemetryTraceRatio
}

type ConfigurationPorts interface {
	HTTPPort() string
}

var _ ConfigurationPorts = new(ConfigurationDefault)

func (c *ConfigurationDefault) HTTPPort() string {
	if i, err := strconv.Atoi(c.HTTPServerPort); err == nil && i > 0 {
		return fmt.Sprintf(":%s", strings.TrimSpace(c.HTTPServerPort))
	}

	if strings.HasPrefix(c.HTTPServerPort, ":") || strings.Contains(c.HTTPServerPort, ":") {
		return c.HTTPServerPort
	}

	return defaultHTTPPort
}

type ConfigurationRateLimit interface {
	GetServerRateLimit() float64
	GetServerRateBurst() int
}

var _ ConfigurationRateLimit = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetServerRateLimit() float64 {
	return c.ServerRateLimit
}

func (c *ConfigurationDefault) GetServerRateBurst() int {
	return c.ServerRateBurst
}

type ConfigurationBatch interface {
	GetBatchConcurrency() int
}

var _ ConfigurationBatch = new(ConfigurationDefault)

// GetBatchConcurrency bounds concurrent batch conversions, one per CPU when unset.
func (c *ConfigurationDefault) GetBatchConcurrency() int {
	if c.BatchConcurrency > 0 {
		return c.BatchConcurrency
	}
	return runtime.NumCPU()
}

type ConfigurationDataset interface {
	GetDatasetBaseURL() string
	GetDatasetPath() string
	GetDatasetTimeout() time.Duration
	IsDatasetStrict() bool
	GetDatasetFile() string
}

var _ ConfigurationDataset = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetDatasetBaseURL() string {
	return c.DatasetBaseURL
}

func (c *ConfigurationDefault) GetDatasetPath() string {
	return c.DatasetPath
}

func (c *ConfigurationDefault) GetDatasetTimeout() time.Duration {
	return c.DatasetTimeout
}

func (c *ConfigurationDefault) IsDatasetStrict() bool {
	return c.DatasetStrict
}

func (c *ConfigurationDefault) GetDatasetFile() string {
	return c.DatasetFile
}

type ConfigurationPreference interface {
	GetPreferenceStoreURI() string
	GetPreferenceKey() string
	GetPreferenceEventsURL() string
}

var _ ConfigurationPreference = new(ConfigurationDefault)

// GetPreferenceStoreURI returns the configured slot backend, defaulting to a
// SQLite file in the user configuration directory.
func (c *ConfigurationDefault) GetPreferenceStoreURI() string {
	if strings.TrimSpace(c.PreferenceStoreURI) != "" {
		return c.PreferenceStoreURI
	}
	return DefaultPreferenceStoreURI()
}

func (c *ConfigurationDefault) GetPreferenceKey() string {
	return c.PreferenceKey
}

func (c *ConfigurationDefault) GetPreferenceEventsURL() string {
	return c.PreferenceEventsURL
}

// DefaultPreferenceStoreURI points at <user config dir>/heritage/preferences.db,
// or an in-memory slot when the platform has no such directory.
func DefaultPreferenceStoreURI() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return fallbackPreferenceURI
	}
	return "sqlite://" + filepath.Join(dir, "heritage", preferenceDBName)
}

type ConfigurationLocalization interface {
	GetTranslationsFolder() string
}

var _ ConfigurationLocalization = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetTranslationsFolder() string {
	return c.TranslationsFolder
}
