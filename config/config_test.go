package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestContextHelpersAndKeyString() {
	ctx := context.Background()
	cfg := ConfigurationDefault{PreferenceKey: "lang"}

	s.Equal("heritage/config/configurationKey", ctxKeyConfiguration.String())

	ctx = ToContext(ctx, cfg)
	fromCtx := FromContext[ConfigurationDefault](ctx)
	s.Equal("lang", fromCtx.PreferenceKey)

	missing := FromContext[*ConfigurationDefault](context.Background())
	s.Nil(missing)
}

func (s *ConfigSuite) TestFromEnv() {
	type envCfg struct {
		Value string `env:"HERITAGE_TEST_VALUE"`
	}

	s.T().Setenv("HERITAGE_TEST_VALUE", "abc")

	fromEnv, err := FromEnv[envCfg]()
	s.Require().NoError(err)
	s.Equal("abc", fromEnv.Value)
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := FromEnv[ConfigurationDefault]()
	s.Require().NoError(err)

	s.Equal("info", cfg.LoggingLevel())
	s.False(cfg.LoggingLevelIsDebug())
	s.True(cfg.LoggingColored())
	s.False(cfg.LoggingShowStackTrace())
	s.Equal(time.RFC3339, cfg.LoggingTimeFormat())
	s.False(cfg.TraceReq())
	s.False(cfg.DisableOpenTelemetry())
	s.InDelta(0.1, cfg.SamplingRatio(), 1e-9)
	s.Equal(":8080", cfg.HTTPPort())
	s.Zero(cfg.GetServerRateLimit())
	s.Positive(cfg.GetBatchConcurrency())

	s.Equal("http://localhost:8080", cfg.GetDatasetBaseURL())
	s.Equal("/api/conversion-data.json", cfg.GetDatasetPath())
	s.Equal(30*time.Second, cfg.GetDatasetTimeout())
	s.False(cfg.IsDatasetStrict())
	s.Empty(cfg.GetDatasetFile())

	s.Equal("language", cfg.GetPreferenceKey())
	s.Empty(cfg.GetPreferenceEventsURL())
	s.Equal(DefaultPreferenceStoreURI(), cfg.GetPreferenceStoreURI())
	s.Empty(cfg.GetTranslationsFolder())
}

func (s *ConfigSuite) TestEnvironmentOverrides() {
	s.T().Setenv("LOG_LEVEL", "debug")
	s.T().Setenv("LOG_COLORED", "false")
	s.T().Setenv("TRACE_REQUESTS", "true")
	s.T().Setenv("DATASET_BASE_URL", "https://units.example.org")
	s.T().Setenv("DATASET_TIMEOUT", "1500ms")
	s.T().Setenv("DATASET_STRICT", "true")
	s.T().Setenv("PREFERENCE_STORE_URI", "valkey://cache:6379/0")
	s.T().Setenv("PREFERENCE_EVENTS_URL", "nats://nats:4222/heritage.preferences")
	s.T().Setenv("TRANSLATIONS_FOLDER", "/etc/heritage/translations")
	s.T().Setenv("SERVER_RATE_LIMIT", "2.5")
	s.T().Setenv("SERVER_RATE_BURST", "5")
	s.T().Setenv("BATCH_CONCURRENCY", "3")

	cfg, err := FromEnv[ConfigurationDefault]()
	s.Require().NoError(err)

	s.True(cfg.LoggingLevelIsDebug())
	s.False(cfg.LoggingColored())
	s.True(cfg.TraceReq())
	s.Equal("https://units.example.org", cfg.GetDatasetBaseURL())
	s.Equal(1500*time.Millisecond, cfg.GetDatasetTimeout())
	s.True(cfg.IsDatasetStrict())
	s.Equal("valkey://cache:6379/0", cfg.GetPreferenceStoreURI())
	s.Equal("nats://nats:4222/heritage.preferences", cfg.GetPreferenceEventsURL())
	s.Equal("/etc/heritage/translations", cfg.GetTranslationsFolder())
	s.InDelta(2.5, cfg.GetServerRateLimit(), 1e-9)
	s.Equal(5, cfg.GetServerRateBurst())
	s.Equal(3, cfg.GetBatchConcurrency())
}

func (s *ConfigSuite) TestInvalidEnvironment() {
	s.T().Setenv("DATASET_TIMEOUT", "soon")

	_, err := FromEnv[ConfigurationDefault]()
	s.Error(err)
}

func (s *ConfigSuite) TestHTTPPortFallbacks() {
	testCases := []struct {
		name     string
		port     string
		wantHTTP string
	}{
		{name: "numeric port", port: "9090", wantHTTP: ":9090"},
		{name: "invalid port falls back", port: "invalid", wantHTTP: ":8080"},
		{name: "already prefixed", port: ":8088", wantHTTP: ":8088"},
		{name: "host bound", port: "127.0.0.1:8081", wantHTTP: "127.0.0.1:8081"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg := ConfigurationDefault{HTTPServerPort: tc.port}
			s.Equal(tc.wantHTTP, cfg.HTTPPort())
		})
	}
}

func (s *ConfigSuite) TestDefaultPreferenceStoreURI() {
	s.T().Setenv("XDG_CONFIG_HOME", s.T().TempDir())

	uri := DefaultPreferenceStoreURI()
	s.True(strings.HasPrefix(uri, "sqlite://") || uri == fallbackPreferenceURI)
	if strings.HasPrefix(uri, "sqlite://") {
		s.True(strings.HasSuffix(uri, "/heritage/preferences.db"))
	}

	cfg := ConfigurationDefault{PreferenceStoreURI: "  "}
	s.Equal(uri, cfg.GetPreferenceStoreURI())
}
