package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/heritage"
	"github.com/pitabwire/heritage/dataset"
)

type CLISuite struct {
	suite.Suite

	server *httptest.Server
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupSuite() {
	data, err := dataset.ReadFile("../../dataset/testdata/conversion-data.json")
	s.Require().NoError(err)

	mux := http.NewServeMux()
	mux.Handle(dataset.DefaultPath, dataset.Handler(data))
	s.server = httptest.NewServer(mux)
}

func (s *CLISuite) TearDownSuite() {
	s.server.Close()
}

func (s *CLISuite) SetupTest() {
	s.T().Setenv("LOG_LEVEL", "error")
	s.T().Setenv("LOG_COLORED", "false")
	s.T().Setenv("OPENTELEMETRY_DISABLE", "true")
	s.T().Setenv("DATASET_BASE_URL", s.server.URL)
	s.T().Setenv("PREFERENCE_STORE_URI", "sqlite://"+filepath.Join(s.T().TempDir(), "prefs.db"))
	s.T().Setenv("PREFERENCE_EVENTS_URL", "")
}

func (s *CLISuite) exec(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func (s *CLISuite) TestConvert() {
	out, err := s.exec("", "convert", "length", "stopa", "meter", "1")
	s.Require().NoError(err)
	s.Contains(out, "1 stopa (old polish) is 0.288 meter")

	out, err = s.exec("", "convert", "--lang", "pl", "length", "stopa", "meter", "1")
	s.Require().NoError(err)
	s.Contains(out, "0,288")

	out, err = s.exec("", "convert", "length", "stopa", "meter", "abc")
	s.Require().ErrorIs(err, errConversion)
	s.Contains(out, "Invalid")

	_, err = s.exec("", "convert", "length", "stopa")
	s.Error(err)

	_, err = s.exec("", "convert", "--lang", "de", "length", "stopa", "meter", "1")
	s.Error(err)
}

func (s *CLISuite) TestLanguagePersistsBetweenRuns() {
	out, err := s.exec("", "lang")
	s.Require().NoError(err)
	s.Equal("en", strings.TrimSpace(out))

	out, err = s.exec("", "lang", "pl")
	s.Require().NoError(err)
	s.Contains(out, "Ustawiono język: polski")

	out, err = s.exec("", "lang")
	s.Require().NoError(err)
	s.Equal("pl", strings.TrimSpace(out))

	out, err = s.exec("", "convert", "time", "moment", "second", "2")
	s.Require().NoError(err)
	s.Contains(out, "2 chwila to 180 sekunda")

	_, err = s.exec("", "lang", "fr")
	s.Error(err)
}

func (s *CLISuite) TestBatch() {
	input := strings.Join([]string{
		"# category from to value",
		"length stopa meter 1",
		"",
		"time moment second 2",
	}, "\n")

	out, err := s.exec(input, "batch")
	s.Require().NoError(err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	s.Require().Len(lines, 2)
	s.Contains(lines[0], "0.288")
	s.Contains(lines[1], "180")

	_, err = s.exec("length stopa meter", "batch")
	s.ErrorContains(err, "line 1")

	out, err = s.exec("mass cetnar kilogram 1", "batch")
	s.Require().ErrorIs(err, errConversion)
	s.NotEmpty(out)
}

func (s *CLISuite) TestUnits() {
	out, err := s.exec("", "units", "length")
	s.Require().NoError(err)
	s.Contains(out, "(length)")
	s.Contains(out, "[stopa]")
	s.Contains(out, "*", "the default pair is marked")

	_, err = s.exec("", "units", "volume-of-joy")
	s.Error(err)
}

func (s *CLISuite) TestMisc() {
	out, err := s.exec("", "version")
	s.Require().NoError(err)
	s.Contains(out, "dev")

	out, err = s.exec("", "help")
	s.Require().NoError(err)
	s.Contains(out, "convert")

	_, err = s.exec("", "frobnicate")
	s.Error(err)

	_, err = s.exec("", "serve", "--file", "")
	s.Error(err)
}

func (s *CLISuite) TestWatchWithoutEventsStopsOnCancel() {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	s.Require().NoError(run(ctx, []string{"watch"}, strings.NewReader(""), &out))

	help, err := s.exec("", "help")
	s.Require().NoError(err)
	s.Contains(help, "watch                   follows changes from other processes when PREFERENCE_EVENTS_URL is set")
}

func (s *CLISuite) TestReleaseLogsCloseFailure() {
	var logs bytes.Buffer
	logCtx := util.ContextWithLogger(context.Background(),
		util.NewLogger(context.Background(), util.WithLogOutput(&logs), util.WithLogNoColor(true)))

	_, svc, err := heritage.NewService(context.Background())
	s.Require().NoError(err)
	svc.AddCleanupMethod(func(context.Context) error { return errors.New("slot still locked") })

	release(logCtx, svc)
	s.Contains(logs.String(), "could not release resources")
	s.Contains(logs.String(), "slot still locked")
}
