package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/pitabwire/util"

	"github.com/pitabwire/heritage"
	"github.com/pitabwire/heritage/config"
	"github.com/pitabwire/heritage/dataset"
	"github.com/pitabwire/heritage/lang"
	"github.com/pitabwire/heritage/localization"
	"github.com/pitabwire/heritage/server"
	"github.com/pitabwire/heritage/units"
	"github.com/pitabwire/heritage/version"
)

const (
	minArgsCommand = 2
	convertArgs    = 4
)

// errConversion marks a conversion that produced an error outcome; the
// message has already been printed.
var errConversion = errors.New("conversion failed")

func main() {
	if len(os.Args) < minArgsCommand {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	exitOnErr(err)
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	switch args[0] {
	case "convert":
		return cmdConvert(ctx, args[1:], out)
	case "batch":
		return cmdBatch(ctx, args[1:], in, out)
	case "units":
		return cmdUnits(ctx, args[1:], out)
	case "lang":
		return cmdLang(ctx, args[1:], out)
	case "watch":
		return cmdWatch(ctx, args[1:], out)
	case "serve":
		return cmdServe(ctx, args[1:], out)
	case "version":
		_, err := fmt.Fprintln(out, version.String())
		return err
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command: %q", args[0])
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "heritage <command> [args]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  convert [--lang en|pl] <category> <from> <to> <value>")
	fmt.Fprintln(out, "  batch [--file PATH]     lines of <category> <from> <to> <value>, stdin by default")
	fmt.Fprintln(out, "  units [--lang en|pl] [category...]")
	fmt.Fprintln(out, "  lang [en|pl]")
	fmt.Fprintln(out, "  watch                   follows changes from other processes when PREFERENCE_EVENTS_URL is set")
	fmt.Fprintln(out, "  serve [--file PATH] [--addr :8080]")
	fmt.Fprintln(out, "  version")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Configuration is read from the environment, see DATASET_BASE_URL,")
	fmt.Fprintln(out, "PREFERENCE_STORE_URI, PREFERENCE_EVENTS_URL and LOG_LEVEL.")
}

// startService builds the service and applies the persisted language.
func startService(ctx context.Context) (context.Context, *heritage.Service, func(), error) {
	ctx, svc, err := heritage.NewService(ctx)
	if err != nil {
		return ctx, nil, nil, err
	}

	cancel, err := svc.Init(ctx, nil)
	if err != nil {
		release(ctx, svc)
		return ctx, nil, nil, err
	}

	return ctx, svc, func() {
		cancel()
		release(ctx, svc)
	}, nil
}

// release closes svc, logging rather than returning a close failure.
func release(ctx context.Context, svc *heritage.Service) {
	if err := svc.Close(ctx); err != nil {
		util.Log(ctx).WithError(err).Warn("could not release resources")
	}
}

// languageFlag resolves --lang, or the persisted preference when unset.
func languageFlag(value string, svc *heritage.Service) (lang.Language, error) {
	if value == "" {
		return svc.Language(), nil
	}
	language, ok := lang.Parse(value)
	if !ok {
		return "", fmt.Errorf("unsupported language %q, expected one of %v", value, lang.Supported())
	}
	return language, nil
}

func cmdConvert(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	langFlag := fs.String("lang", "", "output language, defaults to the saved preference")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < convertArgs {
		return errors.New("usage: convert <category> <from> <to> <value>")
	}

	ctx, svc, release, err := startService(ctx)
	if err != nil {
		return err
	}
	defer release()

	language, err := languageFlag(*langFlag, svc)
	if err != nil {
		return err
	}

	if err = svc.Load(ctx); err != nil {
		fmt.Fprintln(out, svc.Catalog().Text(language, localization.MsgErrorLoad))
		return err
	}

	category, from, to := fs.Arg(0), fs.Arg(1), fs.Arg(2)
	raw := strings.Join(fs.Args()[3:], " ")

	outcome := svc.Convert(category, from, to, raw)
	if language != svc.Language() {
		// render in the requested language without touching the preference
		if outcome.Err != nil {
			outcome.Text = svc.Catalog().ErrorText(language, outcome.Err)
		} else {
			outcome.Text = svc.Catalog().Result(language, strings.TrimSpace(raw), from, to, outcome.Value)
		}
	}

	fmt.Fprintln(out, outcome.Text)
	if outcome.Err != nil {
		return errConversion
	}
	return nil
}

func cmdBatch(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	file := fs.String("file", "", "request file, stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *file != "" && *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer util.CloseAndLogOnError(ctx, f)
		in = f
	}

	requests, err := readRequests(in)
	if err != nil {
		return err
	}

	ctx, svc, release, err := startService(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err = svc.Load(ctx); err != nil {
		fmt.Fprintln(out, svc.Localizer().Text(localization.MsgErrorLoad))
		return err
	}

	outcomes, err := svc.ConvertBatch(ctx, requests)
	failed := false
	for _, outcome := range outcomes {
		fmt.Fprintln(out, outcome.Text)
		failed = failed || outcome.Err != nil
	}
	if err != nil {
		return err
	}
	if failed {
		return errConversion
	}
	return nil
}

// readRequests parses "<category> <from> <to> <value>" lines, skipping blanks
// and # comments.
func readRequests(in io.Reader) ([]heritage.Request, error) {
	var requests []heritage.Request
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < convertArgs {
			return nil, fmt.Errorf("line %d: want <category> <from> <to> <value>, got %q", line, text)
		}
		requests = append(requests, heritage.Request{
			Category: fields[0],
			From:     fields[1],
			To:       fields[2],
			Input:    strings.Join(fields[3:], " "),
		})
	}
	return requests, scanner.Err()
}

func cmdUnits(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("units", flag.ContinueOnError)
	langFlag := fs.String("lang", "", "output language, defaults to the saved preference")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, svc, release, err := startService(ctx)
	if err != nil {
		return err
	}
	defer release()

	language, err := languageFlag(*langFlag, svc)
	if err != nil {
		return err
	}
	if err = svc.Load(ctx); err != nil {
		return err
	}

	catalog := svc.Catalog()
	data := svc.Data()
	categories := fs.Args()
	if len(categories) == 0 {
		categories = categoryOrder(data)
	}

	for _, id := range categories {
		category, ok := data[id]
		if !ok {
			return fmt.Errorf("unknown category %q", id)
		}
		from, to := category.DefaultPair()

		fmt.Fprintf(out, "%s (%s)\n", catalog.Category(language, id), id)
		fmt.Fprintf(out, "  %s: %s\n", catalog.Text(language, localization.MsgFromLabel),
			unitList(catalog, language, category.HistoricalKeys(), from))
		fmt.Fprintf(out, "  %s: %s\n", catalog.Text(language, localization.MsgToLabel),
			unitList(catalog, language, category.ModernKeys(), to))
	}
	return nil
}

// categoryOrder lists the known categories first, then any others the table has.
func categoryOrder(data units.ConversionData) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, id := range units.CategoryIDs() {
		if _, ok := data[id]; ok {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	var extra []string
	for id := range data {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(ids, extra...)
}

func unitList(catalog *localization.Catalog, language lang.Language, keys []string, preselected string) string {
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := fmt.Sprintf("%s [%s]", catalog.Unit(language, key), key)
		if key == preselected {
			name = "*" + name
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func cmdLang(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("lang", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, svc, release, err := startService(ctx)
	if err != nil {
		return err
	}
	defer release()

	if fs.NArg() == 0 {
		_, err = fmt.Fprintln(out, svc.Language())
		return err
	}

	language, ok := lang.Parse(fs.Arg(0))
	if !ok {
		return fmt.Errorf("unsupported language %q, expected one of %v", fs.Arg(0), lang.Supported())
	}
	if err = svc.Store().SetLanguage(ctx, language); err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, svc.Localizer().TextWith(localization.MsgLanguageChanged, map[string]any{
		"Language": svc.Catalog().LanguageName(language, language),
	}))
	return err
}

func cmdWatch(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, svc, err := heritage.NewService(ctx)
	if err != nil {
		return err
	}
	defer release(ctx, svc)

	if !svc.Store().Shared() {
		svc.Log(ctx).Warn("PREFERENCE_EVENTS_URL is not set, changes made by other processes will not be seen")
	}

	unsubscribe := svc.Store().Subscribe(func() {
		fmt.Fprintln(out, svc.Language())
	})
	defer unsubscribe()

	cancel, err := svc.Init(ctx, func() {
		svc.Log(ctx).WithField("language", svc.Language()).Debug("watching language preference")
	})
	if err != nil {
		return err
	}
	defer cancel()

	<-ctx.Done()
	return nil
}

func cmdServe(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	file := fs.String("file", cfg.GetDatasetFile(), "conversion data JSON file")
	addr := fs.String("addr", cfg.HTTPPort(), "listen address")
	if err = fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("a dataset file is required, use --file or DATASET_FILE")
	}

	ctx, svc, err := heritage.NewService(ctx, heritage.WithConfig(&cfg), heritage.WithInMemoryCache())
	if err != nil {
		return err
	}
	defer release(ctx, svc)

	data, err := dataset.ReadFile(*file)
	if err != nil {
		return err
	}
	if cfg.IsDatasetStrict() {
		if err = data.Validate(); err != nil {
			return err
		}
	}

	srv := server.NewServer(cfg.GetDatasetPath(), server.WithRateLimit(server.LimitConfig{
		RequestsPerSecond: cfg.GetServerRateLimit(),
		Burst:             cfg.GetServerRateBurst(),
	}))
	if err = srv.Start(ctx, *addr, data); err != nil {
		return err
	}
	fmt.Fprintf(out, "serving %s on http://%s%s\n", *file, srv.Addr(), cfg.GetDatasetPath())

	select {
	case <-ctx.Done():
	case serveErr := <-srv.Done():
		if serveErr != nil {
			return serveErr
		}
	}
	return srv.Stop(ctx)
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, errConversion) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
