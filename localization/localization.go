// Package localization renders interface text, unit vocabulary and
// conversion outcomes in the supported languages.
package localization

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/pitabwire/heritage/converter"
	"github.com/pitabwire/heritage/lang"
)

// Message ids shared with callers.
const (
	MsgTitle               = "title"
	MsgSubtitle            = "subtitle"
	MsgValueLabel          = "label.value"
	MsgFromLabel           = "label.from"
	MsgToLabel             = "label.to"
	MsgEnterPlaceholder    = "placeholder.enter"
	MsgHistoricalUnit      = "placeholder.historical_unit"
	MsgModernUnit          = "placeholder.modern_unit"
	MsgIs                  = "is"
	MsgLanguageChanged     = "language.changed"
	MsgErrorEmpty          = "error.empty"
	MsgErrorInvalid        = "error.invalid"
	MsgErrorUnitSelection  = "error.unit_selection"
	MsgErrorUnitNotFound   = "error.unit_not_found"
	MsgErrorLoad           = "error.load"
	categoryPrefix         = "category."
	unitPrefix             = "unit."
	languagePrefix         = "language."
	maximumFractionDigits  = 5
	translationFilePattern = "messages.%s.toml"
)

//go:embed translations/*.toml
var translations embed.FS

// Option configures a Catalog.
type Option func(*options)

type options struct {
	folder string
}

// WithTranslationsFolder loads messages.<lang>.toml files from folder on top of
// the built in messages. Missing files are skipped.
func WithTranslationsFolder(folder string) Option {
	return func(o *options) {
		o.folder = folder
	}
}

// Catalog holds the message bundle for every supported language.
type Catalog struct {
	bundle     *i18n.Bundle
	localizers map[lang.Language]*i18n.Localizer
	printers   map[lang.Language]*message.Printer
}

// NewCatalog loads the built in translations and any overrides.
func NewCatalog(opts ...Option) (*Catalog, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, l := range lang.Supported() {
		name := fmt.Sprintf(translationFilePattern, l)
		if _, err := bundle.LoadMessageFileFS(translations, "translations/"+name); err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}

		if o.folder == "" {
			continue
		}
		path := filepath.Join(o.folder, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if _, err := bundle.LoadMessageFile(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	c := &Catalog{
		bundle:     bundle,
		localizers: make(map[lang.Language]*i18n.Localizer),
		printers:   make(map[lang.Language]*message.Printer),
	}
	for _, l := range lang.Supported() {
		c.localizers[l] = i18n.NewLocalizer(bundle, string(l))
		c.printers[l] = message.NewPrinter(l.Tag())
	}
	return c, nil
}

// Bundle exposes the underlying message bundle.
func (c *Catalog) Bundle() *i18n.Bundle {
	return c.bundle
}

func (c *Catalog) localizer(l lang.Language) *i18n.Localizer {
	if loc, ok := c.localizers[l]; ok {
		return loc
	}
	return c.localizers[lang.Default]
}

func (c *Catalog) printer(l lang.Language) *message.Printer {
	if p, ok := c.printers[l]; ok {
		return p
	}
	return c.printers[lang.Default]
}

func (c *Catalog) lookup(l lang.Language, id string, data map[string]any) (string, bool) {
	text, err := c.localizer(l).Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}

// Text returns message id in l, or id itself when no translation exists.
func (c *Catalog) Text(l lang.Language, id string) string {
	return c.TextWith(l, id, nil)
}

// TextWith is Text for messages taking template data.
func (c *Catalog) TextWith(l lang.Language, id string, data map[string]any) string {
	if text, ok := c.lookup(l, id, data); ok {
		return text
	}
	return id
}

// Category returns the name of category id in l, or id when unknown.
func (c *Catalog) Category(l lang.Language, id string) string {
	if text, ok := c.lookup(l, categoryPrefix+id, nil); ok {
		return text
	}
	return id
}

// Unit returns the name of unit key in l, or key when unknown.
func (c *Catalog) Unit(l lang.Language, key string) string {
	if text, ok := c.lookup(l, unitPrefix+key, nil); ok {
		return text
	}
	return key
}

// LanguageName returns the name of target as written in l.
func (c *Catalog) LanguageName(l, target lang.Language) string {
	if text, ok := c.lookup(l, languagePrefix+string(target), nil); ok {
		return text
	}
	return string(target)
}

// ErrorText renders a conversion or load failure for display. Errors outside
// the conversion taxonomy fall back to their own message.
func (c *Catalog) ErrorText(l lang.Language, err error) string {
	if err == nil {
		return ""
	}

	var convErr *converter.Error
	if errors.As(err, &convErr) {
		switch convErr.Kind {
		case converter.KindEmptyInput:
			return c.Text(l, MsgErrorEmpty)
		case converter.KindInvalidNumber:
			return c.Text(l, MsgErrorInvalid)
		case converter.KindUnitSelection:
			return c.Text(l, MsgErrorUnitSelection)
		case converter.KindUnitNotFound:
			return c.TextWith(l, MsgErrorUnitNotFound, map[string]any{
				"Category": c.Category(l, convErr.Category),
			})
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}

// FormatValue prints value with the separators of l and at most five
// fraction digits.
func (c *Catalog) FormatValue(l lang.Language, value float64) string {
	return c.printer(l).Sprint(number.Decimal(value, number.MaxFractionDigits(maximumFractionDigits)))
}

// Result renders "<input> <from> <is> <value> <to>" with unit names in l.
func (c *Catalog) Result(l lang.Language, input, fromUnit, toUnit string, value float64) string {
	return fmt.Sprintf("%s %s %s %s %s",
		input,
		c.Unit(l, fromUnit),
		c.Text(l, MsgIs),
		c.FormatValue(l, value),
		c.Unit(l, toUnit),
	)
}
