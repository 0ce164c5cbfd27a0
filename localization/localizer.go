package localization

import "github.com/pitabwire/heritage/lang"

// LanguageSource reports the language to render in. *preference.Store
// satisfies it.
type LanguageSource interface {
	Current() lang.Language
}

// Localizer is a Catalog that follows the current language of a source.
type Localizer struct {
	catalog *Catalog
	source  LanguageSource
}

func NewLocalizer(catalog *Catalog, source LanguageSource) *Localizer {
	return &Localizer{catalog: catalog, source: source}
}

// Language is the language the next call renders in.
func (l *Localizer) Language() lang.Language {
	if l.source == nil {
		return lang.Default
	}
	return l.source.Current()
}

func (l *Localizer) Text(id string) string {
	return l.catalog.Text(l.Language(), id)
}

func (l *Localizer) TextWith(id string, data map[string]any) string {
	return l.catalog.TextWith(l.Language(), id, data)
}

func (l *Localizer) Category(id string) string {
	return l.catalog.Category(l.Language(), id)
}

func (l *Localizer) Unit(key string) string {
	return l.catalog.Unit(l.Language(), key)
}

func (l *Localizer) ErrorText(err error) string {
	return l.catalog.ErrorText(l.Language(), err)
}

func (l *Localizer) Result(input, fromUnit, toUnit string, value float64) string {
	return l.catalog.Result(l.Language(), input, fromUnit, toUnit, value)
}
