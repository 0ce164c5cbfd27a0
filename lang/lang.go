package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is one of the display languages the converter supports.
type Language string

const (
	English Language = "en"
	Polish  Language = "pl"

	// Default is used whenever no valid preference is available.
	Default = English
)

//nolint:gochecknoglobals // closed set, never modified
var (
	supported = []Language{English, Polish}

	matcher = language.NewMatcher([]language.Tag{language.English, language.Polish})
)

// Supported returns the closed set of languages in declaration order.
func Supported() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Parse reports whether s names a supported language.
func Parse(s string) (Language, bool) {
	candidate := Language(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range supported {
		if l == candidate {
			return l, true
		}
	}
	return Default, false
}

// Valid reports whether l is a member of the supported set.
func (l Language) Valid() bool {
	for _, s := range supported {
		if s == l {
			return true
		}
	}
	return false
}

// Tag returns the BCP 47 tag for l.
func (l Language) Tag() language.Tag {
	if l == Polish {
		return language.Polish
	}
	return language.English
}

func (l Language) String() string {
	return string(l)
}

// Match maps arbitrary language preferences, such as "pl-PL" or a full
// Accept-Language header value, onto the supported set.
func Match(preferences ...string) Language {
	var tags []language.Tag
	for _, p := range preferences {
		if strings.TrimSpace(p) == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return Default
	}

	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Default
	}
	return supported[idx]
}
