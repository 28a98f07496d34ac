// Package i18n renders user-facing messages in the caller's language.
package i18n

import "fmt"

// Language codes with a message catalog. English doubles as the fallback
// for unknown codes and for keys missing from another catalog.
const (
	LangEN = "en"
	LangJA = "ja"
)

var catalogs = map[string]map[string]string{
	LangEN: englishMessages,
	LangJA: japaneseMessages,
}

// Localizer resolves message keys against one primary catalog.
type Localizer struct {
	primary map[string]string
}

func NewLocalizer(language string) *Localizer {
	primary, ok := catalogs[language]
	if !ok {
		primary = englishMessages
	}
	return &Localizer{primary: primary}
}

// T renders the message for key, formatted with args when given. A key
// absent from the primary catalog is looked up in English; a key absent
// everywhere is returned verbatim so the caller still gets something
// loggable.
func (l *Localizer) T(key string, args ...any) string {
	msg, ok := l.primary[key]
	if !ok {
		msg, ok = englishMessages[key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Supported lists the language codes with a catalog.
func Supported() []string {
	out := make([]string, 0, len(catalogs))
	for lang := range catalogs {
		out = append(out, lang)
	}
	return out
}
