// Package i18n renders localized error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is used when no supported locale matches a request.
var BaseLocale = language.AmericanEnglish

var supported = []language.Tag{
	language.AmericanEnglish,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[language.Tag]map[string]string{
	language.AmericanEnglish:     enUS,
	language.BrazilianPortuguese: ptBR,
}

var (
	templatesMu sync.Mutex
	templates   = map[string]*template.Template{}
)

// Supported returns the locales with a message catalog.
func Supported() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}

// Negotiate picks the best supported locale for an Accept-Language header value.
func Negotiate(acceptLanguage string) language.Tag {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return BaseLocale
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return BaseLocale
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return BaseLocale
	}
	return supported[index]
}

// Format renders the message for code in locale with metadata.
// Unknown locales fall back to the base locale; unknown codes fall back to the
// UNKNOWN message.
func Format(locale language.Tag, code string, metadata map[string]string) string {
	messages, ok := catalogs[locale]
	if !ok {
		messages = catalogs[BaseLocale]
	}
	text, ok := messages[code]
	if !ok {
		text, ok = catalogs[BaseLocale][code]
	}
	if !ok {
		text = messages["UNKNOWN"]
	}
	if !strings.Contains(text, "{{") {
		return text
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	tmpl, err := parse(text)
	if err != nil {
		return text
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return text
	}
	return buf.String()
}

func parse(text string) (*template.Template, error) {
	templatesMu.Lock()
	defer templatesMu.Unlock()
	if tmpl, ok := templates[text]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New("msg").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, err
	}
	templates[text] = tmpl
	return tmpl, nil
}
