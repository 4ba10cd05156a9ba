// Package render produces localized inbox copy for stored notifications.
package render

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	defaultGenericTitle = "Notification"
	defaultGenericBody  = "You have a new notification."
)

// Output is localized copy derived from one notification.
type Output struct {
	Title    string
	BodyText string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

var messages = catalog.NewBuilder(catalog.Fallback(language.AmericanEnglish))

func set(tag language.Tag, entries map[string]string) {
	for key, msg := range entries {
		if err := messages.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}
}

// Printer returns a localizer for tag backed by the notification catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

// Render returns localized copy for one notification topic and payload.
func Render(loc Localizer, topic, payloadJSON string) Output {
	payload := map[string]string{}
	if raw := strings.TrimSpace(payloadJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return genericOutput(loc)
		}
	}

	key := "notification." + normalizeToken(topic)
	var args []any
	switch normalizeToken(topic) {
	case "account.welcome":
	case "project.proposal_received", "project.proposal_accepted", "project.completed", "project.cancelled":
		args = []any{payload["title"]}
	case "review.received":
		args = []any{payload["rating"]}
	case "conversation.message_received":
		args = []any{payload["preview"]}
	case "payment.received", "payment.status_changed":
		args = []any{payload["status"]}
	default:
		return genericOutput(loc)
	}

	title := localize(loc, key+".title")
	body := localize(loc, key+".body", args...)
	if title == key+".title" || body == key+".body" {
		return genericOutput(loc)
	}
	return Output{Title: title, BodyText: body}
}

func genericOutput(loc Localizer) Output {
	return Output{
		Title:    localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle),
		BodyText: localizeWithFallback(loc, "notification.generic.body", defaultGenericBody),
	}
}

func localize(loc Localizer, key string, args ...any) string {
	if loc == nil {
		return key
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}

func normalizeToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
