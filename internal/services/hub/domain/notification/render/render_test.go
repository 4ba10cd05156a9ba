package render

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestRender_LocalizesKnownTopics(t *testing.T) {
	t.Parallel()

	en := Render(Printer(language.AmericanEnglish), "project.proposal_accepted", `{"title":"Zap cleanup"}`)
	if en.Title != "Proposal accepted" || !strings.Contains(en.BodyText, "Zap cleanup") {
		t.Fatalf("en output = %+v", en)
	}

	pt := Render(Printer(language.BrazilianPortuguese), "project.proposal_accepted", `{"title":"Zap cleanup"}`)
	if pt.Title != "Proposta aceita" || !strings.Contains(pt.BodyText, "Zap cleanup") {
		t.Fatalf("pt output = %+v", pt)
	}
}

func TestRender_FallsBackToGenericCopy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{name: "unknown topic", topic: "something.else"},
		{name: "bad payload", topic: "review.received", payload: "{"},
	}
	for _, tc := range tests {
		out := Render(Printer(language.AmericanEnglish), tc.topic, tc.payload)
		if out.Title != defaultGenericTitle || out.BodyText != defaultGenericBody {
			t.Fatalf("%s: output = %+v", tc.name, out)
		}
	}
}

func TestRender_NilLocalizerUsesDefaults(t *testing.T) {
	t.Parallel()

	out := Render(nil, "account.welcome", "")
	if out.Title != defaultGenericTitle {
		t.Fatalf("output = %+v", out)
	}
}
