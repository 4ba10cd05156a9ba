package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestNegotiate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   language.Tag
	}{
		{header: "", want: language.AmericanEnglish},
		{header: "pt-BR,pt;q=0.9,en;q=0.8", want: language.BrazilianPortuguese},
		{header: "pt", want: language.BrazilianPortuguese},
		{header: "en-GB", want: language.AmericanEnglish},
		{header: "ja-JP", want: language.AmericanEnglish},
		{header: ";;;", want: language.AmericanEnglish},
	}
	for _, tc := range tests {
		if got := Negotiate(tc.header); got != tc.want {
			t.Fatalf("Negotiate(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestFormatRendersMetadata(t *testing.T) {
	t.Parallel()

	got := Format(language.AmericanEnglish, "PROJECT_INVALID_STATUS_TRANSITION", map[string]string{"From": "open", "To": "completed"})
	want := "A project cannot move from open to completed."
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestFormatFallsBackToBaseLocale(t *testing.T) {
	t.Parallel()

	got := Format(language.BrazilianPortuguese, "EXPERT_RATE_INVALID", nil)
	if got != enUS["EXPERT_RATE_INVALID"] {
		t.Fatalf("Format = %q, want base locale message", got)
	}
}

func TestFormatUnknownCode(t *testing.T) {
	t.Parallel()

	if got := Format(language.AmericanEnglish, "NOPE", nil); got != enUS["UNKNOWN"] {
		t.Fatalf("Format = %q, want unknown message", got)
	}
}

func TestFormatMissingMetadataRendersEmpty(t *testing.T) {
	t.Parallel()

	got := Format(language.AmericanEnglish, "EXPERT_TOO_MANY_SKILLS", nil)
	if got != "List at most  skills." {
		t.Fatalf("Format = %q", got)
	}
}
