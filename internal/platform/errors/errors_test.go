package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"golang.org/x/text/language"
)

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	sentinel := New(CodeEmailTaken, "email is already registered")
	wrapped := fmt.Errorf("register: %w", New(CodeEmailTaken, "duplicate"))
	if !stderrors.Is(wrapped, sentinel) {
		t.Fatal("expected wrapped error to match sentinel by code")
	}
	if stderrors.Is(wrapped, New(CodeNotFound, "x")) {
		t.Fatal("did not expect match on different code")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("stripe down")
	err := Wrap(CodeProcessorFailure, "create payment intent", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "create payment intent: stripe down" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: New(CodeEmailInvalid, "x"), want: http.StatusBadRequest},
		{err: New(CodeTokenExpired, "x"), want: http.StatusUnauthorized},
		{err: New(CodeConversationForbidden, "x"), want: http.StatusForbidden},
		{err: New(CodeProjectNotFound, "x"), want: http.StatusNotFound},
		{err: New(CodeReviewExists, "x"), want: http.StatusConflict},
		{err: New(CodeProjectTransition, "x"), want: http.StatusUnprocessableEntity},
		{err: New(CodeRateLimited, "x"), want: http.StatusTooManyRequests},
		{err: New(CodeProcessorFailure, "x"), want: http.StatusBadGateway},
		{err: stderrors.New("plain"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestLocalizedMessageHidesInternalErrors(t *testing.T) {
	t.Parallel()

	got := LocalizedMessage(stderrors.New("sql: database is locked"), language.AmericanEnglish)
	if got != "Something went wrong. Please try again." {
		t.Fatalf("LocalizedMessage = %q", got)
	}
}

func TestLocalizedMessageUsesMetadata(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeRoleRequired, "expert role required", map[string]string{"Role": "expert"})
	got := LocalizedMessage(err, language.BrazilianPortuguese)
	if got != "Esta ação exige uma conta do tipo expert." {
		t.Fatalf("LocalizedMessage = %q", got)
	}
}
