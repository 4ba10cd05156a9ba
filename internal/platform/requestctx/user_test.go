package requestctx

import (
	"context"
	"testing"
)

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{UserID: "user-42", Role: "expert"})
	got, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatal("expected principal in context")
	}
	if got.UserID != "user-42" || got.Role != "expert" {
		t.Fatalf("principal = %+v", got)
	}
	if UserIDFromContext(ctx) != "user-42" {
		t.Fatalf("UserIDFromContext = %q, want %q", UserIDFromContext(ctx), "user-42")
	}
}

func TestPrincipalFromContextEmpty(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected no principal")
	}
	if got := UserIDFromContext(nil); got != "" {
		t.Fatalf("expected empty string for nil context, got %q", got)
	}
}

func TestPrincipalWithoutUserIDIsIgnored(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{Role: "admin"})
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("expected principal without user id to be ignored")
	}
}
