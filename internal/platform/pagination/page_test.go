package pagination

import (
	"errors"
	"testing"
)

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 50, Max: 200}
	tests := []struct {
		in   int
		want int
	}{
		{in: 0, want: 50},
		{in: -3, want: 50},
		{in: 10, want: 10},
		{in: 500, want: 200},
	}
	for _, tc := range tests {
		if got := ClampPageSize(tc.in, cfg); got != tc.want {
			t.Fatalf("ClampPageSize(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("ClampPageSize with zero config = %d, want 1", got)
	}
}

func TestNormalizeOrderBy(t *testing.T) {
	cfg := OrderByConfig{Default: "rating", Allowed: []string{"rating", "newest"}}

	got, err := NormalizeOrderBy("", cfg)
	if err != nil || got != "rating" {
		t.Fatalf("NormalizeOrderBy(\"\") = %q, %v", got, err)
	}
	got, err = NormalizeOrderBy(" Newest ", cfg)
	if err != nil || got != "newest" {
		t.Fatalf("NormalizeOrderBy(newest) = %q, %v", got, err)
	}
	if _, err := NormalizeOrderBy("price", cfg); err == nil {
		t.Fatal("expected error for unsupported order_by")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{Key: "4.50", ID: "abc", OrderBy: "rating"}
	out, err := DecodeCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("cursor = %+v, want %+v", out, in)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"***", "bm90LWpzb24", "e30"} {
		if _, err := DecodeCursor(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("DecodeCursor(%q) err = %v, want ErrInvalidPageToken", token, err)
		}
	}
	cursor, err := DecodeCursor("")
	if err != nil || cursor != (Cursor{}) {
		t.Fatalf("DecodeCursor(empty) = %+v, %v", cursor, err)
	}
}
