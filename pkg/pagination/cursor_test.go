package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	c := Cursor{
		V:   1,
		T:   "employees",
		Tv:  7,
		Off: 200,
		Ps:  50,
		Ph:  PredicateHash("salary > 10"),
	}
	tok, err := EncodeCursor(c)
	if err != nil {
		t.Fatalf("EncodeCursor error: %v", err)
	}
	// token should be url-safe base64 (no '+', '/', '=')
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token contains non-url-safe chars: %q", tok)
	}
	out, err := DecodeCursor(tok)
	if err != nil {
		t.Fatalf("DecodeCursor error: %v", err)
	}
	if out.T != c.T || out.Tv != c.Tv || out.Off != c.Off || out.Ps != c.Ps || out.Ph != c.Ph {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", out, c)
	}
	if out.Iat == 0 {
		t.Fatalf("expected issued-at to be defaulted")
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cases := []string{
		"",    // empty
		"!!!", // not base64
		base64.RawURLEncoding.EncodeToString([]byte("not-json")),
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"t":"","off":0,"ps":10}`),
		mustB64(`{"v":1,"t":"x","off":-1,"ps":10}`),
		mustB64(`{"v":1,"t":"x","off":0,"ps":0}`),
	}
	for i, tok := range cases {
		if _, err := DecodeCursor(tok); err == nil {
			t.Fatalf("case %d: expected error for token %q", i, tok)
		}
	}
}

func TestCursorCheck(t *testing.T) {
	c := Cursor{T: "sales", Tv: 3, Off: 10, Ps: 10}
	if err := c.Check("sales", 3, ""); err != nil {
		t.Fatalf("expected valid cursor, got %v", err)
	}
	if err := c.Check("sales", 4, ""); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale after version change, got %v", err)
	}
	if err := c.Check("sales", 3, PredicateHash("a > 1")); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale for different predicate, got %v", err)
	}
	if err := c.Check("other", 3, ""); err == nil || errors.Is(err, ErrStale) {
		t.Fatalf("expected table mismatch error, got %v", err)
	}
}

func TestPredicateHash(t *testing.T) {
	if PredicateHash("  ") != "" {
		t.Fatalf("blank condition should hash to empty")
	}
	if PredicateHash("a > 1") != PredicateHash(" a > 1 ") {
		t.Fatalf("hash should ignore surrounding space")
	}
	if PredicateHash("a > 1") == PredicateHash("a > 2") {
		t.Fatalf("different conditions should hash differently")
	}
}

func TestNextOffset(t *testing.T) {
	if got := NextOffset(-5, 10); got != 10 {
		t.Fatalf("NextOffset(-5,10)=%d", got)
	}
	if got := NextOffset(20, 0); got != 20 {
		t.Fatalf("NextOffset(20,0)=%d", got)
	}
}

func FuzzDecodeCursor(f *testing.F) {
	seeds := []string{
		"", "abc", mustB64(`{"v":1}`), mustB64(`{"t":"x"}`),
		mustB64(`{"v":1,"t":"tbl","tv":2,"off":0,"ps":1}`),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = DecodeCursor(token)
	})
}

func mustB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
