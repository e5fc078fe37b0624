package shellglob

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "main.py", false},
		{"foo?bar", "fooXbar", true},
		{"foo?bar", "foobar", false},
		{"[abc]x", "ax", true},
		{"[!abc]x", "dx", true},
		{"[!abc]x", "ax", false},
		{"a*c", "abc", true},
		{"a*c", "ac", true},
		{"", "", true},
		{"", "x", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.s); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestTrimPrefixSuffix(t *testing.T) {
	if got := TrimPrefix("foo.bar.baz", "*.", false); got != "bar.baz" {
		t.Errorf("shortest prefix trim: got %q", got)
	}
	if got := TrimPrefix("foo.bar.baz", "*.", true); got != "baz" {
		t.Errorf("longest prefix trim: got %q", got)
	}
	if got := TrimSuffix("foo.bar.baz", ".*", false); got != "foo.bar" {
		t.Errorf("shortest suffix trim: got %q", got)
	}
	if got := TrimSuffix("foo.bar.baz", ".*", true); got != "foo" {
		t.Errorf("longest suffix trim: got %q", got)
	}
}

func TestHasMeta(t *testing.T) {
	if !HasMeta("*.go") {
		t.Error("expected metacharacter")
	}
	if HasMeta("plain") {
		t.Error("expected no metacharacter")
	}
	if HasMeta(`\*`) {
		t.Error("escaped star should not count as meta")
	}
}
