package oracle

import "testing"

func TestLiteralPrefixMatch(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/fish", "/fish.html", true},
		{"/fish", "/catfish", false},
		{"/private", "/priv", false},
		{"/", "/anything", true},
	}
	for _, c := range cases {
		got, err := LiteralPrefixMatch([]byte(c.pattern), []byte(c.path))
		if err != nil {
			t.Fatalf("LiteralPrefixMatch(%q, %q) error = %v", c.pattern, c.path, err)
		}
		if got != c.want {
			t.Errorf("LiteralPrefixMatch(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestLongestLiteralPrefix(t *testing.T) {
	patterns := [][]byte{[]byte("/a"), []byte("/abc"), []byte("/ab")}
	longest, found, err := LongestLiteralPrefix(patterns, []byte("/abcdef"))
	if err != nil {
		t.Fatalf("LongestLiteralPrefix() error = %v", err)
	}
	if !found || string(longest) != "/abc" {
		t.Errorf("LongestLiteralPrefix() = (%q, %v), want (\"/abc\", true)", longest, found)
	}
}

func TestLongestLiteralPrefixNoMatch(t *testing.T) {
	patterns := [][]byte{[]byte("/secret"), []byte("/private")}
	_, found, err := LongestLiteralPrefix(patterns, []byte("/public"))
	if err != nil {
		t.Fatalf("LongestLiteralPrefix() error = %v", err)
	}
	if found {
		t.Error("LongestLiteralPrefix() found = true, want false")
	}
}
