package nfa

import (
	"testing"

	"github.com/crestonbunch/cylon/internal/rule"
)

func TestMachineBinaryRoundTrip(t *testing.T) {
	rules := []rule.Rule{
		rule.NewAllow([]byte("/")),
		rule.NewDisallow([]byte("/private/*")),
		rule.NewAllow([]byte("/private/public.html")),
		rule.NewDelay([]byte("5")),
	}
	m := mustCompile(t, rules)

	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}

	var decoded Machine
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}

	assertStates(t, decoded.states, m.states)

	for _, path := range []string{"/", "/private/x", "/private/public.html", "/other"} {
		if got, want := decoded.Allow([]byte(path)), m.Allow([]byte(path)); got != want {
			t.Errorf("decoded.Allow(%q) = %v, want %v", path, got, want)
		}
	}

	if seconds, ok := decoded.CrawlDelay(); !ok || seconds != 5 {
		t.Errorf("decoded.CrawlDelay() = (%d, %v), want (5, true)", seconds, ok)
	}
}

func TestUnmarshalBinaryRejectsOtherEngine(t *testing.T) {
	m := mustCompile(t, []rule.Rule{rule.NewAllow([]byte("/"))})
	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	data[5] = 1 // engine tag byte: 4 bytes magic + 1 byte version precede it

	var decoded Machine
	if err := decoded.UnmarshalBinary(data); err == nil {
		t.Fatal("UnmarshalBinary() error = nil, want a mismatched-engine error")
	}
}
