package group

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/crestonbunch/cylon/internal/rule"
)

func patterns(rules []rule.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = string(r.Pattern)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReaderEndToEnd(t *testing.T) {
	input := `
# a comment at the top
User-agent: a
User-agent: b
Disallow: /one
Allow: /two
Crawl-delay: 5

User-agent: c
Disallow: /three
`
	r := New(strings.NewReader(input))
	ctx := context.Background()

	g1, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("first group: %v", err)
	}
	if !equalStrings(g1.Agents, []string{"a", "b"}) {
		t.Errorf("group 1 agents = %v", g1.Agents)
	}
	if !equalStrings(patterns(g1.Rules), []string{"/one", "/two", "5"}) {
		t.Errorf("group 1 rules = %v", patterns(g1.Rules))
	}

	g2, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("second group: %v", err)
	}
	if !equalStrings(g2.Agents, []string{"c"}) {
		t.Errorf("group 2 agents = %v", g2.Agents)
	}
	if !equalStrings(patterns(g2.Rules), []string{"/three"}) {
		t.Errorf("group 2 rules = %v", patterns(g2.Rules))
	}

	if _, err := r.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

// A rule line preceding any user-agent declaration belongs to no group and
// is silently discarded.
func TestReaderRuleBeforeAnyAgentIsDiscarded(t *testing.T) {
	input := `
Disallow: /orphan
User-agent: a
Disallow: /one
`
	r := New(strings.NewReader(input))
	ctx := context.Background()

	g, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !equalStrings(g.Agents, []string{"a"}) {
		t.Errorf("agents = %v", g.Agents)
	}
	if !equalStrings(patterns(g.Rules), []string{"/one"}) {
		t.Errorf("rules = %v", patterns(g.Rules))
	}
	if _, err := r.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

// A header followed by no rules before EOF produces no group.
func TestReaderHeaderWithNoRulesIsDiscarded(t *testing.T) {
	input := `
User-agent: a
User-agent: b
`
	r := New(strings.NewReader(input))
	if _, err := r.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

// A blank line between two user-agent lines does not end the header: both
// agents share the rule block that follows.
func TestReaderBlankLineBetweenAgentsKeepsOneHeader(t *testing.T) {
	input := `
User-agent: a

User-agent: b
Disallow: /b-only
`
	r := New(strings.NewReader(input))
	ctx := context.Background()

	g, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !equalStrings(g.Agents, []string{"a", "b"}) {
		t.Errorf("agents = %v, want [a b] (a blank line does not split the header)", g.Agents)
	}
	if !equalStrings(patterns(g.Rules), []string{"/b-only"}) {
		t.Errorf("rules = %v", patterns(g.Rules))
	}
}

func TestReaderContextCanceled(t *testing.T) {
	input := "User-agent: a\nDisallow: /one\n"
	r := New(strings.NewReader(input))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReaderEmptyInput(t *testing.T) {
	r := New(strings.NewReader(""))
	if _, err := r.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
