// Package cylon compiles a robots exclusion file (robots.txt) for one
// crawler identity into a compact automaton that answers, for any request
// path, whether the crawler is allowed to fetch it.
//
// Compilation happens once, up front; the resulting Matcher is immutable
// and safe for concurrent use by any number of goroutines, so a long-lived
// crawler can compile its robots.txt once per host and reuse the Matcher
// for the lifetime of that host's crawl.
//
// Basic usage:
//
//	resp, err := http.Get("https://example.com/robots.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer resp.Body.Close()
//
//	m, err := cylon.Compile(context.Background(), resp.Body, "ExampleBot")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if m.AllowString("/private/data") {
//	    // fetch it
//	}
//
// Advanced usage:
//
//	m, err := cylon.Compile(ctx, r, "ExampleBot",
//	    cylon.WithEngine(cylon.EngineNonDeterministic),
//	    cylon.WithMaxStates(200_000),
//	)
package cylon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/crestonbunch/cylon/dfa"
	"github.com/crestonbunch/cylon/internal/group"
	"github.com/crestonbunch/cylon/internal/ruleset"
	"github.com/crestonbunch/cylon/internal/wire"
	"github.com/crestonbunch/cylon/nfa"
)

// engine is the narrow surface both dfa.Machine and nfa.Machine satisfy; it
// lets Matcher hold either without depending on which one.
type engine interface {
	Allow(path []byte) bool
	CrawlDelay() (seconds int64, ok bool)
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// Matcher is a compiled robots exclusion ruleset for one crawler identity.
// A zero Matcher is not usable; obtain one from Compile or by calling
// UnmarshalBinary on a Matcher produced by a prior MarshalBinary.
type Matcher struct {
	eng    engine
	engine Engine
}

// Engine reports which automaton formulation m was compiled with.
func (m *Matcher) Engine() Engine { return m.engine }

// Allow reports whether path is permitted by the compiled ruleset.
func (m *Matcher) Allow(path []byte) bool { return m.eng.Allow(path) }

// AllowString is Allow for a string path, avoiding a caller-side []byte(s)
// conversion where a string is already in hand.
func (m *Matcher) AllowString(path string) bool { return m.eng.Allow([]byte(path)) }

// CrawlDelay reports the aggregated Crawl-delay directive for this crawler
// identity, if the source robots file declared one.
func (m *Matcher) CrawlDelay() (time.Duration, bool) {
	seconds, ok := m.eng.CrawlDelay()
	if !ok {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// MarshalBinary encodes m into cylon's self-describing wire format.
func (m *Matcher) MarshalBinary() ([]byte, error) {
	return m.eng.MarshalBinary()
}

// UnmarshalBinary decodes a Matcher previously produced by MarshalBinary,
// restoring whichever engine it was compiled with.
func (m *Matcher) UnmarshalBinary(data []byte) error {
	tag, err := wire.PeekEngineTag(data)
	if err != nil {
		return err
	}
	switch tag {
	case wire.EngineDFA:
		mm := new(dfa.Machine)
		if err := mm.UnmarshalBinary(data); err != nil {
			return err
		}
		m.eng, m.engine = mm, EngineDeterministic
	case wire.EngineNFA:
		mm := new(nfa.Machine)
		if err := mm.UnmarshalBinary(data); err != nil {
			return err
		}
		m.eng, m.engine = mm, EngineNonDeterministic
	default:
		return fmt.Errorf("cylon: data was encoded by an unrecognized engine tag %d", tag)
	}
	return nil
}

// Compile reads a robots exclusion file from r and compiles the rules that
// apply to userAgent into a Matcher.
//
// ctx governs cancellation of the read; it is checked once between each
// line read from r, never mid-line and never during automaton
// construction. If no group in the file matches userAgent, Compile returns
// a Matcher that allows every path, per the protocol's no-match default.
func Compile(ctx context.Context, r io.Reader, userAgent string, opts ...Option) (*Matcher, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gr := group.New(r)
	var groups []group.Group
	for {
		g, err := gr.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cylon: read robots file: %w", err)
		}
		groups = append(groups, g)
	}

	rules := ruleset.Dedupe(ruleset.Select(groups, userAgent))
	for _, rl := range rules {
		if len(rl.Pattern) > cfg.MaxPatternLen {
			return nil, &PatternTooLongError{Pattern: string(rl.Pattern), Limit: cfg.MaxPatternLen}
		}
	}

	eng := resolveEngine(cfg.Engine)
	var m Matcher
	m.engine = eng

	switch eng {
	case EngineDeterministic:
		mm, err := dfa.Compile(rules, cfg.MaxStates)
		if err != nil {
			return nil, wrapBuildError(err)
		}
		m.eng = mm
	case EngineNonDeterministic:
		mm, err := nfa.Compile(rules, cfg.MaxStates)
		if err != nil {
			return nil, wrapBuildError(err)
		}
		m.eng = mm
	default:
		return nil, &ConfigError{Field: "Engine", Reason: "unrecognized engine value"}
	}

	return &m, nil
}

// CompileString is Compile for a robots file already held as a string.
func CompileString(ctx context.Context, s string, userAgent string, opts ...Option) (*Matcher, error) {
	return Compile(ctx, strings.NewReader(s), userAgent, opts...)
}

// CompileBytes is Compile for a robots file already held as a byte slice.
func CompileBytes(ctx context.Context, b []byte, userAgent string, opts ...Option) (*Matcher, error) {
	return Compile(ctx, bytes.NewReader(b), userAgent, opts...)
}

func wrapBuildError(err error) error {
	var dbe *dfa.BuildError
	if errors.As(err, &dbe) {
		return &BuildError{States: dbe.States, Limit: dbe.Limit, Err: err}
	}
	var nbe *nfa.BuildError
	if errors.As(err, &nbe) {
		return &BuildError{States: nbe.States, Limit: nbe.Limit, Err: err}
	}
	return err
}
