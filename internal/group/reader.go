// Package group streams a robots exclusion file and clusters consecutive
// user-agent declarations into headers, each paired with the rule block that
// follows it, until the next header begins.
//
// The reader is a two-state producer (reading-header / reading-rules), a
// direct port of the original parser's GroupReader: from reading-header it
// accumulates user-agent lines until the first rule, then flips to
// reading-rules and accumulates rules until the next user-agent line closes
// the group.
package group

import (
	"bufio"
	"context"
	"io"

	"github.com/crestonbunch/cylon/internal/rule"
	"github.com/crestonbunch/cylon/internal/token"
)

// Group is an ordered header (lowercased user-agent tokens) paired with the
// rules that followed it until the next header.
type Group struct {
	Agents []string
	Rules  []rule.Rule
}

// Reader streams (header, rules) pairs out of a robots file. The only
// suspension point is the read of the next input line: cancellation is
// observed exactly at that boundary, never mid-line and never while a group
// is being assembled in memory.
type Reader struct {
	sc *bufio.Scanner

	agents []string
	rules  []rule.Rule
	// parsingAgents is true while accumulating a header; false while
	// accumulating the rule block that follows it.
	parsingAgents bool
	done          bool
}

// New creates a Reader over r.
func New(r io.Reader) *Reader {
	return &Reader{
		sc:            bufio.NewScanner(r),
		parsingAgents: true,
	}
}

// Next scans forward until a complete group is available, returning it.
// It returns io.EOF once the input is exhausted and no more groups remain.
// ctx is checked once per line read; a canceled context aborts the scan
// between lines and returns ctx.Err(), leaving no partially-emitted group
// visible to the caller.
func (r *Reader) Next(ctx context.Context) (Group, error) {
	if r.done {
		return Group{}, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return Group{}, err
		}
		if !r.sc.Scan() {
			r.done = true
			return r.flush()
		}

		kind, val := token.Line(r.sc.Text())
		switch {
		case kind == token.UserAgent && r.parsingAgents:
			r.agents = append(r.agents, val)

		case kind == token.UserAgent:
			// Closes the current group; becomes the first declaration of
			// the next header.
			g := Group{Agents: r.agents, Rules: r.rules}
			r.agents = []string{val}
			r.rules = nil
			r.parsingAgents = true
			if len(g.Agents) > 0 && len(g.Rules) > 0 {
				return g, nil
			}
			// A header with no rules, or rules with no preceding header,
			// produced nothing to emit; keep going.

		case kind == token.Allow && r.parsingAgents:
			r.rules = append(r.rules, rule.NewAllow([]byte(val)))
			r.parsingAgents = false
		case kind == token.Disallow && r.parsingAgents:
			r.rules = append(r.rules, rule.NewDisallow([]byte(val)))
			r.parsingAgents = false
		case kind == token.Delay && r.parsingAgents:
			r.rules = append(r.rules, rule.NewDelay([]byte(val)))
			r.parsingAgents = false

		case kind == token.Allow:
			r.rules = append(r.rules, rule.NewAllow([]byte(val)))
		case kind == token.Disallow:
			r.rules = append(r.rules, rule.NewDisallow([]byte(val)))
		case kind == token.Delay:
			r.rules = append(r.rules, rule.NewDelay([]byte(val)))

		case kind == token.Ignored:
			// Skipped in both states.
		}
	}
}

// flush emits any pending group on input end, per spec: a trailing group is
// only emitted if it carries at least one rule.
func (r *Reader) flush() (Group, error) {
	if len(r.agents) == 0 || len(r.rules) == 0 {
		if err := r.sc.Err(); err != nil {
			return Group{}, err
		}
		return Group{}, io.EOF
	}
	g := Group{Agents: r.agents, Rules: r.rules}
	r.agents = nil
	r.rules = nil
	if err := r.sc.Err(); err != nil {
		return Group{}, err
	}
	return g, nil
}
