// Package ruleset turns the groups produced by internal/group into the rule
// list a single automaton builder consumes: the one group whose user-agent
// token best matches the caller's agent string, with its rules deduplicated
// and its crawl-delay values aggregated to a single value.
package ruleset

import (
	"strconv"
	"strings"

	"github.com/crestonbunch/cylon/internal/group"
	"github.com/crestonbunch/cylon/internal/rule"
)

// Select returns the rules of the group whose user-agent token is the
// longest case-insensitive match against userAgent, substring or "*"
// wildcard. Ties are broken by the earliest group in groups, mirroring a
// robots file where the first matching block wins. If no group matches at
// all, Select returns a nil, empty rule slice: the caller treats this as
// allow-all, per the no-match default.
func Select(groups []group.Group, userAgent string) []rule.Rule {
	ua := strings.ToLower(userAgent)

	var best []rule.Rule
	bestLen := -1

	for _, g := range g2Matches(groups, ua) {
		if g.matchLen > bestLen {
			bestLen = g.matchLen
			best = g.rules
		}
	}
	return best
}

type matchedGroup struct {
	matchLen int
	rules    []rule.Rule
}

// g2Matches scores every group against ua and returns only the groups that
// matched at all (by a literal "*" token or a substring token).
func g2Matches(groups []group.Group, ua string) []matchedGroup {
	var out []matchedGroup
	for _, g := range groups {
		length, ok := bestAgentMatch(g.Agents, ua)
		if !ok {
			continue
		}
		out = append(out, matchedGroup{matchLen: length, rules: g.Rules})
	}
	return out
}

// bestAgentMatch returns the length of the longest token in agents that
// matches ua, where "*" matches with length 0 (the weakest possible match)
// and any other token matches if it occurs as a substring of ua, with
// match length equal to the token's own length (so more specific tokens
// outrank "*" and outrank shorter substrings of ua).
func bestAgentMatch(agents []string, ua string) (int, bool) {
	matched := false
	best := -1
	for _, a := range agents {
		if a == "*" {
			matched = true
			if best < 0 {
				best = 0
			}
			continue
		}
		if strings.Contains(ua, a) {
			matched = true
			if len(a) > best {
				best = len(a)
			}
		}
	}
	return best, matched
}

// Dedupe collapses rules carrying the same pattern down to a single rule,
// keyed on the exact pattern bytes. Allow and Delay rules unconditionally
// overwrite whatever previously held that pattern; a Disallow rule only
// fills a pattern slot that is still empty. This realizes "Allow beats
// Disallow when both target the same pattern", independent of which one
// appeared first in the source file.
func Dedupe(rules []rule.Rule) []rule.Rule {
	order := make([]string, 0, len(rules))
	byPattern := make(map[string]rule.Rule, len(rules))

	for _, r := range rules {
		key := string(r.Pattern)
		existing, seen := byPattern[key]
		switch {
		case !seen:
			byPattern[key] = r
			order = append(order, key)
		case r.Kind == rule.Allow || r.Kind == rule.Delay:
			byPattern[key] = r
		case r.Kind == rule.Disallow && existing.Kind != rule.Disallow:
			// Slot already holds an Allow/Delay winner; Disallow never
			// displaces one.
		case r.Kind == rule.Disallow:
			byPattern[key] = r
		}
	}

	out := make([]rule.Rule, 0, len(order))
	for _, key := range order {
		out = append(out, byPattern[key])
	}
	return out
}

// CrawlDelaySeconds aggregates every Delay rule's pattern (a decimal
// integer) to the minimum valid value present. Malformed values are
// ignored; if no Delay rule parses, ok is false.
func CrawlDelaySeconds(rules []rule.Rule) (seconds int64, ok bool) {
	best := int64(-1)
	for _, r := range rules {
		if r.Kind != rule.Delay {
			continue
		}
		v, err := strconv.ParseInt(string(r.Pattern), 10, 64)
		if err != nil || v < 0 {
			continue
		}
		if best < 0 || v < best {
			best = v
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}
