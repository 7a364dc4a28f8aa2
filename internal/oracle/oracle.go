// Package oracle is a test-only cross-check for the dfa and nfa packages'
// handling of plain literal (no wildcard, no end-of-word anchor) patterns.
// It answers "is pattern a prefix of path" using github.com/coregx/ahocorasick
// instead of either automaton builder, so a property test comparing a
// Machine's Allow result against this package shares no construction code
// with the thing it's checking.
//
// Only a single pattern is ever loaded into an Automaton at a time: the
// teacher's Find/IsMatch API does not document a tie-break rule for which
// of several patterns matching at the same position wins, so this package
// sidesteps the question entirely rather than guess at it.
package oracle

import "github.com/coregx/ahocorasick"

// LiteralPrefixMatch reports whether pattern occurs as a prefix of path.
func LiteralPrefixMatch(pattern, path []byte) (bool, error) {
	builder := ahocorasick.NewBuilder()
	builder.AddPattern(pattern)
	automaton, err := builder.Build()
	if err != nil {
		return false, err
	}
	m := automaton.Find(path, 0)
	return m != nil && m.Start == 0, nil
}

// LongestLiteralPrefix returns the longest pattern in patterns that is a
// prefix of path, and reports whether any pattern matched. When more than
// one pattern of the same maximal length matches, the first one encountered
// in patterns wins.
func LongestLiteralPrefix(patterns [][]byte, path []byte) (longest []byte, found bool, err error) {
	for _, p := range patterns {
		ok, err := LiteralPrefixMatch(p, path)
		if err != nil {
			return nil, false, err
		}
		if ok && (!found || len(p) > len(longest)) {
			longest, found = p, true
		}
	}
	return longest, found, nil
}
