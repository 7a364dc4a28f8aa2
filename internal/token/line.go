// Package token classifies a single line of a robots exclusion file.
//
// A line is first stripped of any trailing comment, then trimmed, then split
// on its first colon into a key and a value, each independently trimmed, so
// that arbitrary whitespace around the colon (e.g. "Disallow : /foo") is
// recognized the same as none.
package token

import "strings"

// Kind identifies what a classified line represents.
type Kind uint8

const (
	// Ignored marks a line that carries no directive: blank, a pure comment,
	// or an unrecognized/malformed key.
	Ignored Kind = iota
	// UserAgent marks a "user-agent:" declaration. Value is lowercased.
	UserAgent
	// Allow marks an "allow:" rule. Value is the raw, unmodified pattern bytes.
	Allow
	// Disallow marks a "disallow:" rule. Value is the raw, unmodified pattern bytes.
	Disallow
	// Delay marks a "crawl-delay:" rule. Value is the raw decimal text.
	Delay
)

// String implements fmt.Stringer for diagnostics and test failure messages.
func (k Kind) String() string {
	switch k {
	case UserAgent:
		return "user-agent"
	case Allow:
		return "allow"
	case Disallow:
		return "disallow"
	case Delay:
		return "crawl-delay"
	default:
		return "ignored"
	}
}

// Line classifies one line of input, returning its Kind and associated value.
// The value for UserAgent is lowercased; the value for Allow/Disallow/Delay
// is preserved byte-exact (only leading/trailing whitespace is trimmed).
func Line(raw string) (Kind, string) {
	line := stripComment(raw)
	line = strings.TrimSpace(line)
	if line == "" {
		return Ignored, ""
	}

	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return Ignored, ""
	}
	key := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])

	switch {
	case strings.EqualFold(key, "disallow"):
		return Disallow, value
	case strings.EqualFold(key, "user-agent"):
		return UserAgent, strings.ToLower(value)
	case strings.EqualFold(key, "allow"):
		return Allow, value
	case strings.EqualFold(key, "crawl-delay"):
		return Delay, value
	default:
		return Ignored, ""
	}
}

// stripComment returns the portion of line before the first '#'.
func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}
