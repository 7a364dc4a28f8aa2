package cylon

import "fmt"

// Engine selects which automaton formulation a Matcher is compiled to use.
//
// The two formulations agree on every well-formed rule and on every
// property in the package's test suite, with one documented exception: a
// pattern with a '$' anchor in the middle of a word (e.g. "/foo$bar") is
// undefined by the robots exclusion protocol, and the deterministic and
// non-deterministic formulations resolve it differently. See the dfa and
// nfa packages' TestAllowMatchEOW for the pinned behavior of each.
type Engine int

const (
	// EngineAuto selects the module's recommended engine. Currently this is
	// EngineDeterministic; callers that need a specific formulation's
	// tie-break behavior should request it explicitly rather than rely on
	// EngineAuto's resolution remaining fixed across versions.
	EngineAuto Engine = iota
	// EngineDeterministic compiles a dfa.Machine.
	EngineDeterministic
	// EngineNonDeterministic compiles an nfa.Machine.
	EngineNonDeterministic
)

func (e Engine) String() string {
	switch e {
	case EngineAuto:
		return "auto"
	case EngineDeterministic:
		return "deterministic"
	case EngineNonDeterministic:
		return "non-deterministic"
	default:
		return fmt.Sprintf("Engine(%d)", int(e))
	}
}

// Config controls how Compile builds a Matcher.
//
// Example:
//
//	config := cylon.DefaultConfig()
//	config.MaxStates = 50000
//	m, err := cylon.Compile(ctx, r, "Googlebot", cylon.WithConfig(config))
type Config struct {
	// Engine selects the automaton formulation. Default: EngineAuto.
	Engine Engine

	// MaxStates caps the number of automaton states Compile will build
	// before giving up with a *BuildError. This is a safety valve against
	// a pathological or adversarial robots file producing an automaton too
	// large to be worth building. Zero or negative means unlimited.
	// Default: 1,000,000.
	MaxStates int

	// MaxPatternLen caps the byte length of a single rule's pattern; a
	// longer pattern causes Compile to fail with a *PatternTooLongError
	// instead of silently accepting an unbounded string. Default: 8,192.
	MaxPatternLen int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:        EngineAuto,
		MaxStates:     1_000_000,
		MaxPatternLen: 8192,
	}
}

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cylon: invalid config field %s: %s", e.Field, e.Reason)
}

// Validate reports whether c is usable, without mutating it.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineAuto, EngineDeterministic, EngineNonDeterministic:
	default:
		return &ConfigError{Field: "Engine", Reason: "unrecognized engine value"}
	}
	if c.MaxPatternLen <= 0 {
		return &ConfigError{Field: "MaxPatternLen", Reason: "must be greater than zero"}
	}
	return nil
}

// Option adjusts a Config in place; see WithEngine, WithMaxStates, and
// WithMaxPatternLen.
type Option func(*Config)

// WithEngine overrides the automaton formulation Compile builds.
func WithEngine(e Engine) Option {
	return func(c *Config) { c.Engine = e }
}

// WithMaxStates overrides the automaton state budget.
func WithMaxStates(n int) Option {
	return func(c *Config) { c.MaxStates = n }
}

// WithMaxPatternLen overrides the maximum accepted rule pattern length.
func WithMaxPatternLen(n int) Option {
	return func(c *Config) { c.MaxPatternLen = n }
}

// WithConfig replaces the whole Config, useful when a caller has already
// built one with DefaultConfig and adjusted it directly rather than through
// the With* option functions.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

func resolveEngine(e Engine) Engine {
	if e == EngineAuto {
		return EngineDeterministic
	}
	return e
}
