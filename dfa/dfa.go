// Package dfa builds and queries the deterministic formulation of a
// compiled robots exclusion ruleset: a DFA over path bytes with two
// metacharacters, '*' (match any run of bytes) and a trailing '$' (anchor
// the match to the end of input).
//
// The automaton is built by a breadth-first walk over the prefix tree
// implied by a sorted, deduplicated rule list, but the tree is never
// materialized as linked nodes: states and their transitions live in
// parallel, index-addressed slices for cache-friendly traversal during
// querying.
package dfa

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/crestonbunch/cylon/internal/rule"
	"github.com/crestonbunch/cylon/internal/ruleset"
	"github.com/crestonbunch/cylon/internal/wire"
)

const (
	eowByte      = '$'
	wildcardByte = '*'
)

// sinkAllow and sinkDisallow are the two reserved states every machine
// starts with: an unconditional allow and an unconditional disallow, each
// looping back to itself on any byte. Every other state's wildcard fallback
// ultimately bottoms out at one of these two.
const (
	sinkAllow    = 0
	sinkDisallow = 1
)

type edgeKind uint8

const (
	matchByte edgeKind = iota
	matchAny
	matchEow
)

type transition struct {
	kind edgeKind
	b    byte
	next int
}

// kind tags what a state resolves to. kindIntermediate only ever appears
// during construction; every finalized state inherits an Allow/Disallow/
// Delay kind from an ancestor before compilation finishes.
type kind uint8

const (
	kindAllow kind = iota
	kindDisallow
	kindDelay
	kindIntermediate
)

// BuildError reports that compiling a ruleset would exceed the configured
// state budget.
type BuildError struct {
	States int
	Limit  int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("dfa: compiling would require %d states, exceeding limit %d", e.States, e.Limit)
}

// Machine is a compiled deterministic automaton. Once built it holds no
// reference to the rules it was compiled from and is safe for concurrent
// use by any number of readers.
type Machine struct {
	states       []kind
	transitions  [][]transition
	delaySeconds int64
	hasDelay     bool
}

// CrawlDelay reports the aggregated crawl-delay in seconds, if the source
// ruleset declared one.
func (m *Machine) CrawlDelay() (seconds int64, ok bool) {
	return m.delaySeconds, m.hasDelay
}

// Allow reports whether path is permitted by the compiled ruleset. An empty
// path is treated as "/".
func (m *Machine) Allow(path []byte) bool {
	if len(path) == 0 {
		path = []byte("/")
	}
	switch m.states[m.resolve(path)] {
	case kindAllow:
		return true
	case kindDisallow:
		return false
	default:
		// Intermediate and Delay states are never the terminal resolution
		// of a well-formed machine; reaching one means compile produced an
		// inconsistent automaton.
		panic("dfa: query resolved to a non-terminal state")
	}
}

// resolve walks path from the root state, returning the index of the final
// state reached (after following any trailing end-of-word transition).
func (m *Machine) resolve(path []byte) int {
	return m.finish(m.walk(path, 2))
}

// step follows a single byte's transition out of state. Transitions are
// scanned from the end of the list so that a labeled byte match (always
// appended after the wildcard fallback) shadows the fallback.
func (m *Machine) step(state int, c byte) int {
	trs := m.transitions[state]
	for i := len(trs) - 1; i >= 0; i-- {
		tr := trs[i]
		switch tr.kind {
		case matchEow:
			continue
		case matchByte:
			if tr.b != c {
				continue
			}
		case matchAny:
		}
		return tr.next
	}
	// Every state has at least a wildcard fallback transition; this is
	// unreachable for a machine built by Compile.
	panic("dfa: state has no matching transition")
}

// finish attempts one trailing end-of-word-or-wildcard transition after all
// path bytes are consumed, falling back to state itself if none exists.
func (m *Machine) finish(state int) int {
	trs := m.transitions[state]
	for i := len(trs) - 1; i >= 0; i-- {
		tr := trs[i]
		if tr.kind == matchEow || tr.kind == matchAny {
			return tr.next
		}
	}
	return state
}

// queueItem describes one node awaiting expansion during the breadth-first
// build. prefix is the node's own prefix; parentIndex is the index of its
// actual parent in the tree, needed only when this node's last byte is '*'
// (its children's transitions must also be reachable directly from the
// parent, since a wildcard can match zero bytes).
type queueItem struct {
	prefix       []byte
	wildcardHint int
	parentIndex  int
	kind         kind
}

// Compile builds a Machine from rules. rules need not be sorted or
// deduplicated; Compile sorts its own working copy. maxStates caps the
// number of automaton states Compile will build before giving up with a
// *BuildError; a non-positive value means unlimited.
func Compile(rules []rule.Rule, maxStates int) (*Machine, error) {
	sorted := make([]rule.Rule, len(rules))
	copy(sorted, rules)
	sortRules(sorted)

	states := []kind{kindAllow, kindDisallow}
	transitions := [][]transition{
		{{kind: matchAny, next: sinkAllow}},
		{{kind: matchAny, next: sinkDisallow}},
	}

	queue := []queueItem{{prefix: nil, wildcardHint: 0, parentIndex: 0, kind: kindIntermediate}}
	head := 0

	for head < len(queue) {
		item := queue[head]
		head++

		if maxStates > 0 && len(transitions) >= maxStates {
			return nil, &BuildError{States: len(transitions), Limit: maxStates}
		}

		var lastByte byte
		hasLast := len(item.prefix) > 0
		if hasLast {
			lastByte = item.prefix[len(item.prefix)-1]
		}

		wildcardState := item.wildcardHint
		switch item.kind {
		case kindAllow:
			wildcardState = sinkAllow
		case kindDisallow:
			if !(hasLast && lastByte == eowByte) {
				wildcardState = sinkDisallow
			}
		case kindDelay:
			wildcardState = sinkDisallow
		case kindIntermediate:
			// keep the inherited hint
		}

		nodeIndex := len(transitions)

		var t []transition
		switch {
		case hasLast && lastByte == eowByte:
			t = []transition{{kind: matchAny, next: wildcardState}}
		case hasLast && lastByte == wildcardByte:
			t = []transition{{kind: matchAny, next: nodeIndex}}
		default:
			t = []transition{{kind: matchAny, next: wildcardState}}
		}

		var currPrefix []byte
		haveCurr := false
		for _, r := range sorted {
			if !bytes.HasPrefix(r.Pattern, item.prefix) {
				continue
			}
			if bytes.Equal(r.Pattern, item.prefix) {
				continue
			}
			childPrefix := r.Pattern[:len(item.prefix)+1]
			if haveCurr && bytes.Equal(currPrefix, childPrefix) {
				continue
			}
			currPrefix = childPrefix
			haveCurr = true

			eow := bytes.Equal(childPrefix, r.Pattern)
			childKind := kindIntermediate
			if eow {
				switch r.Kind {
				case rule.Allow:
					childKind = kindAllow
				case rule.Disallow:
					childKind = kindDisallow
				case rule.Delay:
					childKind = kindDelay
				}
			}

			queue = append(queue, queueItem{
				prefix:       childPrefix,
				wildcardHint: wildcardState,
				parentIndex:  nodeIndex,
				kind:         childKind,
			})

			childIndex := nodeIndex + (len(queue) - head)
			edgeChar := childPrefix[len(childPrefix)-1]

			var tr transition
			switch edgeChar {
			case wildcardByte:
				tr = transition{kind: matchAny, next: childIndex}
			case eowByte:
				tr = transition{kind: matchEow, next: childIndex}
			default:
				tr = transition{kind: matchByte, b: edgeChar, next: childIndex}
			}

			if hasLast && lastByte == wildcardByte {
				transitions[item.parentIndex] = append(transitions[item.parentIndex], tr)
			}

			t = append(t, tr)
		}

		var finalKind kind
		switch item.kind {
		case kindAllow, kindDisallow, kindDelay:
			finalKind = item.kind
		default:
			finalKind = states[wildcardState]
		}
		states = append(states, finalKind)
		transitions = append(transitions, t)
	}

	m := &Machine{states: states, transitions: transitions}
	if seconds, ok := ruleset.CrawlDelaySeconds(rules); ok {
		m.delaySeconds, m.hasDelay = seconds, true
	}
	return m, nil
}

func sortRules(rules []rule.Rule) {
	sort.SliceStable(rules, func(i, j int) bool { return rule.Less(rules[i], rules[j]) })
}

// MarshalBinary encodes m using the self-describing format shared with the
// nfa package, so a decoder can tell which engine produced a given blob.
func (m *Machine) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.Header(wire.EngineDFA)

	if m.hasDelay {
		w.Byte(1)
		w.Uvarint(uint64(m.delaySeconds))
	} else {
		w.Byte(0)
	}

	w.Uvarint(uint64(len(m.states)))
	for _, s := range m.states {
		w.Byte(byte(s))
	}

	w.Uvarint(uint64(len(m.transitions)))
	for _, trs := range m.transitions {
		w.Uvarint(uint64(len(trs)))
		for _, tr := range trs {
			w.Byte(byte(tr.kind))
			w.Byte(tr.b)
			w.Uvarint(uint64(tr.next))
		}
	}

	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a Machine previously produced by MarshalBinary.
func (m *Machine) UnmarshalBinary(data []byte) error {
	r := wire.NewReader(bytes.NewReader(data))
	tag := r.Header()
	if r.Err() != nil {
		return r.Err()
	}
	if tag != wire.EngineDFA {
		return fmt.Errorf("dfa: data was encoded by engine tag %d, not dfa", tag)
	}

	hasDelay := r.Byte() == 1
	var delaySeconds int64
	if hasDelay {
		delaySeconds = int64(r.Uvarint())
	}

	stateCount := int(r.Uvarint())
	states := make([]kind, stateCount)
	for i := range states {
		states[i] = kind(r.Byte())
	}

	transCount := int(r.Uvarint())
	transitions := make([][]transition, transCount)
	for i := range transitions {
		n := int(r.Uvarint())
		trs := make([]transition, n)
		for j := range trs {
			trs[j] = transition{kind: edgeKind(r.Byte()), b: r.Byte(), next: int(r.Uvarint())}
		}
		transitions[i] = trs
	}

	if err := r.Err(); err != nil {
		return err
	}

	m.states = states
	m.transitions = transitions
	m.hasDelay = hasDelay
	m.delaySeconds = delaySeconds
	return nil
}
