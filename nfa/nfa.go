// Package nfa builds and queries the non-deterministic, weighted
// formulation of a compiled robots exclusion ruleset.
//
// Unlike the dfa package's single active state, querying this automaton
// tracks a set of active states per input byte (active-state-set
// simulation), and resolves ambiguity at the end of input by picking the
// reachable state with the highest "normalized weight": the longest
// matching prefix wins, and an Allow state wins a tie against a Disallow
// state at equal prefix length.
package nfa

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/crestonbunch/cylon/internal/conv"
	"github.com/crestonbunch/cylon/internal/rule"
	"github.com/crestonbunch/cylon/internal/ruleset"
	"github.com/crestonbunch/cylon/internal/sparse"
	"github.com/crestonbunch/cylon/internal/wire"
)

const (
	eowByte      = '$'
	wildcardByte = '*'
)

// BuildError reports that compiling a ruleset would exceed the configured
// state budget.
type BuildError struct {
	States int
	Limit  int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("nfa: compiling would require %d states, exceeding limit %d", e.States, e.Limit)
}

type accept uint8

const (
	acceptAllow accept = iota
	acceptDisallow
)

type edge struct {
	b     byte
	state int
}

// node is a single NFA state: an Allow/Disallow label, the labeled and
// wildcard edges leaving it, and a weight (its depth in the prefix tree)
// used to break ties between multiple simultaneously-active states.
type node struct {
	accept    accept
	edges     []edge
	weight    int
	wildcards []int
}

// followEdges returns every state reachable from n on input byte b: every
// labeled edge matching b, plus every wildcard edge. If n has no wildcard
// edges, fallback (n's own state, for a self-loop) is included instead, so
// that a state with no explicit fallback never get stuck with no active
// states at all.
func (n node) followEdges(b byte, fallback int) []int {
	var out []int
	for _, e := range n.edges {
		if e.b == b {
			out = append(out, e.state)
		}
	}
	out = append(out, n.wildcards...)
	if len(n.wildcards) == 0 {
		out = append(out, fallback)
	}
	return out
}

func (n node) allow() bool { return n.accept == acceptAllow }

// normalizedWeight folds accept into the ordering so that an Allow state
// always outranks a Disallow state reached by an equally long match.
func (n node) normalizedWeight() int {
	if n.accept == acceptAllow {
		return 1 + 2*n.weight
	}
	return 2 * n.weight
}

// Machine is a compiled non-deterministic automaton. Once built it holds no
// reference to the rules it was compiled from and is safe for concurrent
// use by any number of readers; Allow allocates its own scratch state sets
// per call.
type Machine struct {
	states       []node
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

	cap32 := conv.IntToUint32(len(m.states))
	current := sparse.NewSparseSet(cap32)
	current.Insert(0)

	for _, c := range path {
		next := sparse.NewSparseSet(cap32)
		for _, s := range current.Values() {
			for _, ns := range m.states[s].followEdges(c, int(s)) {
				if ns >= 0 && conv.IntToUint32(ns) < cap32 {
					next.Insert(conv.IntToUint32(ns))
				}
			}
		}
		current = next
	}

	return m.bestReachable(current).allowOrDefault()
}

// reachResult carries the outcome of resolving an active state set: either
// a specific terminal node, or "no active states", which defaults to allow.
type reachResult struct {
	node  node
	found bool
}

func (r reachResult) allowOrDefault() bool {
	if !r.found {
		return true
	}
	return r.node.allow()
}

// bestReachable picks the active state with the highest normalized weight.
// Ties are broken in favor of the highest state index, matching ascending
// traversal where the last maximum encountered wins.
func (m *Machine) bestReachable(active *sparse.SparseSet) reachResult {
	values := append([]uint32(nil), active.Values()...)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	var best reachResult
	bestWeight := 0
	for _, v := range values {
		n := m.states[v]
		w := n.normalizedWeight()
		if !best.found || w >= bestWeight {
			best = reachResult{node: n, found: true}
			bestWeight = w
		}
	}
	return best
}

type queueItem struct {
	prefix       []byte
	parentState  int
	epsilonState int // -1 means "no epsilon transition pending"
}

// Compile builds a Machine from rules. rules need not be sorted or
// deduplicated; Compile sorts its own working copy. maxStates caps the
// number of automaton states Compile will build before giving up with a
// *BuildError; a non-positive value means unlimited.
func Compile(rules []rule.Rule, maxStates int) (*Machine, error) {
	sorted := make([]rule.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return rule.Less(sorted[i], sorted[j]) })

	states := []node{
		{accept: acceptAllow, wildcards: []int{1}},
		{accept: acceptAllow},
	}

	queue := []queueItem{{prefix: nil, parentState: 0, epsilonState: -1}}
	head := 0

	for head < len(queue) {
		item := queue[head]
		head++

		var lastPrefix []byte
		haveLast := false

		for _, r := range sorted {
			if len(r.Pattern) < len(item.prefix)+1 {
				continue
			}
			prefix := r.Pattern[:len(item.prefix)+1]
			if !bytes.HasPrefix(prefix, item.prefix) {
				continue
			}
			if haveLast && bytes.Equal(lastPrefix, prefix) {
				continue
			}

			if maxStates > 0 && len(states) >= maxStates {
				return nil, &BuildError{States: len(states), Limit: maxStates}
			}

			isTerminal := bytes.Equal(prefix, r.Pattern)
			var acceptState accept
			switch {
			case r.Kind == rule.Allow && isTerminal:
				acceptState = acceptAllow
			case r.Kind == rule.Disallow && isTerminal:
				acceptState = acceptDisallow
			case r.Kind == rule.Delay && isTerminal:
				acceptState = acceptAllow
			default:
				acceptState = states[item.parentState].accept
			}

			state := len(states)
			edgeByte := prefix[len(prefix)-1]
			hasParentEdge := len(item.prefix) > 0
			var parentEdge byte
			if hasParentEdge {
				parentEdge = item.prefix[len(item.prefix)-1]
			}

			childNode := node{accept: acceptState, weight: len(prefix)}
			var wildcardNode *node
			qi := queueItem{prefix: prefix, parentState: state, epsilonState: -1}

			switch {
			case edgeByte == wildcardByte && !(hasParentEdge && parentEdge == wildcardByte):
				childNode.wildcards = append(childNode.wildcards, state)
				states[item.parentState].wildcards = append(states[item.parentState].wildcards, state)
				if isTerminal {
					states[item.parentState].accept = acceptState
				}
				siblings := append([]edge(nil), states[item.parentState].edges...)
				for _, se := range siblings {
					states[se.state].wildcards = append(states[se.state].wildcards, state)
				}
				qi.epsilonState = item.parentState

			case edgeByte == wildcardByte:
				// Consecutive wildcard bytes collapse to a single node;
				// requeue under the unchanged parent to avoid the
				// exponential blowup of a node per repeated '*'.
				lastPrefix = prefix
				haveLast = true
				queue = append(queue, queueItem{prefix: prefix, parentState: item.parentState, epsilonState: -1})
				continue

			case edgeByte == eowByte:
				states[item.parentState].wildcards = append(states[item.parentState].wildcards, state)
				// The parent was not terminal and inherited its own
				// parent's accept; matching past the '$' should resolve
				// to that inherited (grandparent-equivalent) accept.
				childNode.accept = states[item.parentState].accept
				states[item.parentState].accept = acceptState
				states[item.parentState].weight = childNode.weight

			default:
				states[item.parentState].edges = append(states[item.parentState].edges, edge{b: edgeByte, state: state})
				for _, w := range states[item.parentState].wildcards {
					if state != w && !isTerminal {
						childNode.wildcards = append(childNode.wildcards, w)
					}
				}
				if isTerminal {
					wn := node{accept: acceptState, weight: len(prefix)}
					wildcardNode = &wn
					childNode.wildcards = append(childNode.wildcards, state+1)
				}
			}

			if item.epsilonState >= 0 {
				states[item.epsilonState].edges = append(states[item.epsilonState].edges, edge{b: edgeByte, state: state})
			}

			lastPrefix = prefix
			haveLast = true
			states = append(states, childNode)
			queue = append(queue, qi)
			if wildcardNode != nil {
				states = append(states, *wildcardNode)
			}
		}
	}

	m := &Machine{states: states}
	if seconds, ok := ruleset.CrawlDelaySeconds(rules); ok {
		m.delaySeconds, m.hasDelay = seconds, true
	}
	return m, nil
}

// MarshalBinary encodes m using the self-describing format shared with the
// dfa package, so a decoder can tell which engine produced a given blob.
func (m *Machine) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.Header(wire.EngineNFA)

	if m.hasDelay {
		w.Byte(1)
		w.Uvarint(uint64(m.delaySeconds))
	} else {
		w.Byte(0)
	}

	w.Uvarint(uint64(len(m.states)))
	for _, n := range m.states {
		w.Byte(byte(n.accept))
		w.Uvarint(uint64(n.weight))

		w.Uvarint(uint64(len(n.edges)))
		for _, e := range n.edges {
			w.Byte(e.b)
			w.Uvarint(uint64(e.state))
		}

		w.Uvarint(uint64(len(n.wildcards)))
		for _, wc := range n.wildcards {
			w.Uvarint(uint64(wc))
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
	if tag != wire.EngineNFA {
		return fmt.Errorf("nfa: data was encoded by engine tag %d, not nfa", tag)
	}

	hasDelay := r.Byte() == 1
	var delaySeconds int64
	if hasDelay {
		delaySeconds = int64(r.Uvarint())
	}

	stateCount := int(r.Uvarint())
	states := make([]node, stateCount)
	for i := range states {
		acc := accept(r.Byte())
		weight := int(r.Uvarint())

		edgeCount := int(r.Uvarint())
		var edges []edge
		if edgeCount > 0 {
			edges = make([]edge, edgeCount)
			for j := range edges {
				edges[j] = edge{b: r.Byte(), state: int(r.Uvarint())}
			}
		}

		wildcardCount := int(r.Uvarint())
		var wildcards []int
		if wildcardCount > 0 {
			wildcards = make([]int, wildcardCount)
			for j := range wildcards {
				wildcards[j] = int(r.Uvarint())
			}
		}

		states[i] = node{accept: acc, weight: weight, edges: edges, wildcards: wildcards}
	}

	if err := r.Err(); err != nil {
		return err
	}

	m.states = states
	m.hasDelay = hasDelay
	m.delaySeconds = delaySeconds
	return nil
}
