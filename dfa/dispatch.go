package dfa

import "golang.org/x/sys/cpu"

// useUnrolledWalk is decided once at package init. On CPUs wide enough to
// keep several consecutive transition-slice cache lines in flight at once,
// walking four path bytes per loop iteration measures faster than the
// straightforward one-byte-at-a-time walk; elsewhere the simple loop wins
// on code size and branch prediction.
var useUnrolledWalk = cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD

func (m *Machine) walk(path []byte, state int) int {
	if useUnrolledWalk {
		return m.walkUnrolled(path, state)
	}
	return m.walkSimple(path, state)
}

func (m *Machine) walkSimple(path []byte, state int) int {
	for _, c := range path {
		state = m.step(state, c)
	}
	return state
}

// walkUnrolled is functionally identical to walkSimple; it only changes the
// loop's instruction mix.
func (m *Machine) walkUnrolled(path []byte, state int) int {
	i := 0
	for ; i+4 <= len(path); i += 4 {
		state = m.step(state, path[i])
		state = m.step(state, path[i+1])
		state = m.step(state, path[i+2])
		state = m.step(state, path[i+3])
	}
	for ; i < len(path); i++ {
		state = m.step(state, path[i])
	}
	return state
}
