package regalloc

import (
	"fmt"
	"sort"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/lir"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
	"github.com/ijsf/xcc/internal/regfile"
)

// maxColourRetries bounds the node-removal/rebuild loop the way the
// teacher's own allocator bounds its retry loop: coloring can fail to make
// progress in one pass if every remaining node's degree sits at or above
// k, and a handful of extra passes is enough to confirm that's a real
// deadlock rather than an ordering artifact.
const maxColourRetries = 8

type node struct {
	reg       *lir.Register
	neighbors []*node
	enabled   bool
}

// AllocateFunction assigns every register in fn a physical home: a frame
// slot for Bofs results and parameters/return value pinned by calling
// convention, everything else via RIG-node-removal graph coloring against
// rf, falling back to a frame slot when a register genuinely cannot be
// found — completing the spill path the teacher's own allocator left as a
// stub.
func AllocateFunction(fn *lir.Function, rf regfile.File) error {
	assignStackSlots(fn, rf)
	ComputeLiveness(fn)
	g := buildInterference(fn)

	nodes := make([]*node, 0, len(g))
	idx := make(map[*lir.Register]*node, len(g))
	for r := range g {
		n := &node{reg: r, enabled: true}
		nodes = append(nodes, n)
		idx[r] = n
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].reg.ID < nodes[j].reg.ID })
	for r, neigh := range g {
		n := idx[r]
		for r2 := range neigh {
			n.neighbors = append(n.neighbors, idx[r2])
		}
	}

	stack := make([]*node, 0, len(nodes))
	retry := maxColourRetries
	for len(stack) < len(nodes) && retry > 0 {
		progressed := false
		for i := len(nodes) - 1; i >= 0; i-- {
			n := nodes[i]
			if !n.enabled {
				continue
			}
			if n.reg.IsSpilled() {
				n.enabled = false
				stack = append(stack, n)
				progressed = true
				continue
			}
			k := rf.Ki()
			if ctype.IsFlonum(n.reg.Typ) {
				k = rf.Kf()
			}
			if enabledDegree(n) < k {
				n.enabled = false
				stack = append(stack, n)
				progressed = true
			}
		}
		if !progressed {
			retry--
		}
	}
	if len(stack) < len(nodes) {
		return fmt.Errorf("regalloc: could not colour function %q within %d retries", fn.Name, maxColourRetries)
	}

	for i := len(stack) - 1; i >= 0; i-- {
		n := stack[i]
		n.enabled = true
		if n.reg.IsSpilled() {
			continue
		}
		excl := neighborRegs(n, rf)
		var p regfile.Register
		if ctype.IsFlonum(n.reg.Typ) {
			p = rf.GetNextTempFExclude(excl)
		} else {
			p = rf.GetNextTempIExclude(excl)
		}
		if p == nil {
			n.reg.Spill = newSpillSlot(fn, rf)
			continue
		}
		n.reg.SetHW(p.Id())
	}

	pinParamsAndReturn(fn, rf)
	return nil
}

func enabledDegree(n *node) int {
	c := 0
	for _, nb := range n.neighbors {
		if nb.enabled {
			c++
		}
	}
	return c
}

// neighborRegs resolves the already-assigned physical registers of n's
// still-enabled RIG neighbors, so GetNextTempIExclude/F can steer around
// them.
func neighborRegs(n *node, rf regfile.File) []regfile.Register {
	var out []regfile.Register
	for _, nb := range n.neighbors {
		if !nb.enabled || nb.reg.IsSpilled() || nb.reg.GetHW() < 0 {
			continue
		}
		if ctype.IsFlonum(nb.reg.Typ) {
			out = append(out, rf.GetF(nb.reg.GetHW()))
		} else {
			out = append(out, rf.GetI(nb.reg.GetHW()))
		}
	}
	return out
}

// assignStackSlots gives every Bofs result a permanent frame-pointer
// offset up front, before liveness or coloring ever sees it: a Bofs value
// is a local's address, never a value computed at runtime, so spec 4.F's
// general spill rule already covers it without needing a RIG node at all.
func assignStackSlots(fn *lir.Function, rf regfile.File) {
	for _, b := range fn.Blocks {
		for _, in := range b.Instr {
			if in.Op == lirtypes.Bofs && in.Dst != nil {
				in.Dst.Spill = newSpillSlot(fn, rf)
			}
		}
	}
}

func newSpillSlot(fn *lir.Function, rf regfile.File) int {
	fn.FrameSize += rf.WordSize()
	return fn.FrameSize
}

// pinParamsAndReturn assigns the first 8 integer and 8 floating
// parameters their AAPCS64/RV64-style incoming registers, and the return
// value its class's result register, matching the teacher's
// allocateRegisterFunc. Parameters beyond the eighth of their class arrive
// in the caller's outgoing-argument area instead of a register; this
// allocator does not yet give them a frame slot of their own; that stack
// argument area is a known gap left for internal/backend/*'s prologue to
// special-case.
func pinParamsAndReturn(fn *lir.Function, rf regfile.File) {
	ii, fi := 0, 0
	for _, p := range fn.Params {
		// Count this parameter's calling-convention slot regardless of
		// whether the colorer spilled it — skipping the increment here
		// would shift every later parameter of the same class onto the
		// wrong incoming register.
		if ctype.IsFlonum(p.Typ) {
			if !p.IsSpilled() && fi < 8 {
				p.SetHW(rf.GetF(fi).Id())
			}
			fi++
		} else {
			if !p.IsSpilled() && ii < 8 {
				p.SetHW(rf.GetI(ii).Id())
			}
			ii++
		}
	}
	if fn.RetReg != nil && !fn.RetReg.IsSpilled() {
		if ctype.IsFlonum(fn.RetReg.Typ) {
			fn.RetReg.SetHW(rf.GetF(0).Id())
		} else {
			fn.RetReg.SetHW(rf.GetI(0).Id())
		}
	}
}
