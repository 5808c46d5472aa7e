package regalloc

import (
	"github.com/ijsf/xcc/internal/lir"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// interference is an adjacency-set register-interference graph: two
// registers are neighbors if one is live at the point the other is
// defined. Bofs results get a node but add no edges at their own
// definition (they still become neighbors of registers defined while they
// are live) — a Bofs always addresses a stack-resident local, so
// assignStackSlots gives it a permanent frame offset before the colorer
// ever runs, the same simplification the teacher's own frame layout
// applies to every local unconditionally.
type interference map[*lir.Register]map[*lir.Register]bool

func (g interference) addNode(r *lir.Register) {
	if _, ok := g[r]; !ok {
		g[r] = map[*lir.Register]bool{}
	}
}

func (g interference) addEdge(a, b *lir.Register) {
	if a == b {
		return
	}
	g.addNode(a)
	g.addNode(b)
	g[a][b] = true
	g[b][a] = true
}

// buildInterference requires ComputeLiveness to have already populated
// every block's LiveOut. It re-walks each block backward exactly as the
// liveness pass did, adding an edge from each instruction's def to every
// register live immediately after it.
func buildInterference(fn *lir.Function) interference {
	g := interference{}
	for _, b := range fn.Blocks {
		live := cloneSet(b.LiveOut)
		for i := len(b.Instr) - 1; i >= 0; i-- {
			in := b.Instr[i]
			def, uses := defUse(in)
			if def != nil && in.Op != lirtypes.Bofs {
				g.addNode(def)
				for r := range live {
					g.addEdge(def, r)
				}
				delete(live, def)
			} else if def != nil {
				// Bofs still needs a node so callers that look it up don't
				// nil-panic, but it adds no edges at its own definition: assignStackSlots
				// takes it out of the colorer's hands entirely.
				g.addNode(def)
				delete(live, def)
			}
			for _, u := range uses {
				live[u] = true
			}
		}
	}
	return g
}
